// Package exchange implements the wire protocol of the order-matching backend:
// a REST order API and a push-based depth feed over WebSocket.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"tradedesk/internal/domain"
)

// RESTClient is the request/response client for the backend order API. It
// implements domain.OrderGateway. The client performs no retries; retry
// policy, if any, is the caller's decision.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTClient creates a REST client for the given API root,
// e.g. "http://localhost:8080".
func NewRESTClient(baseURL string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Submit posts an order and returns the fill result.
func (c *RESTClient) Submit(ctx context.Context, order domain.Order) (domain.FillResult, error) {
	req := OrderRequest{
		Price:  order.Price,
		Qty:    order.Quantity,
		UserID: order.SubmitterID,
		Side:   string(order.Side),
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/order", req)
	if err != nil {
		return domain.FillResult{}, fmt.Errorf("exchange: submit order: %w", err)
	}

	var fill FillResponse
	if err := json.Unmarshal(respBody, &fill); err != nil {
		return domain.FillResult{}, fmt.Errorf("exchange: decode fill response: %w", err)
	}
	return fill.ToDomainFillResult(), nil
}

// Cancel removes a resting order by id and returns how much of it had filled.
func (c *RESTClient) Cancel(ctx context.Context, orderID int64) (domain.CancelResult, error) {
	req := CancelRequest{OrderID: strconv.FormatInt(orderID, 10)}

	respBody, err := c.doRequest(ctx, http.MethodDelete, "/order", req)
	if err != nil {
		return domain.CancelResult{}, fmt.Errorf("exchange: cancel order %d: %w", orderID, err)
	}

	var cr CancelResponse
	if err := json.Unmarshal(respBody, &cr); err != nil {
		return domain.CancelResult{}, fmt.Errorf("exchange: decode cancel response: %w", err)
	}
	return domain.CancelResult{FilledQty: cr.FilledQty, AveragePrice: cr.AveragePrice}, nil
}

// GetDepth polls the current order book. Used once at startup to shorten
// perceived latency before the live feed delivers its first snapshot; the
// store's sequence guard makes the double source race-safe.
func (c *RESTClient) GetDepth(ctx context.Context) (domain.DepthSnapshot, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/depth", nil)
	if err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("exchange: get depth: %w", err)
	}

	var msg DepthMessage
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return domain.DepthSnapshot{}, fmt.Errorf("exchange: decode depth: %w", err)
	}
	snap, err := msg.ToDomainSnapshot(time.Now())
	if err != nil {
		return domain.DepthSnapshot{}, err
	}
	return snap, nil
}

// Health checks the backend's health endpoint.
func (c *RESTClient) Health(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, "/health", nil); err != nil {
		return fmt.Errorf("exchange: health: %w", err)
	}
	return nil
}

// doRequest performs one HTTP round trip. Non-2xx responses are decoded as an
// APIError payload and surfaced as an error wrapping domain.ErrGateway so that
// callers can show the backend's message verbatim.
func (c *RESTClient) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr APIError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrGateway, apiErr.Error)
		}
		return nil, fmt.Errorf("%w: status %d", domain.ErrGateway, resp.StatusCode)
	}

	return respBody, nil
}

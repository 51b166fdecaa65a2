// Package bus provides an in-process implementation of the signal bus for
// single-node runs and tests.
package bus

import (
	"context"
	"sync"
)

// Memory implements domain.SignalBus with per-channel fan-out inside the
// process. Slow subscribers drop messages rather than blocking publishers.
type Memory struct {
	mu   sync.RWMutex
	subs map[string][]chan []byte
}

// NewMemory creates an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]chan []byte)}
}

// Publish delivers payload to every subscriber of channel.
func (m *Memory) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.RLock()
	subs := m.subs[channel]
	m.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber for channel. The returned channel is
// closed when ctx is cancelled.
func (m *Memory) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	m.mu.Lock()
	m.subs[channel] = append(m.subs[channel], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		subs := m.subs[channel]
		for i, c := range subs {
			if c == ch {
				m.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

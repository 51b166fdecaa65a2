package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrGateway      = errors.New("gateway request failed")
	ErrBotRunning   = errors.New("bot is running")
	ErrNotConnected = errors.New("not connected")
	ErrWSDisconnect = errors.New("websocket disconnected")
)

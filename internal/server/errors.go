package server

import "errors"

var (
	ErrServeFailed    = errors.New("HTTP server failed")
	ErrShutdownFailed = errors.New("HTTP server shutdown failed")
)

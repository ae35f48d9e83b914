package session

import "errors"

var (
	ErrSessionComplete = errors.New("session already complete")
	ErrFrameProcessing = errors.New("error processing frame")
	ErrStreamNotFound  = errors.New("stream not found")
)

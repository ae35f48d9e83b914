package logging

import "errors"

var (
	ErrNoOutputs    = errors.New("no logging outputs configured (neither console nor file enabled)")
	ErrLogDirectory = errors.New("failed to create log directory")
)

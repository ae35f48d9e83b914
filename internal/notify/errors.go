package notify

import "errors"

var (
	ErrConnectFailed = errors.New("failed to connect publisher")
	ErrPublishFailed = errors.New("failed to publish report")
	ErrEncodeReport  = errors.New("failed to encode report")
)

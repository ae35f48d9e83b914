package message

import "errors"

var (
	ErrJSONUnmarshalFailed  = errors.New("failed to unmarshal JSON message")
	ErrUnknownMessageType   = errors.New("unknown message type")
	ErrMissingSessionID     = errors.New("message has no session_id")
	ErrInvalidImageEncoding = errors.New("image is not valid base64")
)

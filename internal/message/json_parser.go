package message

import (
	"encoding/json"
	"fmt"
)

// ParseStreamRequest parses a streaming client message and checks its type.
func ParseStreamRequest(data []byte) (StreamRequest, error) {
	var req StreamRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return StreamRequest{}, fmt.Errorf("%w: %w", ErrJSONUnmarshalFailed, err)
	}

	switch req.Type {
	case TypeInfo, TypeReset, TypeFrame:
		return req, nil
	default:
		return StreamRequest{}, fmt.Errorf("%w: %q", ErrUnknownMessageType, req.Type)
	}
}

// ParseFrameMessage parses a Kafka frame message. The session id is required.
func ParseFrameMessage(data []byte) (FrameMessage, error) {
	var msg FrameMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return FrameMessage{}, fmt.Errorf("%w: %w", ErrJSONUnmarshalFailed, err)
	}
	if msg.SessionID == "" {
		return FrameMessage{}, ErrMissingSessionID
	}
	return msg, nil
}

// Snippet returns a printable prefix of a raw payload, useful for logging.
func Snippet(data []byte, maxLength int) string {
	if maxLength <= 0 {
		return "..."
	}
	if len(data) > maxLength {
		return string(data[:maxLength]) + "..."
	}
	return string(data)
}

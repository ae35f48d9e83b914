package message

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/sanspareilsmyn/vitalens/internal/roi"
	"github.com/sanspareilsmyn/vitalens/internal/vitals"
)

// Streaming request types.
const (
	TypeInfo  = "info"
	TypeReset = "reset"
	TypeFrame = "frame"
)

// Streaming response types.
const (
	TypeMetrics  = "metrics"
	TypeScores   = "scores"
	TypeComplete = "complete"
	TypeError    = "error"
)

// Sources recorded on reports.
const (
	SourceStream = "websocket"
	SourceBatch  = "batch"
	SourceKafka  = "kafka"
)

// FramePayload is one frame as it travels over the wire. Image holds a base64
// PNG or JPEG crop of the face, optionally as a data URL.
type FramePayload struct {
	FrameWidth  int       `json:"frame_width,omitempty"`
	FrameHeight int       `json:"frame_height,omitempty"`
	Face        *roi.Rect `json:"face"`
	Image       string    `json:"image,omitempty"`
	Mean        *roi.RGB  `json:"mean,omitempty"`
}

// Frame decodes the payload. Frame dimensions missing from the payload fall
// back to width and height.
func (p FramePayload) Frame(width, height int) (roi.Frame, error) {
	f := roi.Frame{
		Width:  p.FrameWidth,
		Height: p.FrameHeight,
		Face:   p.Face,
		Mean:   p.Mean,
	}
	if f.Width == 0 {
		f.Width = width
	}
	if f.Height == 0 {
		f.Height = height
	}

	if p.Image == "" || p.Mean != nil {
		return f, nil
	}

	data := p.Image
	if i := strings.Index(data, ","); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+1:]
	}
	img, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return roi.Frame{}, fmt.Errorf("%w: %w", ErrInvalidImageEncoding, err)
	}
	f.Image = img
	return f, nil
}

// StreamRequest is a client message on the streaming channel. Which fields are
// meaningful depends on Type.
type StreamRequest struct {
	Type string `json:"type"`
	vitals.UserAttributes
	FramePayload
}

// StreamResponse is a server message on the streaming channel.
type StreamResponse struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id,omitempty"`
	Status    string           `json:"status,omitempty"`
	Frames    int              `json:"frames,omitempty"`
	Metrics   *vitals.Snapshot `json:"metrics,omitempty"`
	Scores    *vitals.ScoreSet `json:"scores,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// BatchRequest carries a whole recording in one HTTP call.
type BatchRequest struct {
	vitals.UserAttributes
	FrameWidth  int            `json:"frame_width"`
	FrameHeight int            `json:"frame_height"`
	Frames      []FramePayload `json:"frames"`
}

// BatchResponse is the evaluation of a BatchRequest.
type BatchResponse struct {
	SessionID  string                `json:"session_id"`
	Metrics    vitals.Snapshot       `json:"metrics"`
	Scores     vitals.ScoreSet       `json:"scores"`
	Attributes vitals.UserAttributes `json:"user_info"`
	Frames     int                   `json:"frames"`
	Complete   bool                  `json:"complete"`
}

// FrameMessage is one frame on the Kafka frames topic. A message with Reset
// set clears the session before its frame (if any) is applied.
type FrameMessage struct {
	SessionID  string                 `json:"session_id"`
	Reset      bool                   `json:"reset,omitempty"`
	Attributes *vitals.UserAttributes `json:"user_info,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
	FramePayload
}

// HasFrame reports whether the message carries frame data.
func (m FrameMessage) HasFrame() bool {
	return m.Face != nil || m.Image != "" || m.Mean != nil || m.FrameWidth != 0
}

// Report is published and stored when a session completes.
type Report struct {
	ID          string                `json:"id"`
	SessionID   string                `json:"session_id"`
	Source      string                `json:"source"`
	Metrics     vitals.Snapshot       `json:"metrics"`
	Scores      vitals.ScoreSet       `json:"scores"`
	Attributes  vitals.UserAttributes `json:"user_info"`
	Frames      int                   `json:"frames"`
	CompletedAt time.Time             `json:"completed_at"`
}

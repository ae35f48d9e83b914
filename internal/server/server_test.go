package server

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/message"
	"github.com/sanspareilsmyn/vitalens/internal/pipeline"
	"github.com/sanspareilsmyn/vitalens/internal/roi"
	"github.com/sanspareilsmyn/vitalens/internal/session"
	"github.com/sanspareilsmyn/vitalens/internal/vitals"
)

var testFace = &roi.Rect{X: 200, Y: 120, W: 220, H: 220}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	sig := config.SignalConfig{
		SampleRate:              30,
		LowCut:                  0.85,
		HighCut:                 2.3,
		FilterOrder:             4,
		SignalStrengthThreshold: 0.1,
		TotalFrames:             60,
		HeartRateWindow:         100,
		Thresholds:              config.Thresholds{HeartRate: 10, HRV: 10, SpO2: 10, Respiration: 10, Pressure: 10},
	}
	e, err := vitals.NewEstimator(sig)
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}

	logger := zaptest.NewLogger(t)
	roiCfg := config.ROIConfig{ConfidenceThreshold: 8, MovementThreshold: 15}
	srvCfg := config.ServerConfig{
		AllowedOrigins: []string{"http://localhost:8001"},
		BatchWorkers:   2,
		BatchTimeout:   time.Minute,
		MaxBodyBytes:   1 << 20,
	}
	manager := session.NewManager(e, roiCfg, config.SessionConfig{}, logger)
	reporter := pipeline.NewReporter(nil, nil, nil, logger)
	batch := pipeline.NewBatch(e, roiCfg, srvCfg, reporter, logger)

	s := New(srvCfg, manager, batch, reporter, nil, logger)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func pulseFrame(i int) message.FramePayload {
	phase := 2 * math.Pi * 1.2 * float64(i) / 30
	return message.FramePayload{
		FrameWidth:  640,
		FrameHeight: 480,
		Face:        testFace,
		Mean:        &roi.RGB{R: 150 + 1.5*math.Sin(phase), G: 120 + 2*math.Sin(phase), B: 90},
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "vitalens_final_heart_rate_bpm") {
		t.Errorf("/metrics status %d, missing vitalens metrics", resp.StatusCode)
	}
}

func postBatch(t *testing.T, ts *httptest.Server, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/batch", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/batch failed: %v", err)
	}
	return resp
}

func TestBatchEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	req := message.BatchRequest{UserAttributes: vitals.UserAttributes{Age: 30, Weight: 70, Height: 175}}
	for i := 0; i < 70; i++ {
		req.Frames = append(req.Frames, pulseFrame(i))
	}
	body, _ := json.Marshal(req)

	resp := postBatch(t, ts, body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var out message.BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !out.Complete || out.Frames != 60 || out.Attributes.Age != 30 || out.SessionID == "" {
		t.Errorf("unexpected response %+v", out)
	}
}

func TestBatchEndpointErrors(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postBatch(t, ts, []byte(`{"frames":`))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: status %d, want 400", resp.StatusCode)
	}

	bad := message.BatchRequest{Frames: []message.FramePayload{{FrameWidth: 640, FrameHeight: 480, Face: testFace, Image: "%%%"}}}
	body, _ := json.Marshal(bad)
	resp = postBatch(t, ts, body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("undecodable frame: status %d, want 422", resp.StatusCode)
	}
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req any) message.StreamResponse {
	t.Helper()
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return read(t, conn)
}

func read(t *testing.T, conn *websocket.Conn) message.StreamResponse {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var resp message.StreamResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return resp
}

func TestStreamRoundTrip(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts)

	if err := conn.WriteJSON(map[string]any{"type": "info", "age": 30, "weight": 70, "height": 175}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	resp := roundTrip(t, conn, map[string]any{"type": "frame", "frame_width": 640, "frame_height": 480, "face": nil})
	if resp.Type != message.TypeMetrics || resp.Status != session.StatusNoFace {
		t.Errorf("faceless frame: %+v", resp)
	}

	resp = roundTrip(t, conn, map[string]any{"type": "bogus"})
	if resp.Type != message.TypeError {
		t.Errorf("unknown type: %+v", resp)
	}

	for i := 0; i < 60; i++ {
		req := struct {
			Type string `json:"type"`
			message.FramePayload
		}{message.TypeFrame, pulseFrame(i)}

		resp = roundTrip(t, conn, req)
		if resp.Type != message.TypeMetrics || resp.Status != session.StatusNoMovement || resp.Frames != i+1 {
			t.Fatalf("frame %d: %+v", i+1, resp)
		}
	}

	scores := read(t, conn)
	if scores.Type != message.TypeScores || scores.Scores == nil {
		t.Fatalf("expected scores, got %+v", scores)
	}
	done := read(t, conn)
	if done.Type != message.TypeComplete || done.Frames != 60 || done.Scores == nil || *done.Scores != *scores.Scores {
		t.Fatalf("expected completion, got %+v", done)
	}

	resp = roundTrip(t, conn, map[string]any{"type": "reset"})
	if resp.Type != message.TypeMetrics || resp.Metrics == nil || *resp.Metrics != (vitals.Snapshot{}) {
		t.Errorf("reset: %+v", resp)
	}
	if s.manager.Len() != 1 {
		t.Errorf("active streams = %d, want 1", s.manager.Len())
	}
}

func TestStreamRejectsForeignOrigin(t *testing.T) {
	_, ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
	header := http.Header{"Origin": []string{"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("expected the upgrade to be refused")
	}
}

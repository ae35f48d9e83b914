package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap/zaptest"

	"github.com/sanspareilsmyn/vitalens/internal/message"
	"github.com/sanspareilsmyn/vitalens/internal/vitals"
)

type fakePublisher struct {
	name    string
	err     error
	reports []message.Report
	closed  bool
}

func (f *fakePublisher) Name() string { return f.name }

func (f *fakePublisher) Publish(_ context.Context, r message.Report) error {
	f.reports = append(f.reports, r)
	return f.err
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func testReport() message.Report {
	return message.Report{
		ID:          "r-1",
		SessionID:   "s-1",
		Source:      message.SourceStream,
		Metrics:     vitals.Snapshot{Average: vitals.Metrics{BPM: 72}},
		Frames:      600,
		CompletedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMultiPublishesToEveryone(t *testing.T) {
	ok := &fakePublisher{name: "ok"}
	broken := &fakePublisher{name: "broken", err: errors.New("boom")}
	last := &fakePublisher{name: "last"}
	m := Multi{ok, broken, last}

	err := m.Publish(context.Background(), testReport())
	if err == nil {
		t.Fatal("expected the failing publisher to surface")
	}
	if len(ok.reports) != 1 || len(last.reports) != 1 {
		t.Error("a failing publisher stopped the fan-out")
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !ok.closed || !broken.closed || !last.closed {
		t.Error("Close did not reach every publisher")
	}
}

func TestEmptyMultiIsNoop(t *testing.T) {
	if err := (Multi{}).Publish(context.Background(), testReport()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestKafkaPublisherKeysBySession(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "vitalens-reports", logger: zaptest.NewLogger(t)}

	if err := p.Publish(context.Background(), testReport()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "s-1" {
		t.Errorf("key = %q", w.msgs[0].Key)
	}

	var got message.Report
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.Metrics.Average.BPM != 72 || got.Frames != 600 {
		t.Errorf("unexpected payload %+v", got)
	}
}

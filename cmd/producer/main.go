package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math"
	"math/rand"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sanspareilsmyn/vitalens/internal/message"
	"github.com/sanspareilsmyn/vitalens/internal/roi"
	"github.com/sanspareilsmyn/vitalens/internal/vitals"
)

var (
	brokers   = flag.String("brokers", "localhost:9092", "Comma-separated Kafka brokers")
	topic     = flag.String("topic", "vitalens-frames", "Frames topic")
	sessionID = flag.String("session", "demo-camera", "Session id to publish under")
	bpm       = flag.Float64("bpm", 72, "Simulated heart rate")
	fps       = flag.Float64("fps", 30, "Frames per second")
)

// Produces a synthetic face stream: a pulsing skin tone with a little sensor
// noise and head jitter, preceded by the subject's details.
func main() {
	flag.Parse()

	writer := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:    *topic,
		Balancer: &kafka.Hash{},
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Printf("Error closing kafka writer: %v", err)
		}
	}()
	log.Printf("Producing %.0f bpm frames for session %q to topic %s on %s", *bpm, *sessionID, *topic, *brokers)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	attrs := vitals.UserAttributes{Age: 35, Weight: 72, Height: 178}
	if err := produce(ctx, writer, message.FrameMessage{SessionID: *sessionID, Reset: true, Attributes: &attrs}); err != nil {
		log.Printf("Error writing session header: %v", err)
		return
	}

	ticker := time.NewTicker(time.Duration(float64(time.Second) / *fps))
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; ; i++ {
		select {
		case <-ticker.C:
			if err := produce(ctx, writer, syntheticFrame(rng, i)); err != nil {
				if ctx.Err() != nil {
					log.Println("Context cancelled, exiting message loop.")
					return
				}
				log.Printf("Error writing frame %d: %v", i, err)
			}
		case <-ctx.Done():
			log.Println("Producer loop stopped.")
			return
		}
	}
}

func produce(ctx context.Context, w *kafka.Writer, msg message.FrameMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.WriteMessages(ctx, kafka.Message{Key: []byte(msg.SessionID), Value: data})
}

func syntheticFrame(rng *rand.Rand, i int) message.FrameMessage {
	t := float64(i) / *fps
	pulse := math.Sin(2 * math.Pi * (*bpm / 60) * t)
	noise := func() float64 { return rng.NormFloat64() * 0.2 }

	face := roi.Rect{X: 220 + rng.Intn(3), Y: 140 + rng.Intn(3), W: 200, H: 200}
	return message.FrameMessage{
		SessionID: *sessionID,
		Timestamp: time.Now().UTC(),
		FramePayload: message.FramePayload{
			FrameWidth:  640,
			FrameHeight: 480,
			Face:        &face,
			Mean: &roi.RGB{
				R: 150 + 1.5*pulse + noise(),
				G: 120 + 2.0*pulse + noise(),
				B: 95 + 0.5*pulse + noise(),
			},
		},
	}
}

package session

import "github.com/sanspareilsmyn/vitalens/internal/roi"

// Channel names one of the sampled color channels.
type Channel int

const (
	Green Channel = iota // rPPG source
	Red
	Infra
)

func (c Channel) String() string {
	switch c {
	case Green:
		return "green"
	case Red:
		return "red"
	case Infra:
		return "infra"
	default:
		return "unknown"
	}
}

// SampleBuffer holds one append-only history per channel. The histories always
// have the same length.
type SampleBuffer struct {
	green []float64
	red   []float64
	infra []float64
}

func newSampleBuffer(capacity int) *SampleBuffer {
	return &SampleBuffer{
		green: make([]float64, 0, capacity),
		red:   make([]float64, 0, capacity),
		infra: make([]float64, 0, capacity),
	}
}

// Append pushes one sample onto every channel.
func (b *SampleBuffer) Append(s roi.Sample) {
	b.green = append(b.green, s.Green)
	b.red = append(b.red, s.Red)
	b.infra = append(b.infra, s.Infra)
}

func (b *SampleBuffer) Len() int { return len(b.green) }

// Window returns a copy of the last n samples of a channel, or all of them if
// fewer are held.
func (b *SampleBuffer) Window(c Channel, n int) []float64 {
	src := b.channel(c)
	if n < 0 {
		n = 0
	}
	if n > len(src) {
		n = len(src)
	}
	return append([]float64(nil), src[len(src)-n:]...)
}

// Reset empties every channel while keeping the allocated capacity.
func (b *SampleBuffer) Reset() {
	b.green = b.green[:0]
	b.red = b.red[:0]
	b.infra = b.infra[:0]
}

func (b *SampleBuffer) channel(c Channel) []float64 {
	switch c {
	case Red:
		return b.red
	case Infra:
		return b.infra
	default:
		return b.green
	}
}

// Package roi turns a located face region into the three channel samples the
// rPPG pipeline consumes, and decides whether a detection is usable.
package roi

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
)

// Rect is a face bounding box in frame pixel coordinates.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Center returns the rectangle centre.
func (r Rect) Center() (float64, float64) {
	return float64(r.X) + float64(r.W)/2, float64(r.Y) + float64(r.H)/2
}

// RGB holds per-channel means on a 0–255 scale.
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Sample is one frame's contribution to the channel buffers.
type Sample struct {
	Green float64
	Red   float64
	Infra float64
}

// Frame is what the upstream face provider hands over for one video frame.
// Face is nil when no face was found. Exactly one of Image (an encoded PNG or
// JPEG crop of the face) or Mean should be set.
type Frame struct {
	Width  int
	Height int
	Face   *Rect
	Image  []byte
	Mean   *RGB
}

// SampleFromMeans builds the channel sample; the infra proxy is a luma-weighted
// mix of the three channels.
func SampleFromMeans(m RGB) Sample {
	return Sample{
		Green: m.G,
		Red:   m.R,
		Infra: 0.3*m.R + 0.59*m.G + 0.11*m.B,
	}
}

// Extract converts a frame's ROI into a channel sample.
func Extract(f Frame) (Sample, error) {
	if f.Mean != nil {
		return SampleFromMeans(*f.Mean), nil
	}
	if len(f.Image) == 0 {
		return Sample{}, ErrNoPixels
	}

	img, _, err := image.Decode(bytes.NewReader(f.Image))
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %w", ErrUndecodableImage, err)
	}
	m, err := MeanColor(img)
	if err != nil {
		return Sample{}, err
	}
	return SampleFromMeans(m), nil
}

// MeanColor averages the R, G and B channels over every pixel of img.
func MeanColor(img image.Image) (RGB, error) {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return RGB{}, ErrEmptyImage
	}

	var r, g, bl float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			r += float64(cr >> 8)
			g += float64(cg >> 8)
			bl += float64(cb >> 8)
		}
	}
	total := float64(n)
	return RGB{R: r / total, G: g / total, B: bl / total}, nil
}

// Confidence is the face area as a percentage of the frame area.
func Confidence(face Rect, frameWidth, frameHeight int) float64 {
	area := float64(frameWidth) * float64(frameHeight)
	if area <= 0 {
		return 0
	}
	return float64(face.W) * float64(face.H) / area * 100
}

// Confident reports whether the face covers at least thresholdPct of the frame.
func Confident(face Rect, frameWidth, frameHeight int, thresholdPct float64) bool {
	return Confidence(face, frameWidth, frameHeight) >= thresholdPct
}

// Tracker remembers the last detection of one stream to flag head movement.
// Not safe for concurrent use; each stream owns its own.
type Tracker struct {
	threshold float64
	previous  *Rect
}

func NewTracker(thresholdPixels float64) *Tracker {
	return &Tracker{threshold: thresholdPixels}
}

// Moving compares face with the previous detection and records it.
// The first detection never counts as movement.
func (t *Tracker) Moving(face Rect) bool {
	prev := t.previous
	current := face
	t.previous = &current
	if prev == nil {
		return false
	}

	px, py := prev.Center()
	cx, cy := face.Center()
	return math.Hypot(cx-px, cy-py) > t.threshold
}

// Previous returns a copy of the last recorded detection, or nil.
func (t *Tracker) Previous() *Rect {
	if t.previous == nil {
		return nil
	}
	r := *t.previous
	return &r
}

// Restore replaces the recorded detection, typically with a value taken from
// Previous before a frame that was later discarded.
func (t *Tracker) Restore(r *Rect) {
	if r == nil {
		t.previous = nil
		return
	}
	c := *r
	t.previous = &c
}

// Reset forgets the previous detection.
func (t *Tracker) Reset() {
	t.previous = nil
}

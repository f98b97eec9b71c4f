// Package device talks to the game client: it captures frames and injects taps.
package device

import (
	"context"
	"image"
	"sync"
)

// FrameSource returns the most recent screen image on demand.
type FrameSource interface {
	Capture(ctx context.Context) (image.Image, error)
}

// Tapper injects a tap at screen coordinates.
type Tapper interface {
	Tap(ctx context.Context, x, y int) error
}

// Device is a full input/output channel to the client.
type Device interface {
	FrameSource
	Tapper
}

// Tap is a recorded tap.
type Tap struct {
	X, Y int
}

// Recorder is a Tapper that remembers every tap. It is safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	taps []Tap

	// OnTap is called after each recorded tap.
	OnTap func(x, y int)
}

// Tap records the tap.
func (r *Recorder) Tap(_ context.Context, x, y int) error {
	r.mu.Lock()
	r.taps = append(r.taps, Tap{x, y})
	fn := r.OnTap
	r.mu.Unlock()
	if fn != nil {
		fn(x, y)
	}
	return nil
}

// Taps returns a copy of the recorded taps.
func (r *Recorder) Taps() []Tap {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Tap, len(r.taps))
	copy(out, r.taps)
	return out
}

// StaticFrames always returns the same image.
type StaticFrames struct {
	Image image.Image
}

// Capture returns the static image.
func (s StaticFrames) Capture(context.Context) (image.Image, error) {
	return s.Image, nil
}

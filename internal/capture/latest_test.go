package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"
)

// countingSource returns frames whose first pixel encodes the call number.
type countingSource struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (s *countingSource) Capture(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return nil, errors.New("device offline")
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(0, 0, color.RGBA{uint8(s.calls), 0, 0, 255})
	return img, nil
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLatest_DirectBeforeFirstFrame(t *testing.T) {
	src := &countingSource{}
	l := NewLatest(src, time.Hour, nil)

	img, err := l.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if img == nil || src.count() != 1 {
		t.Errorf("expected a direct capture, calls = %d", src.count())
	}
	if _, ok := l.Age(); ok {
		t.Error("no frame should be stored by a direct capture")
	}
}

func TestLatest_CopyOnRead(t *testing.T) {
	src := &countingSource{}
	l := NewLatest(src, 5*time.Millisecond, nil)
	l.Start(context.Background())
	defer l.Stop()

	waitFor(t, func() bool { return l.Frames() >= 1 })

	a, err := l.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	rgba := a.(*image.RGBA)
	rgba.SetRGBA(1, 1, color.RGBA{255, 255, 255, 255})

	b, _ := l.Capture(context.Background())
	if got := b.(*image.RGBA).RGBAAt(1, 1); got.R == 255 {
		t.Error("mutating a captured frame leaked into the shared frame")
	}
}

func TestLatest_Refreshes(t *testing.T) {
	src := &countingSource{}
	l := NewLatest(src, 2*time.Millisecond, nil)
	l.Start(context.Background())
	defer l.Stop()

	waitFor(t, func() bool { return l.Frames() >= 3 })
	img, _ := l.Capture(context.Background())
	if r := img.(*image.RGBA).RGBAAt(0, 0).R; r < 3 {
		t.Errorf("frame number %d, expected a recent frame", r)
	}
}

func TestLatest_StopIsIdempotent(t *testing.T) {
	l := NewLatest(&countingSource{}, time.Millisecond, nil)
	l.Stop()
	l.Start(context.Background())
	l.Start(context.Background())
	l.Stop()
	l.Stop()
}

func TestLatest_CountsErrors(t *testing.T) {
	src := &countingSource{fail: true}
	l := NewLatest(src, 2*time.Millisecond, nil)
	l.Start(context.Background())
	defer l.Stop()

	waitFor(t, func() bool { return l.Errors() >= 2 })
	if l.Frames() != 0 {
		t.Errorf("frames = %d, want 0", l.Frames())
	}
	if _, err := l.Capture(context.Background()); err == nil {
		t.Error("expected direct capture error")
	}
}

// Package capture runs a background frame producer and hands consumers a
// private copy of the most recent frame.
package capture

import (
	"context"
	"image"
	"image/draw"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/rucoy-nav/internal/device"
)

// DefaultInterval is the producer's capture period.
const DefaultInterval = 100 * time.Millisecond

// Latest wraps a frame source with a producer goroutine. Capture never
// waits for the producer once a frame is available.
type Latest struct {
	src      device.FrameSource
	interval time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	frame  *image.RGBA
	at     time.Time
	cancel context.CancelFunc
	done   chan struct{}

	frames atomic.Uint64
	errors atomic.Uint64
}

// NewLatest creates a producer over src. interval <= 0 uses DefaultInterval.
func NewLatest(src device.FrameSource, interval time.Duration, logger *zap.Logger) *Latest {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Latest{src: src, interval: interval, logger: logger}
}

// Start launches the producer. It stops when ctx is done or Stop is called.
func (l *Latest) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.loop(ctx, l.done)
}

// Stop halts the producer and waits for it to exit.
func (l *Latest) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *Latest) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		l.grab(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (l *Latest) grab(ctx context.Context) {
	img, err := l.src.Capture(ctx)
	if err != nil {
		if ctx.Err() == nil {
			l.errors.Add(1)
			l.logger.Debug("frame capture failed", zap.Error(err))
		}
		return
	}
	frame := clone(img)

	l.mu.Lock()
	l.frame = frame
	l.at = time.Now()
	l.mu.Unlock()
	l.frames.Add(1)
}

// Capture returns a copy of the latest frame. Before the producer has
// delivered one, it captures directly from the source.
func (l *Latest) Capture(ctx context.Context) (image.Image, error) {
	l.mu.RLock()
	frame := l.frame
	var out *image.RGBA
	if frame != nil {
		out = clone(frame)
	}
	l.mu.RUnlock()

	if out != nil {
		return out, nil
	}
	return l.src.Capture(ctx)
}

// Age returns how old the latest frame is, or false if there is none.
func (l *Latest) Age() (time.Duration, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.frame == nil {
		return 0, false
	}
	return time.Since(l.at), true
}

// Frames returns the number of frames produced.
func (l *Latest) Frames() uint64 { return l.frames.Load() }

// Errors returns the number of failed captures.
func (l *Latest) Errors() uint64 { return l.errors.Load() }

// clone copies img into a new zero-origin RGBA image.
func clone(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}

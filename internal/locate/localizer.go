package locate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/rucoy-nav/internal/clock"
	"github.com/Faultbox/rucoy-nav/internal/device"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// ErrLowConfidence is returned when a fix falls below the minimum confidence.
var ErrLowConfidence = errors.New("position fix below minimum confidence")

// MarkerFinder finds the agent marker inside a processed minimap crop.
type MarkerFinder interface {
	FindMarker(img image.Image) (image.Point, bool)
}

// CenterMarker always reports the crop center.
type CenterMarker struct{}

// FindMarker returns the center of img.
func (CenterMarker) FindMarker(img image.Image) (image.Point, bool) {
	return center(img), true
}

func center(img image.Image) image.Point {
	b := img.Bounds()
	return image.Pt(b.Dx()/2, b.Dy()/2)
}

// LocalizerOptions configures the capture pipeline around an Estimator.
type LocalizerOptions struct {
	// Region is the minimap area in screen pixels.
	Region image.Rectangle

	// OpenMap and CloseMap are tapped before and after the capture when
	// UseMapButtons is set.
	UseMapButtons bool
	OpenMap       math.Point
	CloseMap      math.Point

	// Settle is the wait after each map button tap.
	Settle time.Duration

	Levels Levels

	// MinConfidence rejects weaker fixes with ErrLowConfidence.
	MinConfidence int
}

// DefaultLocalizerOptions returns the standard capture parameters.
func DefaultLocalizerOptions() LocalizerOptions {
	return LocalizerOptions{
		Region:        image.Rect(0, 0, 1600, 900),
		UseMapButtons: true,
		Settle:        300 * time.Millisecond,
		Levels:        IdentityLevels(),
	}
}

// Localizer captures the minimap and turns it into a Fix.
type Localizer struct {
	est    *Estimator
	frames device.FrameSource
	tapper device.Tapper
	marker MarkerFinder
	clock  clock.Clock
	opts   LocalizerOptions
	logger *zap.Logger

	// OnFrame, if set, receives every processed crop with its fix.
	OnFrame func(crop image.Image, fix Fix)
}

// NewLocalizer creates a localizer. marker may be nil to always use the
// crop center; clk may be nil for the wall clock.
func NewLocalizer(est *Estimator, frames device.FrameSource, tapper device.Tapper,
	marker MarkerFinder, clk clock.Clock, opts LocalizerOptions, logger *zap.Logger) *Localizer {
	if marker == nil {
		marker = CenterMarker{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Levels == (Levels{}) {
		opts.Levels = IdentityLevels()
	}
	return &Localizer{
		est:    est,
		frames: frames,
		tapper: tapper,
		marker: marker,
		clock:  clk,
		opts:   opts,
		logger: logger,
	}
}

// Locate opens the map, captures and processes the minimap, estimates the
// position and closes the map again. The map is closed even when a later
// step fails.
func (l *Localizer) Locate(ctx context.Context) (fix Fix, err error) {
	if l.opts.UseMapButtons {
		if err := l.tapper.Tap(ctx, l.opts.OpenMap.X, l.opts.OpenMap.Y); err != nil {
			return Fix{}, fmt.Errorf("opening map: %w", err)
		}
		// The map is open from here on, even if the settle wait is cut short.
		defer func() {
			if cerr := l.press(context.WithoutCancel(ctx), l.opts.CloseMap); cerr != nil {
				err = multierr.Append(err, fmt.Errorf("closing map: %w", cerr))
			}
		}()
		if err := l.clock.Sleep(ctx, l.opts.Settle); err != nil {
			return Fix{}, fmt.Errorf("opening map: %w", err)
		}
	}

	frame, err := l.frames.Capture(ctx)
	if err != nil {
		return Fix{}, fmt.Errorf("capturing frame: %w", err)
	}

	fix, crop, err := l.Process(frame)
	if err != nil {
		return Fix{}, err
	}
	fix.At = l.clock.Now()

	if l.OnFrame != nil {
		l.OnFrame(crop, fix)
	}

	l.logger.Debug("position fix",
		zap.Int("x", fix.Pos.X),
		zap.Int("y", fix.Pos.Y),
		zap.Int("confidence", fix.Confidence),
		zap.Float64("score", fix.Score),
		zap.Int("region", fix.Region))

	if fix.Confidence < l.opts.MinConfidence {
		return fix, fmt.Errorf("%w: %d < %d", ErrLowConfidence, fix.Confidence, l.opts.MinConfidence)
	}
	return fix, nil
}

// Process runs the image pipeline on a full frame: crop, levels, marker
// detection and estimation. It returns the processed crop as well.
func (l *Localizer) Process(frame image.Image) (Fix, image.Image, error) {
	region := l.opts.Region
	if region.Empty() {
		region = frame.Bounds()
	}
	crop := Crop(frame, region)
	if crop.Rect.Empty() {
		return Fix{}, nil, fmt.Errorf("minimap region %v outside frame %v", region, frame.Bounds())
	}
	processed := l.opts.Levels.Apply(crop)

	marker, ok := l.marker.FindMarker(processed)
	if !ok {
		marker = center(processed)
		l.logger.Debug("marker not found, using crop center")
	}

	fix, err := l.est.Estimate(processed, marker)
	if err != nil {
		return Fix{}, processed, err
	}
	return fix, processed, nil
}

func (l *Localizer) press(ctx context.Context, p math.Point) error {
	if err := l.tapper.Tap(ctx, p.X, p.Y); err != nil {
		return err
	}
	return l.clock.Sleep(ctx, l.opts.Settle)
}

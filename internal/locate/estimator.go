// Package locate estimates the agent's absolute world position from a
// minimap capture by correlating it against a reference world image.
package locate

import (
	"errors"
	"fmt"
	"image"
	gomath "math"
	"time"

	"golang.org/x/image/draw"

	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// Estimation errors.
var (
	ErrNoReference  = errors.New("reference world image not available")
	ErrCropTooSmall = errors.New("minimap crop vanishes after downscaling")
	ErrInvalidRatio = errors.New("downscale ratio must be in (0, 1]")
)

// DefaultRatio is the minimap-to-reference scale of the standard calibration.
const DefaultRatio = 0.2

// Fix is an absolute position estimate.
type Fix struct {
	Pos        math.Point
	Confidence int     // 0..100
	Region     int     // region tag at Pos, 0 if unknown
	Score      float64 // raw correlation score
	Offset     image.Point
	At         time.Time
}

// RegionFunc returns the region tag of a world position.
type RegionFunc func(x, y int) int

// EstimatorOptions configures an Estimator.
type EstimatorOptions struct {
	// Ratio is the factor applied to the crop before matching.
	Ratio float64

	// Matcher defaults to NCCMatcher.
	Matcher Matcher

	// Policy defaults to DefaultConfidence.
	Policy ConfidencePolicy

	// Interpolator used for downscaling; defaults to draw.BiLinear.
	Interpolator draw.Interpolator

	// Regions tags fixes with a region id. Optional.
	Regions RegionFunc
}

// Estimator locates minimap crops in the reference world.
type Estimator struct {
	world   *image.Gray
	ratio   float64
	matcher Matcher
	policy  ConfidencePolicy
	interp  draw.Interpolator
	regions RegionFunc
}

// NewEstimator creates an estimator over the reference world image.
func NewEstimator(world image.Image, opts EstimatorOptions) (*Estimator, error) {
	if world == nil || world.Bounds().Empty() {
		return nil, ErrNoReference
	}
	if opts.Ratio == 0 {
		opts.Ratio = DefaultRatio
	}
	if opts.Ratio < 0 || opts.Ratio > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRatio, opts.Ratio)
	}
	if opts.Matcher == nil {
		opts.Matcher = NCCMatcher{}
	}
	if opts.Interpolator == nil {
		opts.Interpolator = draw.BiLinear
	}
	return &Estimator{
		world:   ToGray(world),
		ratio:   opts.Ratio,
		matcher: opts.Matcher,
		policy:  opts.Policy,
		interp:  opts.Interpolator,
		regions: opts.Regions,
	}, nil
}

// World returns the grayscale reference image.
func (e *Estimator) World() *image.Gray { return e.world }

// Ratio returns the downscale ratio.
func (e *Estimator) Ratio() float64 { return e.ratio }

// Estimate locates crop in the world. marker is the agent's pixel position
// inside crop. The returned position is the match offset plus the marker
// offset scaled by the ratio.
func (e *Estimator) Estimate(crop image.Image, marker image.Point) (Fix, error) {
	tmpl, err := e.prepare(crop)
	if err != nil {
		return Fix{}, err
	}

	res, err := e.matcher.Match(e.world, tmpl)
	if err != nil {
		return Fix{}, fmt.Errorf("matching minimap: %w", err)
	}

	pos := math.Vec2{
		X: float64(res.Loc.X) + float64(marker.X)*e.ratio,
		Y: float64(res.Loc.Y) + float64(marker.Y)*e.ratio,
	}.Round()

	fix := Fix{
		Pos:        pos,
		Confidence: e.policy.apply(1 - res.Score),
		Score:      res.Score,
		Offset:     res.Loc,
	}
	if e.regions != nil {
		fix.Region = e.regions(pos.X, pos.Y)
	}
	return fix, nil
}

// prepare converts crop to gray and downscales it by the ratio.
func (e *Estimator) prepare(crop image.Image) (*image.Gray, error) {
	b := crop.Bounds()
	if e.ratio == 1 {
		return ToGray(crop), nil
	}
	w := int(float64(b.Dx()) * e.ratio)
	h := int(float64(b.Dy()) * e.ratio)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: %dx%d at %.2f", ErrCropTooSmall, b.Dx(), b.Dy(), e.ratio)
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	e.interp.Scale(dst, dst.Rect, crop, b, draw.Src, nil)
	return dst, nil
}

// Distance returns the distance between two fixes in world pixels.
func (f Fix) Distance(o Fix) float64 {
	return f.Pos.Dist(o.Pos)
}

// String formats the fix for logs.
func (f Fix) String() string {
	return fmt.Sprintf("%s conf=%d score=%.3f", f.Pos, f.Confidence, clampScore(f.Score))
}

func clampScore(s float64) float64 {
	if gomath.IsInf(s, 0) || gomath.IsNaN(s) {
		return 0
	}
	return s
}

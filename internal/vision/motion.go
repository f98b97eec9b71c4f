package vision

import (
	"context"
	"fmt"
	"image"

	"github.com/Faultbox/rucoy-nav/internal/device"
	"github.com/Faultbox/rucoy-nav/internal/locate"
)

// Motion detection defaults. The client draws a green trail on the
// minimap while the agent walks; the marker sits at the center.
const (
	DefaultExclusionRadius = 40
	DefaultMotionRatio     = 0.005
)

// MotionDetector reports whether the agent is walking by measuring the
// share of trail pixels in the minimap.
type MotionDetector struct {
	frames device.FrameSource

	// Region is the minimap area of a frame; empty means the whole frame.
	Region image.Rectangle

	// Levels is applied to the crop before thresholding.
	Levels locate.Levels

	Range           HSVRange
	ExclusionRadius int
	Threshold       float64
}

// NewMotionDetector returns a detector with the default trail color,
// exclusion radius and threshold.
func NewMotionDetector(frames device.FrameSource, region image.Rectangle, levels locate.Levels) *MotionDetector {
	if levels == (locate.Levels{}) {
		levels = locate.IdentityLevels()
	}
	return &MotionDetector{
		frames:          frames,
		Region:          region,
		Levels:          levels,
		Range:           GreenRange,
		ExclusionRadius: DefaultExclusionRadius,
		Threshold:       DefaultMotionRatio,
	}
}

// Moving captures a frame and reports whether the trail ratio exceeds the
// threshold.
func (d *MotionDetector) Moving(ctx context.Context) (bool, error) {
	frame, err := d.frames.Capture(ctx)
	if err != nil {
		return false, fmt.Errorf("capturing frame: %w", err)
	}
	ratio, err := d.Ratio(frame)
	if err != nil {
		return false, err
	}
	return ratio > d.Threshold, nil
}

// Ratio returns the fraction of trail pixels outside the central exclusion
// circle, relative to the whole crop.
func (d *MotionDetector) Ratio(frame image.Image) (float64, error) {
	region := d.Region
	if region.Empty() {
		region = frame.Bounds()
	}
	crop := locate.Crop(frame, region)
	if crop.Rect.Empty() {
		return 0, fmt.Errorf("minimap region %v outside frame %v", region, frame.Bounds())
	}

	bgr, err := imageToMat(d.Levels.Apply(crop))
	if err != nil {
		return 0, err
	}
	defer bgr.Close()

	mask := hsvMask(bgr, d.Range)
	defer mask.Close()

	rows, cols := mask.Rows(), mask.Cols()
	if rows == 0 || cols == 0 {
		return 0, nil
	}
	data := mask.ToBytes()
	cx, cy := cols/2, rows/2
	r2 := d.ExclusionRadius * d.ExclusionRadius

	count := 0
	for y := 0; y < rows; y++ {
		dy := y - cy
		for x := 0; x < cols; x++ {
			if data[y*cols+x] == 0 {
				continue
			}
			dx := x - cx
			if dx*dx+dy*dy <= r2 {
				continue
			}
			count++
		}
	}
	return float64(count) / float64(rows*cols), nil
}

package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// DefaultThreshold is the channel magnitude a pixel must exceed to be terrain.
const DefaultThreshold = 10

// Options controls raster construction.
type Options struct {
	// Threshold is the 8-bit channel value a pixel's brightest channel must
	// exceed to count as walkable.
	Threshold int

	// Margin is the obstacle inflation radius in world pixels.
	Margin int

	// Palette tags cells with a region id. Optional.
	Palette *Palette
}

// DefaultOptions returns the standard build options.
func DefaultOptions() Options {
	return Options{
		Threshold: DefaultThreshold,
		Margin:    5,
	}
}

// Build converts a reference world image into a walkability raster.
func Build(img image.Image, opts Options) (*Raster, error) {
	if img == nil {
		return nil, ErrNoReference
	}
	if opts.Margin < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMargin, opts.Margin)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, ErrEmptyImage
	}

	threshold := uint8(clampInt(opts.Threshold, 0, 255))

	base := make([]bool, w*h)
	var region []uint8
	if opts.Palette != nil {
		region = make([]uint8, w*h)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := rgbaAt(img, b.Min.X+x, b.Min.Y+y)
			i := y*w + x
			base[i] = max(c.R, c.G, c.B) > threshold
			if region != nil && base[i] {
				region[i] = uint8(opts.Palette.Classify(c))
			}
		}
	}

	walk := base
	if opts.Margin > 0 {
		walk = erode(base, w, h, opts.Margin)
	}

	return &Raster{
		width:   w,
		height:  h,
		margin:  opts.Margin,
		walk:    walk,
		base:    base,
		region:  region,
		palette: opts.Palette,
	}, nil
}

// erode returns the walkable mask after dilating obstacles by a disc of the
// given radius. A cell stays walkable only if no obstacle falls inside the
// disc centered on it. The area outside the image does not count as obstacle.
func erode(base []bool, w, h, radius int) []bool {
	// Prefix sums of obstacle counts per row: blocked[y*(w+1)+x] counts
	// obstacles in row y over columns [0, x).
	stride := w + 1
	blocked := make([]int32, stride*h)
	for y := 0; y < h; y++ {
		row := blocked[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			row[x+1] = row[x]
			if !base[y*w+x] {
				row[x+1]++
			}
		}
	}

	spans := discSpans(radius)
	out := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !base[y*w+x] {
				continue
			}
			out[y*w+x] = discClear(blocked, stride, w, h, x, y, radius, spans)
		}
	}
	return out
}

// discSpans returns the half-width of each row of an elliptical
// structuring element of size 2r+1, indexed by dy+r.
func discSpans(r int) []int {
	spans := make([]int, 2*r+1)
	for dy := -r; dy <= r; dy++ {
		spans[dy+r] = int(math.Round(math.Sqrt(float64(r*r - dy*dy))))
	}
	return spans
}

func discClear(blocked []int32, stride, w, h, x, y, r int, spans []int) bool {
	for dy := -r; dy <= r; dy++ {
		yy := y + dy
		hw := spans[dy+r]
		if yy < 0 || yy >= h {
			continue
		}
		x0 := clampInt(x-hw, 0, w)
		x1 := clampInt(x+hw+1, 0, w)
		row := blocked[yy*stride:]
		if row[x1]-row[x0] > 0 {
			return false
		}
	}
	return true
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	switch src := img.(type) {
	case *image.RGBA:
		i := src.PixOffset(x, y)
		return color.RGBA{src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3]}
	case *image.NRGBA:
		i := src.PixOffset(x, y)
		return color.RGBA{src.Pix[i], src.Pix[i+1], src.Pix[i+2], 255}
	}
	r, g, b, _ := img.At(x, y).RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 255}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Package raster builds the walkability grid the planner searches over.
//
// A raster is derived once from a reference color image of the whole world:
// colored pixels are terrain, near-black pixels are void. Obstacles are then
// inflated by a circular safety margin. The result is immutable.
package raster

import (
	"errors"
	"image"

	"github.com/Faultbox/rucoy-nav/pkg/formats"
)

// Raster errors.
var (
	ErrNoReference   = errors.New("reference world image not available")
	ErrEmptyImage    = errors.New("reference world image is empty")
	ErrInvalidMargin = errors.New("safety margin must not be negative")
)

// Raster is a walkability grid over world-pixel coordinates.
type Raster struct {
	width  int
	height int
	margin int

	walk   []bool // after margin dilation
	base   []bool // before margin dilation
	region []uint8

	palette *Palette
}

// Width returns the raster width in world pixels.
func (r *Raster) Width() int { return r.width }

// Height returns the raster height in world pixels.
func (r *Raster) Height() int { return r.height }

// Margin returns the safety margin the raster was built with.
func (r *Raster) Margin() int { return r.margin }

// Bounds returns the raster extent.
func (r *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.width, r.height)
}

// Palette returns the zone palette used to tag regions, or nil.
func (r *Raster) Palette() *Palette { return r.palette }

// InBounds reports whether (x, y) lies inside the raster.
func (r *Raster) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < r.width && y < r.height
}

// Walkable reports whether (x, y) is walkable after the safety margin.
// Out of bounds cells are never walkable.
func (r *Raster) Walkable(x, y int) bool {
	if !r.InBounds(x, y) {
		return false
	}
	return r.walk[y*r.width+x]
}

// BaseWalkable reports whether (x, y) is walkable before the safety margin.
func (r *Raster) BaseWalkable(x, y int) bool {
	if !r.InBounds(x, y) {
		return false
	}
	return r.base[y*r.width+x]
}

// Region returns the region tag at (x, y); 0 means unknown.
func (r *Raster) Region(x, y int) int {
	if !r.InBounds(x, y) || r.region == nil {
		return 0
	}
	return int(r.region[y*r.width+x])
}

// WalkableNear reports whether any cell in the (2*radius+1)² neighborhood
// around (x, y) is walkable. A radius of 0 is a single-cell check.
func (r *Raster) WalkableNear(x, y, radius int) bool {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if r.Walkable(x+dx, y+dy) {
				return true
			}
		}
	}
	return false
}

// Base returns a view of the raster without the safety margin.
// The view shares storage with r.
func (r *Raster) Base() *Raster {
	if r.margin == 0 {
		return r
	}
	return &Raster{
		width:   r.width,
		height:  r.height,
		walk:    r.base,
		base:    r.base,
		region:  r.region,
		palette: r.palette,
	}
}

// Stats summarizes a raster.
type Stats struct {
	Width, Height int
	Margin        int
	Walkable      int
	BaseWalkable  int
	Regions       map[int]int
}

// Percent returns the share of walkable cells after the margin.
func (s Stats) Percent() float64 {
	total := s.Width * s.Height
	if total == 0 {
		return 0
	}
	return float64(s.Walkable) * 100 / float64(total)
}

// Stats counts walkable cells and cells per region.
func (r *Raster) Stats() Stats {
	s := Stats{
		Width:   r.width,
		Height:  r.height,
		Margin:  r.margin,
		Regions: make(map[int]int),
	}
	for i := range r.walk {
		if r.walk[i] {
			s.Walkable++
		}
		if r.base[i] {
			s.BaseWalkable++
		}
		if r.region != nil && r.region[i] != 0 {
			s.Regions[int(r.region[i])]++
		}
	}
	return s
}

// WLK converts the raster to its cache file representation.
func (r *Raster) WLK() *formats.WLK {
	w := &formats.WLK{
		Version: formats.WLKVersion{Major: formats.WLKMajor, Minor: formats.WLKMinor},
		Margin:  uint16(r.margin),
		Width:   uint32(r.width),
		Height:  uint32(r.height),
		Cells:   make([]formats.WLKCell, len(r.walk)),
	}
	for i := range r.walk {
		region := 0
		if r.region != nil {
			region = int(r.region[i])
		}
		w.Cells[i] = formats.NewWLKCell(r.walk[i], r.base[i], region)
	}
	return w
}

// FromWLK rebuilds a raster from a cache file.
func FromWLK(w *formats.WLK, palette *Palette) *Raster {
	n := int(w.Width) * int(w.Height)
	r := &Raster{
		width:   int(w.Width),
		height:  int(w.Height),
		margin:  int(w.Margin),
		walk:    make([]bool, n),
		base:    make([]bool, n),
		region:  make([]uint8, n),
		palette: palette,
	}
	for i, c := range w.Cells[:n] {
		r.walk[i] = c.IsWalkable()
		r.base[i] = c.IsBaseWalkable()
		r.region[i] = uint8(c.Region())
	}
	return r
}

// FromMask builds a raster directly from a walkability mask with no margin.
// mask must hold width*height entries in row-major order.
func FromMask(width, height int, mask []bool) *Raster {
	walk := make([]bool, width*height)
	copy(walk, mask)
	return &Raster{
		width:  width,
		height: height,
		walk:   walk,
		base:   walk,
	}
}

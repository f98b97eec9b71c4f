// Package viewport maps world coordinates onto the on-screen game view and
// chooses where to tap next.
//
// The agent is always drawn at the center of the view, so every transform is
// relative to the believed world position.
package viewport

import (
	"errors"
	"fmt"
	"image"
	gomath "math"

	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// ErrInvalidGeometry is returned by Validate.
var ErrInvalidGeometry = errors.New("invalid viewport geometry")

// Geometry describes the on-screen game view.
type Geometry struct {
	// Region is the screen rectangle showing the world.
	Region image.Rectangle

	// MarginX and MarginY exclude UI strips along the region's edges from
	// the clickable area, in screen pixels.
	MarginX int
	MarginY int

	// ScaleX and ScaleY convert world pixels to screen pixels.
	ScaleX float64
	ScaleY float64
}

// DefaultGeometry returns the calibration of a 1600x900 view at scale 5.
func DefaultGeometry() Geometry {
	return Geometry{
		Region:  image.Rect(0, 0, 1600, 900),
		MarginX: 120,
		MarginY: 100,
		ScaleX:  5,
		ScaleY:  5,
	}
}

// Validate checks the geometry for usable values.
func (g Geometry) Validate() error {
	if g.Region.Empty() {
		return fmt.Errorf("%w: empty region %v", ErrInvalidGeometry, g.Region)
	}
	if g.ScaleX <= 0 || g.ScaleY <= 0 {
		return fmt.Errorf("%w: scale %.3fx%.3f", ErrInvalidGeometry, g.ScaleX, g.ScaleY)
	}
	if g.MarginX < 0 || g.MarginY < 0 || 2*g.MarginX >= g.Region.Dx() || 2*g.MarginY >= g.Region.Dy() {
		return fmt.Errorf("%w: margins %dx%d leave no clickable area", ErrInvalidGeometry, g.MarginX, g.MarginY)
	}
	return nil
}

// Center returns the screen position of the agent.
func (g Geometry) Center() math.Point {
	return math.Point{
		X: g.Region.Min.X + g.Region.Dx()/2,
		Y: g.Region.Min.Y + g.Region.Dy()/2,
	}
}

// FieldOfView returns the half extents of the visible world area.
func (g Geometry) FieldOfView() math.Vec2 {
	return math.Vec2{
		X: float64(g.Region.Dx()) / 2 / g.ScaleX,
		Y: float64(g.Region.Dy()) / 2 / g.ScaleY,
	}
}

// Clickable returns the UI-safe part of the region. Both Min and Max are
// valid tap coordinates.
func (g Geometry) Clickable() image.Rectangle {
	return image.Rect(
		g.Region.Min.X+g.MarginX,
		g.Region.Min.Y+g.MarginY,
		g.Region.Max.X-g.MarginX,
		g.Region.Max.Y-g.MarginY,
	)
}

// MaxClickDistance returns the largest world distance that is clickable
// in every direction from the center.
func (g Geometry) MaxClickDistance() float64 {
	rx := gomath.Floor(float64(g.Region.Dx()-2*g.MarginX) / 2 / g.ScaleX)
	ry := gomath.Floor(float64(g.Region.Dy()-2*g.MarginY) / 2 / g.ScaleY)
	return gomath.Min(rx, ry)
}

// State is the viewport at one instant: a geometry centered on the
// believed world position.
type State struct {
	Geometry
	Believed math.Point
}

// At returns the state of g centered on believed.
func (g Geometry) At(believed math.Point) State {
	return State{Geometry: g, Believed: believed}
}

// WorldToScreen converts a world position to screen pixels.
func (s State) WorldToScreen(w math.Point) math.Point {
	c := s.Center()
	return math.Point{
		X: int(gomath.Round(float64(c.X) + float64(w.X-s.Believed.X)*s.ScaleX)),
		Y: int(gomath.Round(float64(c.Y) + float64(w.Y-s.Believed.Y)*s.ScaleY)),
	}
}

// ScreenToWorld converts screen pixels to a world position.
func (s State) ScreenToWorld(p math.Point) math.Point {
	c := s.Center()
	return math.Point{
		X: s.Believed.X + int(gomath.Round(float64(p.X-c.X)/s.ScaleX)),
		Y: s.Believed.Y + int(gomath.Round(float64(p.Y-c.Y)/s.ScaleY)),
	}
}

// InFieldOfView reports whether w is visible on screen.
func (s State) InFieldOfView(w math.Point) bool {
	fov := s.FieldOfView()
	return gomath.Abs(float64(w.X-s.Believed.X)) <= fov.X &&
		gomath.Abs(float64(w.Y-s.Believed.Y)) <= fov.Y
}

// IsClickable reports whether a screen position lies in the clickable area.
func (s State) IsClickable(p math.Point) bool {
	r := s.Clickable()
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// VisibleWorld returns the world rectangle shown on screen.
func (s State) VisibleWorld() image.Rectangle {
	fov := s.FieldOfView()
	fx, fy := int(fov.X), int(fov.Y)
	return image.Rect(s.Believed.X-fx, s.Believed.Y-fy, s.Believed.X+fx+1, s.Believed.Y+fy+1)
}

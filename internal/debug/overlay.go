package debug

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/Faultbox/rucoy-nav/internal/pathfind"
	"github.com/Faultbox/rucoy-nav/internal/raster"
	"github.com/Faultbox/rucoy-nav/internal/viewport"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// Overlay colors.
var (
	ColorWalkable = color.RGBA{40, 90, 40, 255}
	ColorMargin   = color.RGBA{90, 90, 40, 255}
	ColorBlocked  = color.RGBA{0, 0, 0, 255}
	ColorRaw      = color.RGBA{80, 80, 220, 255}
	ColorWaypoint = color.RGBA{255, 255, 255, 255}
	ColorGoal     = color.RGBA{255, 60, 60, 255}
	ColorAgent    = color.RGBA{0, 255, 255, 255}
	ColorView     = color.RGBA{255, 200, 0, 255}
)

// RouteOverlay renders a raster with a route on top.
type RouteOverlay struct {
	Raster *raster.Raster
	Route  pathfind.Route

	// View, if set, outlines the visible and clickable world areas
	// around its believed position.
	View *viewport.State
}

// Render draws the overlay at one pixel per world cell.
func (o RouteOverlay) Render() *image.RGBA {
	r := o.Raster
	img := image.NewRGBA(r.Bounds())
	for y := 0; y < r.Height(); y++ {
		for x := 0; x < r.Width(); x++ {
			c := ColorBlocked
			switch {
			case r.Walkable(x, y):
				c = ColorWalkable
			case r.BaseWalkable(x, y):
				c = ColorMargin
			}
			img.SetRGBA(x, y, c)
		}
	}

	for _, p := range o.Route.Raw {
		img.SetRGBA(p.X, p.Y, ColorRaw)
	}
	for i := 1; i < len(o.Route.Waypoints); i++ {
		pathfind.Line(o.Route.Waypoints[i-1], o.Route.Waypoints[i], func(x, y int) bool {
			img.SetRGBA(x, y, ColorWaypoint)
			return true
		})
	}
	for _, wp := range o.Route.Waypoints {
		dot(img, wp, 1, ColorWaypoint)
	}
	if len(o.Route.Waypoints) > 0 {
		dot(img, o.Route.Goal, 2, ColorGoal)
	}

	if o.View != nil {
		outline(img, o.View.VisibleWorld(), ColorView)
		click := o.View.Clickable()
		lo := o.View.ScreenToWorld(math.FromImage(click.Min))
		hi := o.View.ScreenToWorld(math.FromImage(click.Max))
		outline(img, image.Rect(lo.X, lo.Y, hi.X+1, hi.Y+1), ColorGoal)
		dot(img, o.View.Believed, 2, ColorAgent)
	}
	return img
}

// WritePNG renders the overlay into path.
func (o RouteOverlay) WritePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating overlay: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, o.Render()); err != nil {
		return fmt.Errorf("encoding overlay: %w", err)
	}
	return nil
}

func dot(img *image.RGBA, p math.Point, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			img.SetRGBA(p.X+dx, p.Y+dy, c)
		}
	}
}

func outline(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

package pathfind

import (
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// SimplifyOptions bounds the spacing between simplified waypoints.
type SimplifyOptions struct {
	MinSpacing float64
	MaxSpacing float64
}

// DefaultSimplifyOptions returns the standard waypoint spacing.
func DefaultSimplifyOptions() SimplifyOptions {
	return SimplifyOptions{MinSpacing: 50, MaxSpacing: 100}
}

// LineOfSight reports whether every cell on the Bresenham line from a to b,
// endpoints included, is walkable.
func (pf *Finder) LineOfSight(a, b math.Point) bool {
	return LineOfSight(pf.grid, a, b)
}

// LineOfSight reports whether every cell on the Bresenham line from a to b,
// endpoints included, is walkable on g.
func LineOfSight(g Grid, a, b math.Point) bool {
	ok := true
	Line(a, b, func(x, y int) bool {
		if x < 0 || y < 0 || x >= g.Width() || y >= g.Height() || !g.Walkable(x, y) {
			ok = false
			return false
		}
		return true
	})
	return ok
}

// Line visits the cells of the Bresenham line from a to b in order until
// visit returns false.
func Line(a, b math.Point, visit func(x, y int) bool) {
	dx := math.Abs(b.X - a.X)
	dy := math.Abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx - dy

	x, y := a.X, a.Y
	for {
		if !visit(x, y) {
			return
		}
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}

// Simplify reduces a raw path to waypoints joined by straight, unobstructed
// segments.
//
// From the current point it scans backward from the end of the path and
// takes the farthest point whose distance lies in [MinSpacing, MaxSpacing]
// and which is in line of sight. Failing that, it takes the nearest point at
// least MinSpacing away that is in line of sight, and finally the next raw
// point. The first and last raw points are always kept.
func (pf *Finder) Simplify(raw []math.Point, opts SimplifyOptions) []math.Point {
	return Simplify(pf.grid, raw, opts)
}

// Simplify is the Grid form of Finder.Simplify.
func Simplify(g Grid, raw []math.Point, opts SimplifyOptions) []math.Point {
	if len(raw) <= 2 {
		out := make([]math.Point, len(raw))
		copy(out, raw)
		return out
	}

	simplified := []math.Point{raw[0]}
	current := 0
	last := len(raw) - 1

	for current < last {
		from := raw[current]
		best := -1

		for i := last; i > current; i-- {
			d := from.Dist(raw[i])
			if d < opts.MinSpacing || d > opts.MaxSpacing {
				continue
			}
			if LineOfSight(g, from, raw[i]) {
				best = i
				break
			}
		}

		if best < 0 {
			for i := current + 1; i <= last; i++ {
				if from.Dist(raw[i]) >= opts.MinSpacing && LineOfSight(g, from, raw[i]) {
					best = i
					break
				}
			}
		}

		if best < 0 {
			best = current + 1
		}

		simplified = append(simplified, raw[best])
		current = best
	}

	return simplified
}

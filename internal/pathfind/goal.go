package pathfind

import (
	gomath "math"

	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// NearestWalkable searches rings of increasing radius around p for a
// walkable cell and returns the first one found. Within a ring, angles are
// visited counter-clockwise from the positive X axis.
func (pf *Finder) NearestWalkable(p math.Point) (math.Point, bool) {
	if pf == nil {
		return math.Point{}, false
	}
	for r := pf.opts.RingStep; r < pf.opts.RingMax; r += pf.opts.RingStep {
		for deg := 0; deg < 360; deg += pf.opts.AngleStep {
			rad := float64(deg) * gomath.Pi / 180
			x := int(float64(p.X) + float64(r)*gomath.Cos(rad))
			y := int(float64(p.Y) + float64(r)*gomath.Sin(rad))
			if pf.IsWalkable(x, y) {
				return math.Point{X: x, Y: y}, true
			}
		}
	}
	return math.Point{}, false
}

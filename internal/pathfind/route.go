package pathfind

import (
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// Route is a planned, simplified path. It is never mutated after Plan
// returns; followers keep their own cursor into Waypoints.
type Route struct {
	Raw       []math.Point
	Waypoints []math.Point

	// Requested is the goal passed to Plan; Goal is the effective goal.
	Requested    math.Point
	Goal         math.Point
	GoalAdjusted bool
}

// Len returns the number of waypoints.
func (r Route) Len() int { return len(r.Waypoints) }

// Empty reports whether the route has no waypoints.
func (r Route) Empty() bool { return len(r.Waypoints) == 0 }

// Length returns the summed straight-line length of the waypoints.
func (r Route) Length() float64 {
	var total float64
	for i := 1; i < len(r.Waypoints); i++ {
		total += r.Waypoints[i-1].Dist(r.Waypoints[i])
	}
	return total
}

// Plan finds a path from start to goal and simplifies it.
func (pf *Finder) Plan(start, goal math.Point, opts SimplifyOptions) (Route, error) {
	res, err := pf.FindPath(start, goal)
	if err != nil {
		return Route{}, err
	}
	return Route{
		Raw:          res.Raw,
		Waypoints:    pf.Simplify(res.Raw, opts),
		Requested:    goal,
		Goal:         res.Goal,
		GoalAdjusted: res.GoalAdjusted,
	}, nil
}

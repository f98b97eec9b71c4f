package viewport

import (
	"github.com/Faultbox/rucoy-nav/internal/pathfind"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// Surface answers walkability queries in world coordinates.
type Surface interface {
	Walkable(x, y int) bool
}

// PlannerOptions tunes waypoint selection.
type PlannerOptions struct {
	// MinClick is the smallest world distance worth a tap.
	MinClick float64

	// MaxClick is the largest world distance to tap. Zero uses the
	// geometry's MaxClickDistance.
	MaxClick float64

	// Neighborhood is the radius of the obstacle check around a target.
	// A target is an obstacle only if no cell within it is walkable.
	Neighborhood int

	// ResyncDistance is how far the believed position may be from the
	// cursor waypoint before the cursor is moved to the nearest waypoint.
	ResyncDistance float64
}

// DefaultPlannerOptions returns the standard selection parameters.
func DefaultPlannerOptions() PlannerOptions {
	return PlannerOptions{
		MinClick:       30,
		Neighborhood:   1,
		ResyncDistance: 50,
	}
}

// ClickPlan is a resolved tap. Plans are computed fresh on every tick.
type ClickPlan struct {
	Target math.Point `json:"target"` // world position to reach
	Screen math.Point `json:"screen"` // where to tap

	// Index is the waypoint index of Target, or -1 for the goal.
	Index int `json:"index"`

	InsideViewport bool `json:"inside_viewport"` // Screen lies in the clickable area
	IsObstacle     bool `json:"is_obstacle"`     // no walkable cell around Target

	Direct    bool `json:"direct"`    // Target is the goal, tapped without intermediate waypoints
	Fallback  bool `json:"fallback"`  // no waypoint satisfied every constraint
	Exhausted bool `json:"exhausted"` // no waypoint left ahead; Target is the goal
}

// Tappable reports whether the plan may be executed.
func (p ClickPlan) Tappable() bool {
	return p.InsideViewport && !p.IsObstacle
}

// Planner walks a route one tap at a time. It keeps a cursor into the
// route's waypoints and never modifies the route itself.
type Planner struct {
	surface Surface
	opts    PlannerOptions

	waypoints []math.Point
	goal      math.Point
	cursor    int

	// suppressDirect disables the direct-goal shortcut for this many plans.
	suppressDirect int
}

// NewPlanner creates a planner over surface.
func NewPlanner(surface Surface, opts PlannerOptions) *Planner {
	d := DefaultPlannerOptions()
	if opts.MinClick <= 0 {
		opts.MinClick = d.MinClick
	}
	if opts.Neighborhood < 0 {
		opts.Neighborhood = 0
	}
	if opts.ResyncDistance <= 0 {
		opts.ResyncDistance = d.ResyncDistance
	}
	return &Planner{surface: surface, opts: opts}
}

// SetRoute starts following route.
func (p *Planner) SetRoute(route pathfind.Route) {
	p.waypoints = route.Waypoints
	p.goal = route.Goal
	p.cursor = 0
	p.suppressDirect = 0
}

// Reset forgets the route.
func (p *Planner) Reset() {
	p.waypoints = nil
	p.goal = math.Point{}
	p.cursor = 0
	p.suppressDirect = 0
}

// Cursor returns the index of the waypoint currently being pursued.
func (p *Planner) Cursor() int { return p.cursor }

// Goal returns the goal of the current route.
func (p *Planner) Goal() math.Point { return p.goal }

// Remaining returns the number of waypoints from the cursor onward.
func (p *Planner) Remaining() int {
	if p.cursor >= len(p.waypoints) {
		return 0
	}
	return len(p.waypoints) - p.cursor
}

// SkipAhead advances the cursor by n waypoints and disables the direct
// goal shortcut for the next plan.
func (p *Planner) SkipAhead(n int) {
	if len(p.waypoints) == 0 {
		return
	}
	p.cursor = min(p.cursor+n, len(p.waypoints)-1)
	p.suppressDirect = 1
}

// Relocate moves the cursor to the waypoint nearest here over the whole
// route, backwards included. Used when a fix shows the agent behind the
// cursor.
func (p *Planner) Relocate(here math.Point) {
	if len(p.waypoints) == 0 {
		return
	}
	nearest, nearestDist := 0, here.Dist(p.waypoints[0])
	for i := 1; i < len(p.waypoints); i++ {
		if d := here.Dist(p.waypoints[i]); d < nearestDist {
			nearest, nearestDist = i, d
		}
	}
	p.cursor = nearest
}

// IsObstacle reports whether no cell in the neighborhood of w is walkable.
func (p *Planner) IsObstacle(w math.Point) bool {
	r := p.opts.Neighborhood
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if p.surface.Walkable(w.X+dx, w.Y+dy) {
				return false
			}
		}
	}
	return true
}

// MaxClick returns the maximum tap distance for geometry g.
func (p *Planner) MaxClick(g Geometry) float64 {
	if p.opts.MaxClick > 0 {
		return p.opts.MaxClick
	}
	return g.MaxClickDistance()
}

// Plan chooses the next tap for viewport state s.
//
// In order of preference: the goal itself when it is visible, far enough,
// walkable and clickable; the farthest waypoint ahead of the cursor that is
// visible, within [MinClick, MaxClick], walkable and clickable; the nearest
// waypoint ahead beyond MinClick; the goal. Targets whose screen position
// falls outside the clickable area are flagged, never clamped.
func (p *Planner) Plan(s State) ClickPlan {
	here := s.Believed
	suppress := p.suppressDirect > 0
	if p.suppressDirect > 0 {
		p.suppressDirect--
	}

	if !suppress {
		if plan, ok := p.direct(s); ok {
			return plan
		}
	}

	p.resync(here)

	maxClick := p.MaxClick(s.Geometry)
	best, bestDist := -1, -1.0
	for i := p.cursor; i < len(p.waypoints); i++ {
		wp := p.waypoints[i]
		d := here.Dist(wp)
		if d < p.opts.MinClick || d > maxClick || d <= bestDist {
			continue
		}
		if !s.InFieldOfView(wp) || p.IsObstacle(wp) || !s.IsClickable(s.WorldToScreen(wp)) {
			continue
		}
		best, bestDist = i, d
	}
	if best >= 0 {
		p.cursor = best
		return p.resolve(s, p.waypoints[best], best)
	}

	for i := p.cursor; i < len(p.waypoints); i++ {
		if here.Dist(p.waypoints[i]) >= p.opts.MinClick {
			p.cursor = i
			plan := p.resolve(s, p.waypoints[i], i)
			plan.Fallback = true
			return plan
		}
	}

	plan := p.resolve(s, p.goal, -1)
	plan.Fallback = true
	plan.Exhausted = true
	return plan
}

func (p *Planner) direct(s State) (ClickPlan, bool) {
	if len(p.waypoints) == 0 {
		return ClickPlan{}, false
	}
	if !s.InFieldOfView(p.goal) || s.Believed.Dist(p.goal) < p.opts.MinClick {
		return ClickPlan{}, false
	}
	plan := p.resolve(s, p.goal, -1)
	if !plan.Tappable() {
		return ClickPlan{}, false
	}
	plan.Direct = true
	return plan, true
}

// resync moves the cursor forward to the nearest waypoint when dead
// reckoning or a fresh fix has carried the agent away from the cursor
// waypoint. The scan in Plan skips it if it is now closer than MinClick.
func (p *Planner) resync(here math.Point) {
	if p.cursor >= len(p.waypoints) {
		return
	}
	if here.Dist(p.waypoints[p.cursor]) <= p.opts.ResyncDistance {
		return
	}
	nearest, nearestDist := p.cursor, here.Dist(p.waypoints[p.cursor])
	for i := p.cursor + 1; i < len(p.waypoints); i++ {
		if d := here.Dist(p.waypoints[i]); d < nearestDist {
			nearest, nearestDist = i, d
		}
	}
	if nearestDist < p.opts.ResyncDistance {
		p.cursor = nearest
	}
}

func (p *Planner) resolve(s State, target math.Point, index int) ClickPlan {
	screen := s.WorldToScreen(target)
	return ClickPlan{
		Target:         target,
		Screen:         screen,
		Index:          index,
		InsideViewport: s.IsClickable(screen),
		IsObstacle:     p.IsObstacle(target),
	}
}

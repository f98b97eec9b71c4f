package nav

import (
	"time"

	"github.com/Faultbox/rucoy-nav/internal/locate"
	"github.com/Faultbox/rucoy-nav/internal/pathfind"
	"github.com/Faultbox/rucoy-nav/internal/viewport"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// Status is a read-only snapshot of the engine, published after every
// state change.
type Status struct {
	Session string      `json:"session"`
	State   State       `json:"state"`
	Motion  MotionState `json:"motion"`

	// Confidence is that of the last fix, or 0 while dead reckoning.
	Position   math.Point `json:"position"`
	Confidence int        `json:"confidence"`
	Region     int        `json:"region"`
	RegionName string     `json:"region_name,omitempty"`

	Goal         math.Point `json:"goal"`
	GoalAdjusted bool       `json:"goal_adjusted"`
	Cursor       int        `json:"cursor"`
	Waypoints    int        `json:"waypoints"`

	Steps         int `json:"steps"`
	Fixes         int `json:"fixes"`
	MovesSinceFix int `json:"moves_since_fix"`
	StuckCount    int `json:"stuck_count"`
	Escalations   int `json:"escalations"`

	LastPlan *viewport.ClickPlan `json:"last_plan,omitempty"`
	Drift    DriftStats          `json:"drift"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DriftStats tracks how far dead reckoning had drifted from each fresh fix.
type DriftStats struct {
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean"`
	Max     float64 `json:"max"`
	Last    float64 `json:"last"`
}

// Add records one correction of size d.
func (s *DriftStats) Add(d float64) {
	s.Samples++
	s.Mean += (d - s.Mean) / float64(s.Samples)
	s.Max = max(s.Max, d)
	s.Last = d
}

// Outcome summarizes a finished session.
type Outcome struct {
	Session string
	Final   Status

	// Fix is the last fresh position fix of the session.
	Fix   locate.Fix
	Route pathfind.Route

	Steps   int
	Fixes   int
	Elapsed time.Duration
}

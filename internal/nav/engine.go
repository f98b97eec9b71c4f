package nav

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/rucoy-nav/internal/clock"
	"github.com/Faultbox/rucoy-nav/internal/locate"
	"github.com/Faultbox/rucoy-nav/internal/pathfind"
	"github.com/Faultbox/rucoy-nav/internal/raster"
	"github.com/Faultbox/rucoy-nav/internal/viewport"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// Session errors.
var (
	ErrInitialFix = errors.New("initial position fix failed")
	ErrNoPath     = errors.New("no path to goal")
	ErrStalled    = errors.New("navigation stalled")
	ErrStepBudget = errors.New("step budget exhausted")
	ErrRunning    = errors.New("session already running")
	ErrNoRaster   = errors.New("walkability raster not available")
)

// Localizer produces absolute position fixes.
type Localizer interface {
	Locate(ctx context.Context) (locate.Fix, error)
}

// Tapper injects taps at screen coordinates.
type Tapper interface {
	Tap(ctx context.Context, x, y int) error
}

// MotionSensor reports whether the agent is currently walking.
type MotionSensor interface {
	Moving(ctx context.Context) (bool, error)
}

// Deps are the engine's collaborators.
type Deps struct {
	Localizer Localizer
	Tapper    Tapper

	// Motion may be nil; every tap is then treated as an instant move.
	Motion MotionSensor

	Clock  clock.Clock
	Logger *zap.Logger
}

// Engine runs navigation sessions. Only one session runs at a time;
// Snapshot, Route, RequestFix and OnUpdate may be called concurrently.
type Engine struct {
	raster  *raster.Raster
	geom    viewport.Geometry
	cfg     Config
	finder  *pathfind.Finder
	base    *pathfind.Finder
	planner *viewport.Planner

	loc    Localizer
	tapper Tapper
	motion MotionSensor
	clock  clock.Clock
	logger *zap.Logger

	running      atomic.Bool
	fixRequested atomic.Bool

	mu        sync.RWMutex
	status    Status
	route     pathfind.Route
	listeners []func(Status)

	// Session state, owned by Run.
	believed     math.Point
	lastFix      locate.Fix
	moves        int
	steps        int
	stuck        int
	escalations  int
	forceFix     bool
	jumpRejects  int
	skippedTicks int
}

// New creates an engine. The simplified waypoint spacing is capped to the
// planner's maximum tap distance so every waypoint can be tapped directly.
func New(r *raster.Raster, geom viewport.Geometry, cfg Config, deps Deps) (*Engine, error) {
	if r == nil {
		return nil, ErrNoRaster
	}
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Localizer == nil || deps.Tapper == nil {
		return nil, fmt.Errorf("%w: localizer and tapper are required", ErrInvalidConfig)
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	planner := viewport.NewPlanner(r.Base(), cfg.Planner)
	if maxClick := planner.MaxClick(geom); cfg.Simplify.MaxSpacing > maxClick {
		cfg.Simplify.MaxSpacing = maxClick
		cfg.Simplify.MinSpacing = min(cfg.Simplify.MinSpacing, maxClick)
	}

	e := &Engine{
		raster:  r,
		geom:    geom,
		cfg:     cfg,
		finder:  pathfind.NewFinder(r, cfg.Pathfind),
		base:    pathfind.NewFinder(r.Base(), cfg.Pathfind),
		planner: planner,
		loc:     deps.Localizer,
		tapper:  deps.Tapper,
		motion:  deps.Motion,
		clock:   deps.Clock,
		logger:  deps.Logger,
	}
	e.status.UpdatedAt = e.clock.Now()
	return e, nil
}

// Config returns the effective session config.
func (e *Engine) Config() Config { return e.cfg }

// Geometry returns the viewport geometry.
func (e *Engine) Geometry() viewport.Geometry { return e.geom }

// Snapshot returns the latest status.
func (e *Engine) Snapshot() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Route returns the route of the current or last session.
func (e *Engine) Route() pathfind.Route {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.route
}

// Drift returns the dead reckoning drift statistics of the session.
func (e *Engine) Drift() DriftStats {
	return e.Snapshot().Drift
}

// RequestFix asks the running session to re-localize after the next move.
func (e *Engine) RequestFix() {
	e.fixRequested.Store(true)
}

// OnUpdate registers fn to receive every published status. fn is called
// from the session goroutine and must not block.
func (e *Engine) OnUpdate(fn func(Status)) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

// update applies fn to the status and publishes the result.
func (e *Engine) update(fn func(s *Status)) {
	e.mu.Lock()
	fn(&e.status)
	e.status.UpdatedAt = e.clock.Now()
	snap := e.status
	listeners := e.listeners
	e.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (e *Engine) setState(st State) {
	e.update(func(s *Status) { s.State = st })
}

// Plan computes a route without running a session. The margin raster is
// tried first, then the raster without margin.
func (e *Engine) Plan(start, goal math.Point) (pathfind.Route, error) {
	route, err := e.finder.Plan(start, goal, e.cfg.Simplify)
	if err == nil {
		return route, nil
	}
	e.logger.Debug("no path with safety margin, retrying without",
		zap.Stringer("start", start),
		zap.Stringer("goal", goal),
		zap.Error(err))

	route, berr := e.base.Plan(start, goal, e.cfg.Simplify)
	if berr != nil {
		return pathfind.Route{}, fmt.Errorf("%w: %w", ErrNoPath, berr)
	}
	return route, nil
}

// Locate takes a single fix outside of a session.
func (e *Engine) Locate(ctx context.Context) (locate.Fix, error) {
	if !e.running.CompareAndSwap(false, true) {
		return locate.Fix{}, ErrRunning
	}
	defer e.running.Store(false)

	fix, err := e.loc.Locate(ctx)
	if err != nil {
		return locate.Fix{}, err
	}
	e.believe(fix)
	return fix, nil
}

func (e *Engine) believe(fix locate.Fix) {
	e.believed = fix.Pos
	e.lastFix = fix
	e.moves = 0
	name := ""
	if p := e.raster.Palette(); p != nil && fix.Region != 0 {
		name = p.Name(fix.Region)
	}
	e.update(func(s *Status) {
		s.Position = fix.Pos
		s.Confidence = fix.Confidence
		s.Region = fix.Region
		s.RegionName = name
		s.Fixes++
		s.MovesSinceFix = 0
	})
}

func (e *Engine) reckon(target math.Point) {
	e.believed = target
	e.moves++
	moves := e.moves
	e.update(func(s *Status) {
		s.Position = target
		s.Confidence = 0
		s.MovesSinceFix = moves
	})
}

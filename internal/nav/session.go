package nav

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/rucoy-nav/internal/locate"
	"github.com/Faultbox/rucoy-nav/internal/pathfind"
	"github.com/Faultbox/rucoy-nav/internal/viewport"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// Run navigates to goal and blocks until the agent arrives, the session
// fails, or ctx is cancelled. Cancellation is observed between ticks.
//
// Failing to obtain the first fix or a route is fatal. Untappable plans,
// motion timeouts and failed re-fixes are absorbed by the loop; repeated
// lack of progress ends the session with ErrStalled.
func (e *Engine) Run(ctx context.Context, goal math.Point) (Outcome, error) {
	if !e.running.CompareAndSwap(false, true) {
		return Outcome{}, ErrRunning
	}
	defer e.running.Store(false)

	session := uuid.NewString()
	started := e.clock.Now()
	e.reset(session, goal)

	log := e.logger.With(zap.String("session", session))
	log.Info("navigation started", zap.Stringer("goal", goal))

	err := e.run(ctx, log, goal)

	snap := e.Snapshot()
	out := Outcome{
		Session: session,
		Final:   snap,
		Fix:     e.lastFix,
		Route:   e.Route(),
		Steps:   e.steps,
		Fixes:   snap.Fixes,
		Elapsed: e.clock.Now().Sub(started),
	}
	if err != nil {
		log.Warn("navigation ended",
			zap.Stringer("state", snap.State),
			zap.Int("steps", out.Steps),
			zap.Error(err))
		return out, err
	}
	log.Info("navigation finished",
		zap.Stringer("position", snap.Position),
		zap.Int("steps", out.Steps),
		zap.Int("fixes", out.Fixes),
		zap.Duration("elapsed", out.Elapsed))
	return out, nil
}

func (e *Engine) reset(session string, goal math.Point) {
	e.moves, e.steps, e.stuck, e.escalations = 0, 0, 0, 0
	e.jumpRejects, e.skippedTicks = 0, 0
	e.forceFix = false
	e.fixRequested.Store(false)
	e.planner.Reset()

	e.mu.Lock()
	e.route = pathfind.Route{}
	e.mu.Unlock()

	e.update(func(s *Status) {
		*s = Status{
			Session: session,
			State:   Localizing,
			Goal:    goal,
			Cursor:  -1,
		}
	})
}

func (e *Engine) run(ctx context.Context, log *zap.Logger, goal math.Point) error {
	fix, err := e.loc.Locate(ctx)
	if err != nil {
		e.setState(Idle)
		return fmt.Errorf("%w: %w", ErrInitialFix, err)
	}
	e.believe(fix)

	e.setState(Planning)
	route, err := e.Plan(fix.Pos, goal)
	if err != nil {
		e.setState(Idle)
		return err
	}
	if route.GoalAdjusted {
		log.Warn("goal not walkable, using nearest walkable cell",
			zap.Stringer("requested", route.Requested),
			zap.Stringer("goal", route.Goal))
	}
	log.Debug("route planned",
		zap.Int("raw", len(route.Raw)),
		zap.Int("waypoints", route.Len()),
		zap.Float64("length", route.Length()))

	e.planner.SetRoute(route)
	e.mu.Lock()
	e.route = route
	e.mu.Unlock()
	e.update(func(s *Status) {
		s.Goal = route.Goal
		s.GoalAdjusted = route.GoalAdjusted
		s.Waypoints = route.Len()
		s.Cursor = 0
	})

	for {
		if err := ctx.Err(); err != nil {
			e.setState(Idle)
			return err
		}

		done, err := e.arrived(ctx, log, route.Goal)
		if err != nil {
			return err
		}
		if done {
			e.setState(Done)
			return nil
		}

		if e.steps >= e.cfg.MaxSteps {
			e.setState(Idle)
			return fmt.Errorf("%w: %d taps", ErrStepBudget, e.steps)
		}

		if err := e.tick(ctx, log); err != nil {
			if e.Snapshot().State != Stuck {
				e.setState(Idle)
			}
			return err
		}
	}
}

// arrived checks the arrival tolerance. A dead reckoned arrival is
// confirmed with a fix first; if that fix fails the belief is accepted.
func (e *Engine) arrived(ctx context.Context, log *zap.Logger, goal math.Point) (bool, error) {
	if e.believed.Dist(goal) > e.cfg.ArrivalTolerance {
		return false, nil
	}
	if e.moves == 0 {
		return true, nil
	}

	e.setState(Localizing)
	fix, err := e.loc.Locate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.Warn("arrival fix failed, trusting dead reckoning", zap.Error(err))
		return true, nil
	}
	e.record(fix)
	e.planner.Relocate(fix.Pos)
	return e.believed.Dist(goal) <= e.cfg.ArrivalTolerance, nil
}

// tick plans and executes one tap.
func (e *Engine) tick(ctx context.Context, log *zap.Logger) error {
	e.setState(Clicking)
	plan := e.planner.Plan(e.geom.At(e.believed))
	cursor := e.planner.Cursor()
	e.update(func(s *Status) {
		s.LastPlan = &plan
		s.Cursor = cursor
	})

	if !plan.Tappable() {
		e.skippedTicks++
		log.Debug("skipping tick",
			zap.Stringer("target", plan.Target),
			zap.Stringer("screen", plan.Screen),
			zap.Bool("inside_viewport", plan.InsideViewport),
			zap.Bool("obstacle", plan.IsObstacle),
			zap.Int("skipped", e.skippedTicks))
		if e.skippedTicks > e.cfg.MaxSkippedTicks {
			e.skippedTicks = 0
			return e.escalate(ctx, log, true)
		}
		return e.clock.Sleep(ctx, e.cfg.PollInterval)
	}
	e.skippedTicks = 0

	if err := e.tapper.Tap(ctx, plan.Screen.X, plan.Screen.Y); err != nil {
		return fmt.Errorf("tapping %v: %w", plan.Screen, err)
	}
	e.steps++
	steps := e.steps
	e.update(func(s *Status) { s.Steps = steps })
	log.Debug("tap",
		zap.Int("step", steps),
		zap.Stringer("target", plan.Target),
		zap.Stringer("screen", plan.Screen),
		zap.Int("index", plan.Index),
		zap.Bool("direct", plan.Direct),
		zap.Bool("fallback", plan.Fallback))

	timedOut, err := e.awaitMotion(ctx)
	if err != nil {
		return err
	}

	e.setState(Confirming)
	return e.confirm(ctx, log, plan, timedOut)
}

// confirm updates the belief after a tap: the tapped target by default, a
// fresh fix when one is due.
func (e *Engine) confirm(ctx context.Context, log *zap.Logger, plan viewport.ClickPlan, timedOut bool) error {
	requested := e.fixRequested.Swap(false)
	due := e.moves+1 >= e.cfg.MaxMovesWithoutFix
	if !(due || requested || timedOut || e.forceFix || e.stuck > 0) {
		e.reckon(plan.Target)
		return nil
	}

	fix, err := e.loc.Locate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("re-localization failed, dead reckoning", zap.Error(err))
		e.reckon(plan.Target)
		return nil
	}

	if jump := fix.Pos.Dist(plan.Target); jump > e.cfg.MaxFixJump && e.jumpRejects < e.cfg.MaxJumpRejects {
		e.jumpRejects++
		log.Warn("rejecting implausible fix",
			zap.Stringer("fix", fix.Pos),
			zap.Stringer("expected", plan.Target),
			zap.Float64("jump", jump),
			zap.Int("rejects", e.jumpRejects))
		e.reckon(plan.Target)
		return nil
	}
	e.jumpRejects = 0

	drift := fix.Pos.Dist(plan.Target)
	e.update(func(s *Status) { s.Drift.Add(drift) })

	prev := e.lastFix.Pos
	e.record(fix)

	if fix.Pos.Dist(prev) > e.cfg.StuckRadius {
		e.stuck = 0
		e.escalations = 0
		e.forceFix = false
		e.planner.Relocate(fix.Pos)
		e.update(func(s *Status) {
			s.StuckCount = 0
			s.Escalations = 0
		})
		return nil
	}

	e.stuck++
	stuck := e.stuck
	e.update(func(s *Status) { s.StuckCount = stuck })
	log.Debug("no progress since last fix",
		zap.Stringer("position", fix.Pos),
		zap.Int("stuck", stuck))
	if e.stuck >= e.cfg.StuckLimit {
		e.stuck = 0
		return e.escalate(ctx, log, false)
	}
	return nil
}

// record replaces the belief with a fresh fix.
func (e *Engine) record(fix locate.Fix) {
	if fix.At.IsZero() {
		fix.At = e.clock.Now()
	}
	e.believe(fix)
}

// escalate reacts to a lack of progress: skip ahead in the route and fix
// on every tick until progress resumes. refix takes a fix right away.
func (e *Engine) escalate(ctx context.Context, log *zap.Logger, refix bool) error {
	e.escalations++
	escalations := e.escalations
	e.update(func(s *Status) {
		s.Escalations = escalations
		s.StuckCount = 0
	})
	if escalations > e.cfg.MaxStuckEscalations {
		e.setState(Stuck)
		return fmt.Errorf("%w: no progress after %d escalations", ErrStalled, escalations-1)
	}

	log.Warn("no progress, skipping ahead",
		zap.Stringer("position", e.believed),
		zap.Int("escalation", escalations),
		zap.Int("cursor", e.planner.Cursor()))
	e.forceFix = true
	e.planner.SkipAhead(e.cfg.SkipAhead)

	if !refix {
		return nil
	}
	e.setState(Localizing)
	fix, err := e.loc.Locate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("forced re-localization failed", zap.Error(err))
		return nil
	}
	e.record(fix)
	return nil
}

package nav

import (
	"errors"
	"fmt"
	"time"

	"github.com/Faultbox/rucoy-nav/internal/pathfind"
	"github.com/Faultbox/rucoy-nav/internal/viewport"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid navigation config")

// Config holds the per-session navigation parameters. It is copied into
// the engine and never changed while a session runs.
type Config struct {
	// MaxMovesWithoutFix bounds dead reckoning: a fix is taken at the
	// latest after this many optimistic moves.
	MaxMovesWithoutFix int

	MotionStartTimeout time.Duration
	MotionEndTimeout   time.Duration
	PollInterval       time.Duration

	// ConfirmFrames is the number of consecutive frames that must agree
	// before motion is taken to have started or ended.
	ConfirmFrames int

	// ArrivalTolerance is the world distance to the goal counted as arrival.
	ArrivalTolerance float64

	// StuckRadius is the largest fix displacement still counted as no
	// progress; StuckLimit such fixes in a row trigger an escalation.
	StuckRadius float64
	StuckLimit  int

	// MaxStuckEscalations ends the session with ErrStalled once exceeded.
	MaxStuckEscalations int

	// SkipAhead is how many waypoints an escalation skips.
	SkipAhead int

	// MaxSteps bounds the number of taps in a session.
	MaxSteps int

	// MaxSkippedTicks consecutive untappable plans escalate like Stuck.
	MaxSkippedTicks int

	// MaxFixJump rejects fixes farther than this from the believed
	// position, at most MaxJumpRejects times in a row.
	MaxFixJump     float64
	MaxJumpRejects int

	Pathfind pathfind.Options
	Simplify pathfind.SimplifyOptions
	Planner  viewport.PlannerOptions
}

// DefaultConfig returns the standard session parameters.
func DefaultConfig() Config {
	return Config{
		MaxMovesWithoutFix:  5,
		MotionStartTimeout:  800 * time.Millisecond,
		MotionEndTimeout:    10 * time.Second,
		PollInterval:        150 * time.Millisecond,
		ConfirmFrames:       2,
		ArrivalTolerance:    30,
		StuckRadius:         3,
		StuckLimit:          3,
		MaxStuckEscalations: 5,
		SkipAhead:           1,
		MaxSteps:            500,
		MaxSkippedTicks:     20,
		MaxFixJump:          400,
		MaxJumpRejects:      2,
		Pathfind:            pathfind.DefaultOptions(),
		Simplify:            pathfind.DefaultSimplifyOptions(),
		Planner:             viewport.DefaultPlannerOptions(),
	}
}

// Validate checks the config for usable values.
func (c Config) Validate() error {
	switch {
	case c.MaxMovesWithoutFix < 1:
		return fmt.Errorf("%w: max moves without fix %d", ErrInvalidConfig, c.MaxMovesWithoutFix)
	case c.ConfirmFrames < 1:
		return fmt.Errorf("%w: confirm frames %d", ErrInvalidConfig, c.ConfirmFrames)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval %v", ErrInvalidConfig, c.PollInterval)
	case c.MotionStartTimeout < 0 || c.MotionEndTimeout < 0:
		return fmt.Errorf("%w: negative motion timeout", ErrInvalidConfig)
	case c.ArrivalTolerance <= 0:
		return fmt.Errorf("%w: arrival tolerance %.1f", ErrInvalidConfig, c.ArrivalTolerance)
	case c.StuckLimit < 1:
		return fmt.Errorf("%w: stuck limit %d", ErrInvalidConfig, c.StuckLimit)
	case c.MaxSteps < 1:
		return fmt.Errorf("%w: max steps %d", ErrInvalidConfig, c.MaxSteps)
	case c.MaxSkippedTicks < 1:
		return fmt.Errorf("%w: max skipped ticks %d", ErrInvalidConfig, c.MaxSkippedTicks)
	case c.Simplify.MinSpacing > c.Simplify.MaxSpacing:
		return fmt.Errorf("%w: simplify spacing %.0f > %.0f", ErrInvalidConfig,
			c.Simplify.MinSpacing, c.Simplify.MaxSpacing)
	}
	return nil
}

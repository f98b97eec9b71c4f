// Package nav drives the agent to a goal by tapping the screen, believing
// each tap succeeded, and re-localizing at bounded intervals.
package nav

import "fmt"

// State is a phase of the navigation loop.
type State int

// Navigation states.
const (
	Idle State = iota
	Localizing
	Planning
	Clicking
	AwaitingMotionStart
	AwaitingMotionEnd
	Confirming
	TimedOut
	Done
	Stuck
)

var stateNames = [...]string{
	Idle:                "idle",
	Localizing:          "localizing",
	Planning:            "planning",
	Clicking:            "clicking",
	AwaitingMotionStart: "awaiting_motion_start",
	AwaitingMotionEnd:   "awaiting_motion_end",
	Confirming:          "confirming",
	TimedOut:            "timed_out",
	Done:                "done",
	Stuck:               "stuck",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown navigation state %q", text)
}

// MotionState tells whether the agent is believed to be walking.
type MotionState int

// Motion states.
const (
	Still MotionState = iota
	Moving
)

func (m MotionState) String() string {
	if m == Moving {
		return "moving"
	}
	return "still"
}

// MarshalText encodes the motion state by name.
func (m MotionState) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a motion state name.
func (m *MotionState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "still":
		*m = Still
	case "moving":
		*m = Moving
	default:
		return fmt.Errorf("unknown motion state %q", text)
	}
	return nil
}

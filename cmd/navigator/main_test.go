package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Faultbox/rucoy-nav/internal/nav"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"cancelled", fmt.Errorf("tick: %w", context.Canceled), exitInterrupted},
		{"initial fix", fmt.Errorf("%w: no signal", nav.ErrInitialFix), exitNoFix},
		{"no path", nav.ErrNoPath, exitNoPath},
		{"stalled", nav.ErrStalled, exitStalled},
		{"step budget", nav.ErrStepBudget, exitStepBudget},
		{"other", errors.New("adb gone"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestCheckTarget(t *testing.T) {
	tests := []struct {
		name    string
		gotoArg string
		zone    string
		locate  bool
		wantErr bool
	}{
		{"goto", "379,1147", "", false, false},
		{"zone", "", "Desert", false, false},
		{"locate", "", "", true, false},
		{"none", "", "", false, true},
		{"both", "1,2", "Desert", false, true},
		{"bad point", "north", "", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkTarget(tt.gotoArg, tt.zone, tt.locate)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkTarget() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

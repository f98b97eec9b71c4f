// Package main is the entry point of the navigator: it walks the agent to a
// world position or a named zone.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/rucoy-nav/internal/agent"
	"github.com/Faultbox/rucoy-nav/internal/config"
	"github.com/Faultbox/rucoy-nav/internal/logger"
	"github.com/Faultbox/rucoy-nav/internal/nav"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

var (
	flagGoto   = flag.String("goto", "", "Walk to world position x,y")
	flagZone   = flag.String("zone", "", "Walk to the spawn point of a zone")
	flagLocate = flag.Bool("locate", false, "Print the current position and exit")
)

// Exit codes.
const (
	exitOK = iota
	exitError
	exitUsage
	exitNoFix
	exitNoPath
	exitStalled
	exitStepBudget
	exitInterrupted = 130
)

func main() {
	config.ParseFlags()

	if err := checkTarget(*flagGoto, *flagZone, *flagLocate); err != nil {
		fmt.Fprintf(os.Stderr, "Usage error: %v\n", err)
		flag.Usage()
		os.Exit(exitUsage)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(exitError)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(exitError)
	}

	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	defer logger.Sync()

	logger.Info("=== Rucoy Navigator ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := agent.New(cfg, agent.Options{Logger: logger.Log})
	if err != nil {
		logger.Error("failed to create agent", zap.Error(err))
		return exitError
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing agent", zap.Error(err))
		}
	}()

	if err := a.Start(ctx); err != nil {
		logger.Error("failed to start agent", zap.Error(err))
		return exitError
	}

	if *flagLocate {
		fix, err := a.Locate(ctx)
		if err != nil {
			logger.Error("locate failed", zap.Error(err))
			return exitCode(err)
		}
		fmt.Println(fix)
		return exitOK
	}

	var out nav.Outcome
	if *flagZone != "" {
		out, err = a.GoToZone(ctx, *flagZone)
	} else {
		goal, perr := math.ParsePoint(*flagGoto)
		if perr != nil {
			logger.Error("invalid goal", zap.Error(perr))
			return exitUsage
		}
		out, err = a.GoTo(ctx, goal)
	}
	if err != nil {
		logger.Error("navigation failed",
			zap.Error(err),
			zap.Stringer("position", out.Final.Position),
			zap.Int("steps", out.Steps))
		return exitCode(err)
	}

	fmt.Println(out.Final.Position)
	return exitOK
}

// checkTarget requires exactly one of -goto, -zone and -locate.
func checkTarget(gotoArg, zone string, locate bool) error {
	n := 0
	for _, set := range []bool{gotoArg != "", zone != "", locate} {
		if set {
			n++
		}
	}
	switch n {
	case 0:
		return errors.New("one of -goto, -zone or -locate is required")
	case 1:
		if gotoArg != "" {
			if _, err := math.ParsePoint(gotoArg); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.New("-goto, -zone and -locate are exclusive")
	}
}

// exitCode maps a navigation error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, nav.ErrInitialFix):
		return exitNoFix
	case errors.Is(err, nav.ErrNoPath):
		return exitNoPath
	case errors.Is(err, nav.ErrStalled):
		return exitStalled
	case errors.Is(err, nav.ErrStepBudget):
		return exitStepBudget
	default:
		return exitError
	}
}

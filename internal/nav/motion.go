package nav

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// awaitMotion polls the motion sensor after a tap. It first waits for
// motion to start; if it never does the hop is taken as instant. It then
// waits for motion to end and reports whether that wait timed out.
func (e *Engine) awaitMotion(ctx context.Context) (timedOut bool, err error) {
	if e.motion == nil {
		return false, nil
	}

	e.setState(AwaitingMotionStart)
	started, err := e.poll(ctx, e.cfg.MotionStartTimeout, true)
	if err != nil {
		return false, err
	}
	if !started {
		e.logger.Debug("no motion seen, assuming instant move")
		return false, nil
	}
	e.setMotion(Moving)

	e.setState(AwaitingMotionEnd)
	stopped, err := e.poll(ctx, e.cfg.MotionEndTimeout, false)
	if err != nil {
		return false, err
	}
	e.setMotion(Still)
	if !stopped {
		e.setState(TimedOut)
		e.logger.Debug("motion did not end in time", zap.Duration("timeout", e.cfg.MotionEndTimeout))
		return true, nil
	}
	return false, nil
}

// poll samples the sensor every PollInterval until ConfirmFrames
// consecutive samples read want, or timeout elapses. Sensor errors count
// as not moving.
func (e *Engine) poll(ctx context.Context, timeout time.Duration, want bool) (bool, error) {
	deadline := e.clock.Now().Add(timeout)
	streak := 0
	for e.clock.Now().Before(deadline) {
		moving, err := e.motion.Moving(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			e.logger.Debug("motion sensor failed", zap.Error(err))
			moving = false
		}
		if moving == want {
			streak++
			if streak >= e.cfg.ConfirmFrames {
				return true, nil
			}
		} else {
			streak = 0
		}
		if err := e.clock.Sleep(ctx, e.cfg.PollInterval); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (e *Engine) setMotion(m MotionState) {
	e.update(func(s *Status) { s.Motion = m })
}

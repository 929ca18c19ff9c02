package inference

import (
	"context"
	"time"
)

// score runs the model forward pass under the two-tier latency watchdog.
// The thresholds only notify; the in-flight computation is never
// cancelled, so a slow scorer still produces a complete step and no
// partial state can reach a trace.
func (s *Stepper) score(ctx context.Context, ids []int) ([]float32, error) {
	start := time.Now()

	still := time.AfterFunc(s.cfg.StillWorkingAfter, func() {
		s.notifySlow(time.Since(start), false)
	})
	defer still.Stop()

	warn := time.AfterFunc(s.cfg.WarnAfter, func() {
		s.notifySlow(time.Since(start), true)
	})
	defer warn.Stop()

	return s.scorer.Forward(ctx, ids)
}

func (s *Stepper) notifySlow(elapsed time.Duration, severe bool) {
	if s.cfg.OnSlowScore != nil {
		s.cfg.OnSlowScore(elapsed, severe)
		return
	}
	if severe {
		s.log.Warn("scorer is taking unusually long", "elapsed", elapsed)
		return
	}
	s.log.Info("scorer still working", "elapsed", elapsed)
}

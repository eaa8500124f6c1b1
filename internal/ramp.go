// ramp.go
package internal

import (
	"context"
	"log/slog"
	"time"
)

// Ramp moves an actuator setpoint to a target in linear steps instead
// of one abrupt jump, which could destabilize the containment field or
// overshoot the telemetry feedback.
type Ramp struct {
	lg    *slog.Logger
	sleep func(time.Duration) // injectable for tests
}

func NewRamp(lg *slog.Logger) *Ramp {
	return &Ramp{lg: lg, sleep: time.Sleep}
}

// To issues exactly `steps` setpoint writes from the actuator's current
// value to target, each clamped to [0, actuator max], pausing stepDelay
// between writes. Individual write failures are logged and skipped;
// the ramp always runs to completion best-effort.
func (r *Ramp) To(ctx context.Context, act Actuator, target float64, steps int, stepDelay time.Duration) {
	if steps < 1 {
		steps = 1
	}
	current, ok := act.Current(ctx)
	if !ok {
		current = 0
	}
	inc := (target - current) / float64(steps)
	r.lg.Info("ramp start", "from", current, "to", target, "steps", steps)
	for i := 1; i <= steps; i++ {
		v := clamp(current+inc*float64(i), 0, act.Max())
		if err := act.Set(ctx, v); err != nil {
			r.lg.Warn("ramp write failed", "step", i, "value", v, "error", err)
		}
		if i < steps && stepDelay > 0 {
			r.sleep(stepDelay)
		}
	}
}

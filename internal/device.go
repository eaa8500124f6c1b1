// device.go
package internal

import "context"

// Device is the reactor seen from the control loop. Reads and writes
// are best-effort: a false poll or a returned error means "no update
// this cycle", never a reason to stop the loop.
type Device interface {
	// PollStatus returns the latest snapshot, or ok=false when no fresh
	// telemetry is available.
	PollStatus(ctx context.Context) (StatusSnapshot, bool)
	SetInflow(ctx context.Context, v float64) error
	SetOutflow(ctx context.Context, v float64) error
	// CurrentOutflow reports the discharge setpoint as last observed.
	CurrentOutflow(ctx context.Context) (float64, bool)
	// Stop shuts the reactor down. Invoked only by the fail-safe path.
	Stop(ctx context.Context) error
	Close()
}

// Actuator is one settable flow channel of the device, with its hard
// ceiling. The ramp controller works against this interface.
type Actuator interface {
	Current(ctx context.Context) (float64, bool)
	Set(ctx context.Context, v float64) error
	Max() float64
}

// inflowActuator and outflowActuator adapt a Device to the Actuator
// interface. The inflow channel has no setpoint readback on the wire,
// so Current always reports unknown and ramps start from zero.
type inflowActuator struct {
	dev Device
	max float64
}

func (a inflowActuator) Current(ctx context.Context) (float64, bool) { return 0, false }
func (a inflowActuator) Set(ctx context.Context, v float64) error    { return a.dev.SetInflow(ctx, v) }
func (a inflowActuator) Max() float64                                { return a.max }

type outflowActuator struct {
	dev Device
	max float64
}

func (a outflowActuator) Current(ctx context.Context) (float64, bool) {
	return a.dev.CurrentOutflow(ctx)
}
func (a outflowActuator) Set(ctx context.Context, v float64) error { return a.dev.SetOutflow(ctx, v) }
func (a outflowActuator) Max() float64                             { return a.max }

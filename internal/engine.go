// engine.go
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Fixed thresholds of the cyclic strategy. These are part of the
// strategy itself, not operator tunables.
const (
	burnGateFieldFraction = 0.40 // field required before a burn may start
	burnGateSatFraction   = 0.30 // buffer level required before a burn may start
	weakFieldFraction     = 0.30 // below this, discharging destabilizes the field
	dumpSatFraction       = 0.90 // above this, fallback adds a safety dump
	fullBufferFraction    = 0.99 // emergency: buffer effectively full
	largeOutflowThreshold = 1_000_000
	drainBaselineFactor   = 1.1 // inflow floor relative to field drain
	fallbackFieldGain     = 2.0
	fallbackTempGain      = 1_000.0 // outflow per degree of temperature excess
)

// Engine orchestrates the charge / burn / recover cycle: it polls
// status, runs the emergency checks, feeds the rate estimator, asks the
// planner for a burn and either executes it under the watchdog or falls
// back to continuous regulation. Everything runs on one goroutine;
// suspension happens only at explicit pauses.
type Engine struct {
	cfg  *AppConfig
	lg   *slog.Logger
	dev  Device
	est  *RateEstimator
	pln  *Planner
	ramp *Ramp
	wd   Watchdog
	tgt  *Targets
	sink EventSink
	met  *Metrics

	inflow  Actuator
	outflow Actuator

	// injectable clock, for tests
	nowFn   func() time.Time
	pauseFn func(ctx context.Context, d time.Duration) bool

	mu        sync.RWMutex
	state     State
	stats     Stats
	lastSnap  *StatusSnapshot
	lastPlan  *BurnPlan
	pollFails int
	halted    bool
}

func NewEngine(cfg *AppConfig, lg *slog.Logger, dev Device, tgt *Targets, sink EventSink, met *Metrics) *Engine {
	e := &Engine{
		cfg:     cfg,
		lg:      lg,
		dev:     dev,
		tgt:     tgt,
		sink:    sink,
		met:     met,
		est:     NewRateEstimator(cfg.Safety.SampleWindow),
		pln:     NewPlanner(cfg.Safety, lg),
		ramp:    NewRamp(lg),
		wd:      NewWatchdog(cfg.Safety),
		inflow:  inflowActuator{dev: dev, max: cfg.Safety.MaxInflow},
		outflow: outflowActuator{dev: dev, max: cfg.Safety.MaxOutflow},
		nowFn:   time.Now,
		pauseFn: pause,
		state:   StateIdle,
	}
	return e
}

// Run drives the control loop until the context is cancelled or a
// fail-safe shutdown halts the engine for good.
func (e *Engine) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.PollIntervalMs) * time.Millisecond
	e.lg.Info("engine start", "interval_ms", e.cfg.PollIntervalMs, "device", e.cfg.DeviceID)
	e.publish(ctx, NewEvent(EventStartup, "controller online", StateIdle))
	for {
		select {
		case <-ctx.Done():
			e.lg.Info("engine stop")
			return
		default:
		}
		if e.isHalted() {
			e.lg.Info("engine halted after fail-safe")
			return
		}
		e.cycle(ctx)
		e.mu.Lock()
		e.stats.Loops++
		e.mu.Unlock()
		if !e.pauseFn(ctx, interval) {
			e.lg.Info("engine stop")
			return
		}
	}
}

func (e *Engine) cycle(ctx context.Context) {
	e.mu.Lock()
	e.stats.Polls++
	e.mu.Unlock()

	snap, ok := e.dev.PollStatus(ctx)
	if !ok {
		e.met.PollFailed()
		e.mu.Lock()
		e.stats.PollFailures++
		e.pollFails++
		fails := e.pollFails
		e.mu.Unlock()
		e.lg.Warn("status poll failed", "consecutive", fails)
		if fails >= e.cfg.MaxPollFailures {
			e.failSafe(ctx, nil, fmt.Sprintf("telemetry lost: %d consecutive failed polls", fails))
		}
		return
	}
	e.mu.Lock()
	e.pollFails = 0
	s := snap
	e.lastSnap = &s
	e.mu.Unlock()

	if reason := emergencyReason(snap, e.cfg.Safety, e.tgt.Temperature()); reason != "" {
		e.failSafe(ctx, &snap, reason)
		return
	}

	e.mu.Lock()
	e.est.Update(e.nowFn(), snap.EnergySaturation, snap.MaxEnergySaturation)
	estimate := e.est.Estimate()
	e.mu.Unlock()
	e.met.ObserveSnapshot(snap, estimate)

	if e.burnGateOpen(snap) {
		if plan, ok := e.pln.Plan(snap, estimate, e.cfg.Safety.MaxOutflow); ok {
			e.runBurn(ctx, plan)
			return
		}
		e.mu.Lock()
		e.stats.NoPlan++
		e.mu.Unlock()
	}
	e.regulate(ctx, snap)
}

// emergencyReason evaluates the hard safety thresholds against one
// snapshot. Pure: repeated calls on the same snapshot always agree.
// Missing capacity denominators signal no emergency.
func emergencyReason(snap StatusSnapshot, cfg SafetyConfig, targetTemp float64) string {
	if snap.Temperature > targetTemp+cfg.MaxTempOvershoot {
		return fmt.Sprintf("temperature %.0f exceeds limit %.0f", snap.Temperature, targetTemp+cfg.MaxTempOvershoot)
	}
	if f, ok := snap.FieldFraction(); ok && f < cfg.ShutdownFieldFraction {
		return fmt.Sprintf("containment field %.3f below floor %.3f", f, cfg.ShutdownFieldFraction)
	}
	if f, ok := snap.FuelFraction(); ok && 1-f < cfg.MinFuelFraction {
		return fmt.Sprintf("fuel remaining %.3f below floor %.3f", 1-f, cfg.MinFuelFraction)
	}
	if f, ok := snap.SatFraction(); ok && f >= fullBufferFraction {
		return fmt.Sprintf("energy buffer full at %.3f", f)
	}
	return ""
}

func (e *Engine) burnGateOpen(snap StatusSnapshot) bool {
	fieldFrac, fOK := snap.FieldFraction()
	satFrac, sOK := snap.SatFraction()
	return fOK && sOK &&
		fieldFrac > burnGateFieldFraction &&
		satFrac > burnGateSatFraction &&
		snap.Temperature < e.tgt.Temperature()
}

// runBurn executes one planned discharge: ramp the outflow up, hold it
// under the per-tick watchdog for the planned duration, then force the
// actuators back to charge and rest. The planner is not consulted again
// mid-burn; the watchdog alone decides an early exit.
func (e *Engine) runBurn(ctx context.Context, plan BurnPlan) {
	e.setState(StateBurning)
	e.met.BurnStarted()
	e.mu.Lock()
	p := plan
	e.lastPlan = &p
	e.stats.Burns++
	e.mu.Unlock()

	ev := NewEvent(EventBurnStart, fmt.Sprintf("burning at %.0f for %.1fs", plan.AllowedOutflow, plan.BurnDuration), StateBurning)
	ev.Plan = &p
	e.publish(ctx, ev)

	e.ramp.To(ctx, e.outflow, plan.AllowedOutflow, e.cfg.RampSteps, time.Duration(e.cfg.RampStepDelayMs)*time.Millisecond)

	tick := time.Duration(e.cfg.BurnTickMs) * time.Millisecond
	deadline := e.nowFn().Add(time.Duration(plan.BurnDuration * float64(time.Second)))
	abortReason := ""
	for e.nowFn().Before(deadline) {
		snap, ok := e.dev.PollStatus(ctx)
		if !ok {
			abortReason = "status refresh failed during burn"
			break
		}
		e.mu.Lock()
		s := snap
		e.lastSnap = &s
		e.mu.Unlock()
		if !e.wd.Check(snap) {
			abortReason = "watchdog tripped"
			break
		}
		if !e.pauseFn(ctx, tick) {
			abortReason = "shutdown requested"
			break
		}
	}

	// Exit path runs on every way out of the loop: outflow to zero,
	// inflow to full charge, then rest before the next decision.
	e.trySetOutflow(ctx, 0)
	e.trySetInflow(ctx, e.cfg.Safety.MaxInflow)

	if abortReason != "" {
		e.met.BurnAborted()
		e.mu.Lock()
		e.stats.Aborts++
		e.mu.Unlock()
		e.lg.Warn("burn aborted", "reason", abortReason)
		e.publish(ctx, NewEvent(EventBurnAbort, abortReason, StateBurning))
	} else {
		e.lg.Info("burn complete", "duration_s", plan.BurnDuration)
		e.publish(ctx, NewEvent(EventBurnEnd, fmt.Sprintf("burn of %.1fs complete", plan.BurnDuration), StateBurning))
	}

	rest := int(plan.RestDuration)
	if rest < 1 {
		rest = 1
	}
	e.lg.Info("recovery rest", "seconds", rest)
	e.pauseFn(ctx, time.Duration(rest)*time.Second)
	e.setState(StateIdle)
}

// regulate is the fallback when no safe burn exists: proportional
// outflow against temperature excess plus a dump component when the
// buffer runs too full, and inflow steered toward the field target
// with a drain-covering floor.
func (e *Engine) regulate(ctx context.Context, snap StatusSnapshot) {
	e.mu.Lock()
	e.stats.Fallbacks++
	e.mu.Unlock()

	targetTemp := e.tgt.Temperature()
	satFrac, satOK := snap.SatFraction()
	fieldFrac, fieldOK := snap.FieldFraction()

	var outflow float64
	if snap.Temperature > targetTemp {
		outflow = (snap.Temperature - targetTemp) * fallbackTempGain
	}
	if satOK && satFrac > dumpSatFraction && fieldOK && fieldFrac > weakFieldFraction {
		excess := (satFrac - dumpSatFraction) / (1 - dumpSatFraction)
		outflow += excess * e.cfg.Safety.MaxOutflow
	}
	outflow = clamp(outflow, 0, e.cfg.Safety.MaxOutflow)

	inflow := snap.FieldDrainRate * drainBaselineFactor
	if fieldOK {
		ferr := e.tgt.FieldFraction() - fieldFrac
		proportional := snap.FieldDrainRate + ferr*fallbackFieldGain*e.cfg.Safety.MaxInflow
		if proportional > inflow {
			inflow = proportional
		}
	}
	if (fieldOK && fieldFrac < weakFieldFraction) || outflow > largeOutflowThreshold {
		inflow = e.cfg.Safety.MaxInflow
	}
	inflow = clamp(inflow, 0, e.cfg.Safety.MaxInflow)

	e.trySetOutflow(ctx, outflow)
	e.trySetInflow(ctx, inflow)
}

// failSafe forces both actuators to zero, stops the device and halts
// the engine. Terminal: only a restart resumes control.
func (e *Engine) failSafe(ctx context.Context, snap *StatusSnapshot, reason string) {
	e.lg.Error("fail-safe shutdown", "reason", reason)
	e.trySetOutflow(ctx, 0)
	e.trySetInflow(ctx, 0)
	if err := e.dev.Stop(ctx); err != nil {
		e.lg.Error("device stop failed", "error", err)
	}
	ev := NewEvent(EventFailSafe, reason, e.StateNow())
	ev.Snapshot = snap
	e.publish(ctx, ev)
	e.met.FailSafe()
	e.mu.Lock()
	e.stats.FailSafes++
	e.halted = true
	e.state = StateIdle
	e.mu.Unlock()
	e.met.SetState(StateIdle)
}

// trySetInflow and trySetOutflow isolate actuator writes: a single
// failure is logged and swallowed so one bad write cannot stall the
// control loop.
func (e *Engine) trySetInflow(ctx context.Context, v float64) {
	e.met.CommandIssued()
	e.mu.Lock()
	e.stats.CommandsOut++
	e.mu.Unlock()
	if err := e.dev.SetInflow(ctx, v); err != nil {
		e.lg.Warn("set inflow failed", "value", v, "error", err)
	}
}

func (e *Engine) trySetOutflow(ctx context.Context, v float64) {
	e.met.CommandIssued()
	e.mu.Lock()
	e.stats.CommandsOut++
	e.mu.Unlock()
	if err := e.dev.SetOutflow(ctx, v); err != nil {
		e.lg.Warn("set outflow failed", "value", v, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, ev Event) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Publish(ctx, ev); err != nil {
		e.lg.Warn("event publish failed", "kind", ev.Kind, "error", err)
		return
	}
	e.mu.Lock()
	e.stats.EventsOut++
	e.mu.Unlock()
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.met.SetState(s)
}

func (e *Engine) StateNow() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) isHalted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.halted
}

// StatusView is the JSON shape served on /status.
type StatusView struct {
	State        string             `json:"state"`
	Halted       bool               `json:"halted"`
	RateEstimate float64            `json:"rateEstimate"`
	Stats        Stats              `json:"stats"`
	Targets      map[string]float64 `json:"targets"`
	Snapshot     *StatusSnapshot    `json:"snapshot,omitempty"`
	LastPlan     *BurnPlan          `json:"lastPlan,omitempty"`
}

func (e *Engine) View() StatusView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v := StatusView{
		State:        e.state.String(),
		Halted:       e.halted,
		RateEstimate: e.est.Estimate(),
		Stats:        e.stats,
		Targets:      e.tgt.All(),
	}
	if e.lastSnap != nil {
		s := *e.lastSnap
		v.Snapshot = &s
	}
	if e.lastPlan != nil {
		p := *e.lastPlan
		v.LastPlan = &p
	}
	return v
}

// pause sleeps for d unless the context ends first; the return value
// reports whether the loop should continue.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

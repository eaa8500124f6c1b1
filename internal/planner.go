// planner.go
package internal

import (
	"log/slog"
	"math"
)

// restMultiplier keeps the post-burn recovery longer than the drain so
// margin is rebuilt before the next burn.
const restMultiplier = 1.2

// Planner computes safety-bounded discharge burns. It is stateless:
// every call works only from the snapshot, the estimate and the
// configured thresholds.
type Planner struct {
	cfg SafetyConfig
	lg  *slog.Logger
}

func NewPlanner(cfg SafetyConfig, lg *slog.Logger) *Planner {
	return &Planner{cfg: cfg, lg: lg}
}

// Plan returns the burn the current buffer level can sustain without
// ever consuming the reserve, or ok=false when no safe burn exists.
//
// The reserve covers the worst-case buffer drop over the configured
// observation lag plus a fixed margin, so even with stale telemetry
// the buffer cannot fall below the safety floor before the controller
// can react.
func (p *Planner) Plan(snap StatusSnapshot, estimatedRate, desiredOutflow float64) (BurnPlan, bool) {
	satFrac, ok := snap.SatFraction()
	if !ok {
		return BurnPlan{}, false
	}

	outflow := clamp(desiredOutflow, 0, p.cfg.MaxOutflow)
	net := estimatedRate - outflow

	var reserveFrac float64
	if net < 0 {
		worstDrop := math.Abs(net) * p.cfg.TickLagSeconds
		reserveFrac = worstDrop / snap.MaxEnergySaturation
	}
	requiredReserve := reserveFrac + p.cfg.SafetyMarginFraction

	available := satFrac - requiredReserve - p.cfg.MinSafeSaturationFraction
	if available <= 0 {
		p.lg.Info("no safe burn", "satFraction", satFrac, "requiredReserve", requiredReserve)
		return BurnPlan{}, false
	}

	availableEnergy := available * snap.MaxEnergySaturation
	netMagnitude := math.Max(1, math.Abs(net))
	burn := availableEnergy / netMagnitude

	plan := BurnPlan{
		AllowedOutflow:          math.Floor(outflow),
		BurnDuration:            burn,
		RestDuration:            burn * restMultiplier,
		PredictedNet:            net,
		RequiredReserveFraction: requiredReserve,
	}
	p.lg.Info("burn planned",
		"outflow", plan.AllowedOutflow, "burn_s", plan.BurnDuration,
		"rest_s", plan.RestDuration, "net", plan.PredictedNet,
		"reserve", plan.RequiredReserveFraction)
	return plan, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

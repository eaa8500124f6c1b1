// targets.go
package internal

import (
	"errors"
	"fmt"
	"sync"
)

// ErrTargetRange indicates that a requested target falls outside the permitted range.
var ErrTargetRange = errors.New("target outside configured range")

// Targets stores the runtime-adjustable regulation goals protected by a
// RWMutex so the control loop can read while HTTP handlers update
// values. Hard safety thresholds live in SafetyConfig and never change
// at runtime; these are only the points the regulator steers toward,
// bounded so an operator cannot steer into the fail-safe region.
type Targets struct {
	mu       sync.RWMutex
	temp     float64
	field    float64
	tempMin  float64
	tempMax  float64
	fieldMin float64
	fieldMax float64
}

// NewTargets builds the runtime target store from the loaded safety
// configuration. The temperature ceiling stays under the overshoot
// trip, the field range above the shutdown floor.
func NewTargets(cfg SafetyConfig) (*Targets, error) {
	t := &Targets{
		temp:     cfg.TargetTemp,
		field:    cfg.TargetFieldFraction,
		tempMin:  1,
		tempMax:  cfg.TargetTemp + cfg.MaxTempOvershoot/2,
		fieldMin: cfg.ShutdownFieldFraction + 0.05,
		fieldMax: 0.95,
	}
	if t.temp < t.tempMin || t.temp > t.tempMax {
		return nil, fmt.Errorf("targets: initial temperature %.1f outside %.1f..%.1f", t.temp, t.tempMin, t.tempMax)
	}
	if t.field < t.fieldMin || t.field > t.fieldMax {
		return nil, fmt.Errorf("targets: initial field fraction %.2f outside %.2f..%.2f", t.field, t.fieldMin, t.fieldMax)
	}
	return t, nil
}

func (t *Targets) Temperature() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.temp
}

func (t *Targets) FieldFraction() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.field
}

// SetTemperature validates and applies a new temperature goal.
func (t *Targets) SetTemperature(v float64) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v < t.tempMin || v > t.tempMax {
		return 0, fmt.Errorf("%w: %.1f not in %.1f..%.1f", ErrTargetRange, v, t.tempMin, t.tempMax)
	}
	t.temp = v
	return v, nil
}

// SetFieldFraction validates and applies a new containment field goal.
func (t *Targets) SetFieldFraction(v float64) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v < t.fieldMin || v > t.fieldMax {
		return 0, fmt.Errorf("%w: %.2f not in %.2f..%.2f", ErrTargetRange, v, t.fieldMin, t.fieldMax)
	}
	t.field = v
	return v, nil
}

// All returns both targets for marshalling without exposing the store.
func (t *Targets) All() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return map[string]float64{
		"targetTemperature":   t.temp,
		"targetFieldFraction": t.field,
	}
}

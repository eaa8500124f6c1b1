// watchdog.go
package internal

// Watchdog is the fast, independent safety check evaluated on every
// tick of an active burn. It knows nothing about the plan; it only
// compares the latest snapshot against two hard floors so that an
// out-of-bounds condition zeroes the outflow within one tick's latency.
type Watchdog struct {
	cfg SafetyConfig
}

func NewWatchdog(cfg SafetyConfig) Watchdog { return Watchdog{cfg: cfg} }

// Check returns true while the burn may continue. A missing capacity
// denominator never trips the check: no data means no new trip.
// Boundaries are inclusive on the safe side.
func (w Watchdog) Check(snap StatusSnapshot) bool {
	if satFrac, ok := snap.SatFraction(); ok && satFrac < w.cfg.AbortBurnFraction {
		return false
	}
	if fieldFrac, ok := snap.FieldFraction(); ok && fieldFrac < w.cfg.ShutdownFieldFraction {
		return false
	}
	return true
}

// models.go
package internal

// StatusSnapshot is the latest telemetry reported by the reactor.
// Max* fields can be zero when the corresponding subsystem has not
// reported yet; every ratio helper guards the denominator.
type StatusSnapshot struct {
	Temperature         float64 `json:"temperature"`
	FieldStrength       float64 `json:"fieldStrength"`
	MaxFieldStrength    float64 `json:"maxFieldStrength"`
	EnergySaturation    float64 `json:"energySaturation"`
	MaxEnergySaturation float64 `json:"maxEnergySaturation"`
	FuelConversion      float64 `json:"fuelConversion"`
	MaxFuelConversion   float64 `json:"maxFuelConversion"`
	FieldDrainRate      float64 `json:"fieldDrainRate"`
	GenerationRate      float64 `json:"generationRate"`
	InputRate           float64 `json:"inputRate"`
	OutputRate          float64 `json:"outputRate"`
	Status              string  `json:"status"`
	Timestamp           int64   `json:"timestamp"` // unix millis
}

// Reactor operating modes as reported in StatusSnapshot.Status.
const (
	StatusCold      = "cold"
	StatusOffline   = "offline"
	StatusWarmingUp = "warming_up"
	StatusCharging  = "charging"
	StatusRunning   = "running"
)

// SatFraction returns the energy buffer fill fraction. The boolean is
// false when the capacity is missing or zero; callers must treat that
// as "not applicable" rather than an emergency.
func (s StatusSnapshot) SatFraction() (float64, bool) {
	if s.MaxEnergySaturation <= 0 {
		return 0, false
	}
	return s.EnergySaturation / s.MaxEnergySaturation, true
}

// FieldFraction returns the containment field integrity fraction.
func (s StatusSnapshot) FieldFraction() (float64, bool) {
	if s.MaxFieldStrength <= 0 {
		return 0, false
	}
	return s.FieldStrength / s.MaxFieldStrength, true
}

// FuelFraction returns the consumed-fuel fraction.
func (s StatusSnapshot) FuelFraction() (float64, bool) {
	if s.MaxFuelConversion <= 0 {
		return 0, false
	}
	return s.FuelConversion / s.MaxFuelConversion, true
}

// BurnPlan describes one safety-bounded discharge burn. Plans are
// produced fresh on every planning attempt and never persisted.
type BurnPlan struct {
	AllowedOutflow          float64 `json:"allowedOutflow"`
	BurnDuration            float64 `json:"burnDurationS"`
	RestDuration            float64 `json:"restDurationS"`
	PredictedNet            float64 `json:"predictedNet"`
	RequiredReserveFraction float64 `json:"requiredReserveFraction"`
}

// State enumerates the controller's cross-cycle states.
type State int

const (
	StateIdle State = iota
	StateBurning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateBurning:
		return "Burning"
	default:
		return "Unknown"
	}
}

// ActuatorCommand is the wire form of an actuator write sent to the
// device over the command topic.
type ActuatorCommand struct {
	DeviceID string  `json:"deviceId"`
	Command  string  `json:"command"` // setInflow / setOutflow / stop
	Value    float64 `json:"value"`
	IssuedAt int64   `json:"issuedAt"`
}

// Commands understood by the device.
const (
	CmdSetInflow  = "setInflow"
	CmdSetOutflow = "setOutflow"
	CmdStop       = "stop"
)

// Stats counts what the engine has done since startup. Served on /status.
type Stats struct {
	Loops        int64 `json:"loops"`
	Polls        int64 `json:"polls"`
	PollFailures int64 `json:"pollFailures"`
	Burns        int64 `json:"burns"`
	Aborts       int64 `json:"aborts"`
	FailSafes    int64 `json:"failSafes"`
	NoPlan       int64 `json:"noPlan"`
	Fallbacks    int64 `json:"fallbacks"`
	CommandsOut  int64 `json:"commandsOut"`
	EventsOut    int64 `json:"eventsOut"`
}

// Event is the record emitted to the downstream sinks (file ledger and
// the Kafka stream) for every notable controller decision.
type Event struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Message   string          `json:"message"`
	State     string          `json:"state"`
	Snapshot  *StatusSnapshot `json:"snapshot,omitempty"`
	Plan      *BurnPlan       `json:"plan,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Event kinds.
const (
	EventBurnStart = "burn.start"
	EventBurnEnd   = "burn.end"
	EventBurnAbort = "burn.abort"
	EventFailSafe  = "failsafe"
	EventStartup   = "startup"
)

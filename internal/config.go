// config.go
package internal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SafetyConfig holds the immutable numeric thresholds the control loop
// operates under. Set once at startup, read-only thereafter.
type SafetyConfig struct {
	MaxInflow                 float64 // hard ceiling on the charge actuator (RF/t)
	MaxOutflow                float64 // hard ceiling on the discharge actuator (RF/t)
	TargetTemp                float64 // desired steady-state temperature
	TargetFieldFraction       float64 // desired containment field fraction
	MaxTempOvershoot          float64 // degrees over target before fail-safe
	ShutdownFieldFraction     float64 // field fraction floor before fail-safe
	MinFuelFraction           float64 // remaining fuel fraction floor
	TickLagSeconds            float64 // worst-case telemetry observation lag
	SafetyMarginFraction      float64 // fixed reserve on top of lag reserve
	MinSafeSaturationFraction float64 // buffer fraction no plan may consume
	AbortBurnFraction         float64 // buffer fraction that aborts a burn
	SampleWindow              int     // rate estimator sliding window size
}

type AppConfig struct {
	HTTPBind        string
	MQTTBroker      string
	DeviceID        string
	StatusTopic     string
	CommandTopic    string
	KafkaBrokers    []string
	EventsTopic     string
	LedgerPath      string
	LogDir          string
	PropertiesPath  string
	PollIntervalMs  int
	BurnTickMs      int
	RampSteps       int
	RampStepDelayMs int
	StalenessMs     int
	MaxPollFailures int
	BreakerMaxFails int
	BreakerResetSec int
	Safety          SafetyConfig
}

// LoadEnvAndFiles resolves configuration by layering defaults, the
// optional properties file and finally environment variables.
func LoadEnvAndFiles() (*AppConfig, error) {
	c := &AppConfig{
		HTTPBind:        getenv("HTTP_BIND", ":8080"),
		MQTTBroker:      getenv("MQTT_BROKER", "tcp://localhost:1883"),
		DeviceID:        getenv("DEVICE_ID", "reactor-01"),
		StatusTopic:     getenv("STATUS_TOPIC", "reactor.status"),
		CommandTopic:    getenv("COMMAND_TOPIC", "reactor.commands"),
		KafkaBrokers:    split(getenv("KAFKA_BROKERS", ""), ","),
		EventsTopic:     getenv("EVENTS_TOPIC", "reactor.events"),
		LedgerPath:      getenv("LEDGER_PATH", "./data/reactor-events.jsonl"),
		LogDir:          getenv("LOG_DIR", "./logs"),
		PropertiesPath:  getenv("PROPERTIES_PATH", "./configs/reactor.properties"),
		PollIntervalMs:  geti("POLL_INTERVAL_MS", 250),
		BurnTickMs:      geti("BURN_TICK_MS", 50),
		RampSteps:       geti("RAMP_STEPS", 10),
		RampStepDelayMs: geti("RAMP_STEP_DELAY_MS", 100),
		StalenessMs:     geti("STATUS_STALENESS_MS", 3000),
		MaxPollFailures: geti("MAX_POLL_FAILURES", 20),
		BreakerMaxFails: geti("BREAKER_MAX_FAILURES", 5),
		BreakerResetSec: geti("BREAKER_RESET_SECONDS", 30),
		Safety:          defaultSafety(),
	}
	if err := c.loadProperties(c.PropertiesPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err := c.Safety.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func defaultSafety() SafetyConfig {
	return SafetyConfig{
		MaxInflow:                 1_200_000,
		MaxOutflow:                1_500_000,
		TargetTemp:                8000,
		TargetFieldFraction:       0.50,
		MaxTempOvershoot:          250,
		ShutdownFieldFraction:     0.20,
		MinFuelFraction:           0.10,
		TickLagSeconds:            2.0,
		SafetyMarginFraction:      0.05,
		MinSafeSaturationFraction: 0.15,
		AbortBurnFraction:         0.10,
		SampleWindow:              10,
	}
}

func (s SafetyConfig) validate() error {
	if s.MaxInflow <= 0 || s.MaxOutflow <= 0 {
		return errors.New("actuator ceilings must be > 0")
	}
	for name, f := range map[string]float64{
		"target.field":   s.TargetFieldFraction,
		"shutdown.field": s.ShutdownFieldFraction,
		"min.fuel":       s.MinFuelFraction,
		"safety.margin":  s.SafetyMarginFraction,
		"min.safe.sat":   s.MinSafeSaturationFraction,
		"abort.burn":     s.AbortBurnFraction,
	} {
		if f <= 0 || f >= 1 {
			return fmt.Errorf("%s must be in (0,1), got %v", name, f)
		}
	}
	if s.TickLagSeconds <= 0 {
		return errors.New("tick.lag.seconds must be > 0")
	}
	if s.SampleWindow < 1 {
		return errors.New("sample.window must be >= 1")
	}
	return nil
}

// ReloadProperties re-reads the properties file in place, for the
// /config/reload endpoint. Safety thresholds are deliberately NOT
// reloadable; only a restart changes them.
func (c *AppConfig) ReloadProperties() error {
	keep := c.Safety
	if err := c.loadProperties(c.PropertiesPath); err != nil {
		return err
	}
	c.Safety = keep
	return nil
}

func (c *AppConfig) loadProperties(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		switch k {
		case "mqtt.broker":
			c.MQTTBroker = v
		case "device.id":
			c.DeviceID = v
		case "status.topic":
			c.StatusTopic = v
		case "command.topic":
			c.CommandTopic = v
		case "kafka.brokers":
			c.KafkaBrokers = split(v, ",")
		case "events.topic":
			c.EventsTopic = v
		case "ledger.path":
			c.LedgerPath = v
		case "poll.interval.ms":
			setInt(&c.PollIntervalMs, v)
		case "burn.tick.ms":
			setInt(&c.BurnTickMs, v)
		case "ramp.steps":
			setInt(&c.RampSteps, v)
		case "ramp.step.delay.ms":
			setInt(&c.RampStepDelayMs, v)
		case "max.poll.failures":
			setInt(&c.MaxPollFailures, v)
		case "safety.max.inflow":
			setFloat(&c.Safety.MaxInflow, v)
		case "safety.max.outflow":
			setFloat(&c.Safety.MaxOutflow, v)
		case "safety.target.temp":
			setFloat(&c.Safety.TargetTemp, v)
		case "safety.target.field":
			setFloat(&c.Safety.TargetFieldFraction, v)
		case "safety.max.overshoot":
			setFloat(&c.Safety.MaxTempOvershoot, v)
		case "safety.shutdown.field":
			setFloat(&c.Safety.ShutdownFieldFraction, v)
		case "safety.min.fuel":
			setFloat(&c.Safety.MinFuelFraction, v)
		case "safety.tick.lag.seconds":
			setFloat(&c.Safety.TickLagSeconds, v)
		case "safety.margin":
			setFloat(&c.Safety.SafetyMarginFraction, v)
		case "safety.min.safe.saturation":
			setFloat(&c.Safety.MinSafeSaturationFraction, v)
		case "safety.abort.burn":
			setFloat(&c.Safety.AbortBurnFraction, v)
		case "safety.sample.window":
			setInt(&c.Safety.SampleWindow, v)
		default:
			// unknown keys ignored
		}
	}
	return s.Err()
}

func setFloat(dst *float64, v string) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}

func setInt(dst *int, v string) {
	if i, err := strconv.Atoi(v); err == nil {
		*dst = i
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func geti(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func split(s, sep string) []string {
	if s == "" {
		return nil
	}
	p := strings.Split(s, sep)
	out := make([]string, 0, len(p))
	for _, x := range p {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}

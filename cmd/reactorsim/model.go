package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/marten229/CC-Draconic-Reactor-Manager/internal"
)

// First-order reactor model: outflow heats the core, inflow sustains
// the containment field against a temperature-driven drain, generation
// fills the energy buffer while outflow empties it, and fuel converts
// with temperature. Close enough to exercise the controller end to end.
type Reactor struct {
	log *slog.Logger
	cfg SimConfig

	mu      sync.Mutex
	temp    float64
	field   float64
	sat     float64
	fuel    float64
	inflow  float64
	outflow float64
	stopped bool
	lastE   time.Time
}

func newReactor(cfg SimConfig, log *slog.Logger) *Reactor {
	return &Reactor{
		log:   log,
		cfg:   cfg,
		temp:  cfg.Ambient,
		field: cfg.MaxField * 0.5,
		sat:   cfg.MaxSat * 0.2,
	}
}

func (r *Reactor) integrate(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dt := now.Sub(r.lastE).Seconds()
	if r.lastE.IsZero() || dt <= 0 {
		dt = r.cfg.Step.Seconds()
	}
	r.lastE = now

	if r.stopped {
		r.temp += (r.cfg.Ambient - r.temp) * 0.05 * dt
		return
	}

	// core heating: discharge burn plus a base reaction term, cooled toward ambient
	heating := r.outflow*0.002 + 400
	r.temp += (heating - (r.temp-r.cfg.Ambient)*0.05) * dt
	if r.temp < r.cfg.Ambient {
		r.temp = r.cfg.Ambient
	}

	// field drain rises with temperature; inflow restores it
	drain := 50_000 + r.temp*12
	r.field += (r.inflow - drain) * dt
	r.field = clampf(r.field, 0, r.cfg.MaxField)

	// generation rises with temperature
	generation := r.temp * 120
	r.sat += (generation - r.outflow) * dt
	r.sat = clampf(r.sat, 0, r.cfg.MaxSat)

	r.fuel += r.temp * 0.000004 * dt
	r.fuel = clampf(r.fuel, 0, r.cfg.MaxFuel)
}

func (r *Reactor) snapshot(now time.Time) internal.StatusSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := internal.StatusRunning
	switch {
	case r.stopped:
		status = internal.StatusOffline
	case r.temp < 2000:
		status = internal.StatusWarmingUp
	case r.sat < r.cfg.MaxSat*0.05:
		status = internal.StatusCharging
	}
	generation := r.temp * 120
	if r.stopped {
		generation = 0
	}
	return internal.StatusSnapshot{
		Temperature:         r.temp,
		FieldStrength:       r.field,
		MaxFieldStrength:    r.cfg.MaxField,
		EnergySaturation:    r.sat,
		MaxEnergySaturation: r.cfg.MaxSat,
		FuelConversion:      r.fuel,
		MaxFuelConversion:   r.cfg.MaxFuel,
		FieldDrainRate:      50_000 + r.temp*12,
		GenerationRate:      generation,
		InputRate:           r.inflow,
		OutputRate:          r.outflow,
		Status:              status,
		Timestamp:           now.UnixMilli(),
	}
}

func (r *Reactor) apply(cmd internal.ActuatorCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch strings.TrimSpace(cmd.Command) {
	case internal.CmdSetInflow:
		r.inflow = clampf(cmd.Value, 0, r.cfg.MaxField)
		r.log.Info("inflow set", "value", r.inflow)
	case internal.CmdSetOutflow:
		r.outflow = clampf(cmd.Value, 0, r.cfg.MaxSat)
		r.log.Info("outflow set", "value", r.outflow)
	case internal.CmdStop:
		r.stopped = true
		r.inflow = 0
		r.outflow = 0
		r.log.Warn("reactor stopped by controller")
	default:
		r.log.Warn("unknown command", "command", cmd.Command)
	}
}

func (r *Reactor) startPhysicsLoop(ctx context.Context) {
	t := time.NewTicker(r.cfg.Step)
	r.log.Info("physics loop started", "step", r.cfg.Step.String())
	go func() {
		defer t.Stop()
		for {
			select {
			case now := <-t.C:
				r.integrate(now)
			case <-ctx.Done():
				r.log.Info("physics loop stopped")
				return
			}
		}
	}()
}

func (r *Reactor) startPublisher(ctx context.Context, client mqtt.Client) {
	t := time.NewTicker(r.cfg.PublishEvery)
	r.log.Info("publisher started", "rate", r.cfg.PublishEvery.String())
	go func() {
		defer t.Stop()
		for {
			select {
			case now := <-t.C:
				snap := r.snapshot(now)
				b, err := json.Marshal(snap)
				if err != nil {
					r.log.Error("marshal snapshot", "error", err)
					continue
				}
				token := client.Publish(r.cfg.StatusTopic, 0, false, b)
				if token.WaitTimeout(time.Second) && token.Error() != nil {
					r.log.Warn("publish failed", "error", token.Error())
				}
			case <-ctx.Done():
				r.log.Info("publisher stopped")
				return
			}
		}
	}()
}

func connect(cfg SimConfig, log *slog.Logger, r *Reactor) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID("reactorsim-" + cfg.DeviceID).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			token := c.Subscribe(cfg.CommandTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
				var cmd internal.ActuatorCommand
				if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
					log.Error("bad command payload", "error", err)
					return
				}
				r.apply(cmd)
			})
			if token.Wait() && token.Error() != nil {
				log.Error("command subscribe failed", "error", token.Error())
				return
			}
			log.Info("command topic subscribed", "topic", cfg.CommandTopic)
		})
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.MQTTBroker, token.Error())
	}
	return client, nil
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

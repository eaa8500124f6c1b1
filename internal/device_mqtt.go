// device_mqtt.go
package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// receivedSnapshot pairs a snapshot with its arrival time so staleness
// can be judged at poll time.
type receivedSnapshot struct {
	snap StatusSnapshot
	at   time.Time
}

// MQTTDevice binds the reactor's telemetry and actuator channels over
// an MQTT broker. The subscribe callback swaps the latest snapshot as
// one immutable value; the control loop only ever reads whole
// snapshots, never partially updated ones.
type MQTTDevice struct {
	lg           *slog.Logger
	client       mqtt.Client
	deviceID     string
	statusTopic  string
	commandTopic string
	staleness    time.Duration

	latest      atomic.Pointer[receivedSnapshot]
	lastOutflow atomic.Pointer[float64]
	now         func() time.Time
}

func NewMQTTDevice(cfg *AppConfig, lg *slog.Logger) (*MQTTDevice, error) {
	d := &MQTTDevice{
		lg:           lg,
		deviceID:     cfg.DeviceID,
		statusTopic:  cfg.StatusTopic,
		commandTopic: cfg.CommandTopic,
		staleness:    time.Duration(cfg.StalenessMs) * time.Millisecond,
		now:          time.Now,
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID("reactorctl-" + cfg.DeviceID).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			if token := c.Subscribe(cfg.StatusTopic, 0, d.onStatus); token.Wait() && token.Error() != nil {
				lg.Error("status subscribe failed", "topic", cfg.StatusTopic, "error", token.Error())
				return
			}
			lg.Info("status subscribed", "topic", cfg.StatusTopic)
		})
	d.client = mqtt.NewClient(opts)
	if token := d.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.MQTTBroker, token.Error())
	}
	lg.Info("mqtt connected", "broker", cfg.MQTTBroker, "device", cfg.DeviceID)
	return d, nil
}

func (d *MQTTDevice) onStatus(_ mqtt.Client, msg mqtt.Message) {
	var snap StatusSnapshot
	if err := json.Unmarshal(msg.Payload(), &snap); err != nil {
		d.lg.Error("bad status payload", "topic", msg.Topic(), "error", err)
		return
	}
	d.latest.Store(&receivedSnapshot{snap: snap, at: d.now()})
}

// PollStatus returns the last received snapshot unless it has gone
// stale, in which case the caller treats the cycle as a missed poll.
func (d *MQTTDevice) PollStatus(_ context.Context) (StatusSnapshot, bool) {
	rs := d.latest.Load()
	if rs == nil || d.now().Sub(rs.at) > d.staleness {
		return StatusSnapshot{}, false
	}
	return rs.snap, true
}

func (d *MQTTDevice) SetInflow(ctx context.Context, v float64) error {
	return d.publishCommand(ctx, CmdSetInflow, v)
}

func (d *MQTTDevice) SetOutflow(ctx context.Context, v float64) error {
	if err := d.publishCommand(ctx, CmdSetOutflow, v); err != nil {
		return err
	}
	d.lastOutflow.Store(&v)
	return nil
}

// CurrentOutflow prefers the device-reported rate from fresh telemetry
// and falls back to the last acknowledged command.
func (d *MQTTDevice) CurrentOutflow(ctx context.Context) (float64, bool) {
	if snap, ok := d.PollStatus(ctx); ok {
		return snap.OutputRate, true
	}
	if p := d.lastOutflow.Load(); p != nil {
		return *p, true
	}
	return 0, false
}

func (d *MQTTDevice) Stop(ctx context.Context) error {
	return d.publishCommand(ctx, CmdStop, 0)
}

func (d *MQTTDevice) publishCommand(_ context.Context, command string, v float64) error {
	cmd := ActuatorCommand{
		DeviceID: d.deviceID,
		Command:  command,
		Value:    v,
		IssuedAt: d.now().UnixMilli(),
	}
	b, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	token := d.client.Publish(d.commandTopic, 0, false, b)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish %s: timeout", command)
	}
	if token.Error() != nil {
		return fmt.Errorf("publish %s: %w", command, token.Error())
	}
	return nil
}

func (d *MQTTDevice) Close() {
	d.client.Disconnect(250)
	d.lg.Info("mqtt disconnected")
}

// config_test.go
package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProps(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "reactor.properties")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write properties: %v", err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PROPERTIES_PATH", filepath.Join(t.TempDir(), "missing.properties"))
	cfg, err := LoadEnvAndFiles()
	if err != nil {
		t.Fatalf("LoadEnvAndFiles: %v", err)
	}
	if cfg.HTTPBind != ":8080" {
		t.Fatalf("http bind: got %q", cfg.HTTPBind)
	}
	if cfg.StatusTopic != "reactor.status" || cfg.CommandTopic != "reactor.commands" {
		t.Fatalf("topics: got %q / %q", cfg.StatusTopic, cfg.CommandTopic)
	}
	if cfg.KafkaBrokers != nil {
		t.Fatalf("kafka brokers should default to none, got %v", cfg.KafkaBrokers)
	}
	if cfg.Safety.TargetTemp != 8000 || cfg.Safety.MaxOutflow != 1_500_000 {
		t.Fatalf("safety defaults: %+v", cfg.Safety)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PROPERTIES_PATH", filepath.Join(t.TempDir(), "missing.properties"))
	t.Setenv("HTTP_BIND", ":9999")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("POLL_INTERVAL_MS", "100")
	cfg, err := LoadEnvAndFiles()
	if err != nil {
		t.Fatalf("LoadEnvAndFiles: %v", err)
	}
	if cfg.HTTPBind != ":9999" {
		t.Fatalf("http bind: got %q", cfg.HTTPBind)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("kafka brokers: got %v", cfg.KafkaBrokers)
	}
	if cfg.PollIntervalMs != 100 {
		t.Fatalf("poll interval: got %d", cfg.PollIntervalMs)
	}
}

func TestLoadPropertiesFile(t *testing.T) {
	p := writeProps(t, `
# reactor controller overrides
mqtt.broker = tcp://broker:1883
device.id=reactor-07
poll.interval.ms = 500
safety.target.temp = 7600
safety.max.outflow = 2000000

// ignored comment
not-a-kv-line
unknown.key = ignored
`)
	t.Setenv("PROPERTIES_PATH", p)
	cfg, err := LoadEnvAndFiles()
	if err != nil {
		t.Fatalf("LoadEnvAndFiles: %v", err)
	}
	if cfg.MQTTBroker != "tcp://broker:1883" {
		t.Fatalf("mqtt broker: got %q", cfg.MQTTBroker)
	}
	if cfg.DeviceID != "reactor-07" {
		t.Fatalf("device id: got %q", cfg.DeviceID)
	}
	if cfg.PollIntervalMs != 500 {
		t.Fatalf("poll interval: got %d", cfg.PollIntervalMs)
	}
	if cfg.Safety.TargetTemp != 7600 || cfg.Safety.MaxOutflow != 2_000_000 {
		t.Fatalf("safety overrides: %+v", cfg.Safety)
	}
	// untouched keys keep their defaults
	if cfg.Safety.MaxInflow != 1_200_000 {
		t.Fatalf("max inflow: got %v", cfg.Safety.MaxInflow)
	}
}

func TestLoadRejectsInvalidSafety(t *testing.T) {
	p := writeProps(t, "safety.shutdown.field = 1.5\n")
	t.Setenv("PROPERTIES_PATH", p)
	if _, err := LoadEnvAndFiles(); err == nil {
		t.Fatalf("expected validation error for field fraction outside (0,1)")
	}
}

func TestReloadPropertiesPreservesSafety(t *testing.T) {
	p := writeProps(t, "device.id = reactor-01\n")
	t.Setenv("PROPERTIES_PATH", p)
	cfg, err := LoadEnvAndFiles()
	if err != nil {
		t.Fatalf("LoadEnvAndFiles: %v", err)
	}

	if err := os.WriteFile(p, []byte("device.id = reactor-02\nsafety.target.temp = 9999\n"), 0o644); err != nil {
		t.Fatalf("rewrite properties: %v", err)
	}
	if err := cfg.ReloadProperties(); err != nil {
		t.Fatalf("ReloadProperties: %v", err)
	}
	if cfg.DeviceID != "reactor-02" {
		t.Fatalf("device id not reloaded: %q", cfg.DeviceID)
	}
	if cfg.Safety.TargetTemp != 8000 {
		t.Fatalf("safety must not change on reload, got %v", cfg.Safety.TargetTemp)
	}
}

func TestSafetyValidate(t *testing.T) {
	good := defaultSafety()
	if err := good.validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}

	bad := defaultSafety()
	bad.MaxOutflow = 0
	if err := bad.validate(); err == nil {
		t.Fatalf("zero outflow ceiling accepted")
	}

	bad = defaultSafety()
	bad.SampleWindow = 0
	if err := bad.validate(); err == nil {
		t.Fatalf("zero sample window accepted")
	}

	bad = defaultSafety()
	bad.TickLagSeconds = -1
	if err := bad.validate(); err == nil {
		t.Fatalf("negative tick lag accepted")
	}
}

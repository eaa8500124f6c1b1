package main

import (
	"os"
	"strconv"
	"time"
)

type SimConfig struct {
	MQTTBroker   string
	DeviceID     string
	StatusTopic  string
	CommandTopic string
	Step         time.Duration
	PublishEvery time.Duration

	MaxField float64
	MaxSat   float64
	MaxFuel  float64
	Ambient  float64
}

func buildConfig() SimConfig {
	return SimConfig{
		MQTTBroker:   getenv("MQTT_BROKER", "tcp://localhost:1883"),
		DeviceID:     getenv("DEVICE_ID", "reactor-01"),
		StatusTopic:  getenv("STATUS_TOPIC", "reactor.status"),
		CommandTopic: getenv("COMMAND_TOPIC", "reactor.commands"),
		Step:         time.Duration(geti("STEP_MS", 100)) * time.Millisecond,
		PublishEvery: time.Duration(geti("PUBLISH_MS", 250)) * time.Millisecond,
		MaxField:     getf("MAX_FIELD", 100_000_000),
		MaxSat:       getf("MAX_SATURATION", 1_000_000_000),
		MaxFuel:      getf("MAX_FUEL", 10_368),
		Ambient:      getf("AMBIENT_TEMP", 20),
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

func getf(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

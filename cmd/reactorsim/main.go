package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func initLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func main() {
	logger := initLogger()
	logger.Info("reactor simulator starting")

	cfg := buildConfig()
	logger.Info("config", "broker", cfg.MQTTBroker, "device", cfg.DeviceID,
		"statusTopic", cfg.StatusTopic, "commandTopic", cfg.CommandTopic)

	sim := newReactor(cfg, logger)

	client, err := connect(cfg, logger, sim)
	if err != nil {
		logger.Error("mqtt connect failed", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect(250)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	sim.startPhysicsLoop(ctx)
	sim.startPublisher(ctx, client)

	<-stop
	logger.Info("shutdown signal received")
	cancel()
	time.Sleep(300 * time.Millisecond)
	logger.Info("shutdown complete")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marten229/CC-Draconic-Reactor-Manager/internal"
)

func main() {
	cfg, err := internal.LoadEnvAndFiles()
	if err != nil {
		lg, _ := internal.InitLogger("")
		lg.Error("config", "error", err)
		os.Exit(1)
	}
	lg, lf := internal.InitLogger(cfg.LogDir)
	defer func() {
		if err := lf.Close(); err != nil {
			lg.Error("log file close", "error", err)
		}
	}()
	lg.Info("reactorctl starting", "device", cfg.DeviceID, "broker", cfg.MQTTBroker)

	tgt, err := internal.NewTargets(cfg.Safety)
	if err != nil {
		lg.Error("targets", "error", err)
		os.Exit(1)
	}

	dev, err := internal.NewMQTTDevice(cfg, lg)
	if err != nil {
		lg.Error("mqtt", "error", err)
		os.Exit(1)
	}
	defer dev.Close()

	fileLog, err := internal.NewFileLog(cfg.LedgerPath, lg)
	if err != nil {
		lg.Error("event log", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := fileLog.Close(); err != nil {
			lg.Error("event log close", "error", err)
		}
	}()

	var sinks []internal.EventSink
	sinks = append(sinks, fileLog)
	ks, err := internal.NewKafkaSink(cfg, lg)
	if err != nil {
		lg.Error("kafka", "error", err)
		os.Exit(1)
	}
	if ks != nil {
		sinks = append(sinks, ks)
	}
	sink := internal.NewMultiSink(lg, sinks...)

	met := internal.NewMetrics()
	eng := internal.NewEngine(cfg, lg, dev, tgt, sink, met)

	srv := internal.NewHTTPServer(cfg, lg, eng, tgt, fileLog, met)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	lg.Info("shutdown signal received")
	cancel()

	sh, c := context.WithTimeout(context.Background(), 5*time.Second)
	defer c()
	_ = srv.Stop(sh)
	lg.Info("reactorctl stopped")
}

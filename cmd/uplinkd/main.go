// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/absmach/uplink/calendar"
	"github.com/absmach/uplink/config"
	"github.com/absmach/uplink/delivery"
	"github.com/absmach/uplink/queue"
	"github.com/absmach/uplink/transport"
	"github.com/absmach/uplink/transport/stub"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	loopback := flag.Bool("loopback", false, "Use the in-memory loopback driver instead of a radio")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	start, err := cfg.StartTime()
	if err != nil {
		slog.Error("Invalid start time", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting uplink daemon",
		"pool_size", cfg.Device.PoolSize,
		"message_timeout", cfg.Link.MessageTimeout,
		"listen_window", cfg.Link.ListenWindow,
		"start_time", start.String())

	// The production radio driver is supplied by the MAC integration
	// build; this binary links the loopback stub for bring-up and
	// bench work.
	var driver transport.Driver
	if *loopback {
		lb := stub.New()
		lb.RealListen = true
		driver = lb
		slog.Info("Using loopback transport")
	} else {
		slog.Error("No radio driver linked; run with -loopback")
		os.Exit(1)
	}

	metrics, err := delivery.NewMetrics()
	if err != nil {
		slog.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	arena := queue.New(cfg.Device.PoolSize, logger)
	clock := calendar.NewClock(start)

	engine := delivery.New(arena, clock, driver, delivery.Config{
		Version:          cfg.Device.Version,
		MessageTimeout:   cfg.Link.MessageTimeout,
		ListenWindow:     cfg.Link.ListenWindow,
		CycleInterval:    cfg.Link.CycleInterval,
		SweepInterval:    cfg.Time.SweepInterval,
		ExpiryOffsetDays: cfg.Time.ExpiryOffsetDays,
		FailureThreshold: cfg.Link.FailureThreshold,
		Logger:           logger,
		Metrics:          metrics,
		Restart: func(reason string) {
			// Watchdog analog: the supervisor restarts the process.
			logger.Error("Restarting", "reason", reason)
			os.Exit(1)
		},
		Indicator: func(value byte) {
			logger.Info("Indicator update", "value", value)
		},
		Rejoin: func(ctx context.Context) error {
			// The loopback link has no MAC session to re-establish;
			// the backoff pause alone models the rejoin.
			logger.Warn("Rejoining link", "backoff", cfg.Link.RejoinBackoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Link.RejoinBackoff):
				return nil
			}
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Announce the session with a timed report the network can answer,
	// then a zero probe it can acknowledge without adjusting anything.
	if err := engine.SendTimeReport(true); err != nil {
		slog.Error("Failed to queue time report", "error", err)
		os.Exit(1)
	}
	if err := engine.SendTimeProbe(); err != nil {
		slog.Error("Failed to queue time probe", "error", err)
		os.Exit(1)
	}

	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("Delivery loop failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

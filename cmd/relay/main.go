package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charleschow/sports-lounge/internal/config"
	"github.com/charleschow/sports-lounge/internal/process"
	"github.com/charleschow/sports-lounge/internal/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := process.RunRelay(ctx, cfg); err != nil {
		telemetry.Errorf("relay: %v", err)
		os.Exit(1)
	}
}

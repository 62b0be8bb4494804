package process

import (
	"context"
	"errors"

	"github.com/charleschow/sports-lounge/internal/adapters/inbound/scanner"
	"github.com/charleschow/sports-lounge/internal/adapters/outbound/sportradar"
	"github.com/charleschow/sports-lounge/internal/config"
	"github.com/charleschow/sports-lounge/internal/core/ratelimit"
	"github.com/charleschow/sports-lounge/internal/relay"
	"github.com/charleschow/sports-lounge/internal/telemetry"
)

var (
	ErrRelayURLRequired   = errors.New("RELAY_URL is empty")
	ErrRelaySecretMissing = errors.New("RELAY_SECRET is empty")
	ErrScannerDBRequired  = errors.New("SCANNER_DB_PATH is empty")
)

// RunRelay runs the collector against the authoritative store until ctx is
// cancelled. Configuration and store errors are returned before any
// connection is attempted.
func RunRelay(ctx context.Context, cfg *config.Config) error {
	switch {
	case cfg.RelayURL == "":
		return ErrRelayURLRequired
	case cfg.RelaySecret == "":
		return ErrRelaySecretMissing
	case cfg.ScannerDBPath == "":
		return ErrScannerDBRequired
	}

	_, sports, err := config.ResolveSports(cfg)
	if err != nil {
		return err
	}

	reader, err := scanner.OpenReader(cfg.ScannerDBPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	if cfg.SportRadarAPIKey == "" {
		telemetry.Warnf("relay: SPORTRADAR_API_KEY is empty, PBP requests will fail")
	}
	limiter := ratelimit.New(cfg.SRDailyQuota, nil)
	client := sportradar.NewClient(cfg.SRBaseURL, cfg.SRTier, cfg.SportRadarAPIKey, limiter, nil)

	collector := relay.NewCollector(relay.CollectorConfig{
		URL:               cfg.RelayURL,
		Secret:            cfg.RelaySecret,
		Sports:            sports,
		PollInterval:      cfg.PollInterval,
		BackfillInterval:  cfg.BackfillInterval,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectDelay:    cfg.ReconnectDelay,
		QueueSize:         cfg.PBPQueueSize,
	}, reader, client, nil)

	telemetry.Infof("relay: starting, hub=%s sports=%v quota=%d", cfg.RelayURL, sports, limiter.Quota())
	collector.Run(ctx)

	telemetry.Infof("relay: shutdown complete  schedules=%d  summaries=%d  pbp=%d  upstream_used=%d",
		telemetry.Metrics.SchedulePushes.Value(),
		telemetry.Metrics.SummaryPushes.Value(),
		telemetry.Metrics.PBPPushes.Value(),
		limiter.Used(),
	)
	return nil
}

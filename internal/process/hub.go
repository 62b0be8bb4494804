package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charleschow/sports-lounge/internal/adapters/outbound/discord"
	"github.com/charleschow/sports-lounge/internal/adapters/outbound/sportradar"
	"github.com/charleschow/sports-lounge/internal/config"
	"github.com/charleschow/sports-lounge/internal/core/normalize"
	"github.com/charleschow/sports-lounge/internal/core/ratelimit"
	"github.com/charleschow/sports-lounge/internal/core/state/store"
	"github.com/charleschow/sports-lounge/internal/events"
	"github.com/charleschow/sports-lounge/internal/fanout"
	"github.com/charleschow/sports-lounge/internal/poller"
	"github.com/charleschow/sports-lounge/internal/provider"
	"github.com/charleschow/sports-lounge/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

var (
	ErrRelaySecretRequired = errors.New("RELAY_REQUIRED is true but RELAY_SECRET is empty")
	ErrAPIKeyRequired      = errors.New("DATA_SOURCE=poller needs SPORTRADAR_API_KEY")
)

// HubProcess is a wired broadcast hub.
type HubProcess struct {
	cfg    *config.Config
	cache  *store.StateCache
	hub    *fanout.Hub
	server *fanout.Server
	poller *poller.Poller
}

// NewHub validates cfg and wires the hub for its data source. Any error is
// a fatal startup error.
func NewHub(cfg *config.Config) (*HubProcess, error) {
	sc, sports, err := config.ResolveSports(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.DataSource {
	case config.SourceRelay:
		if cfg.RelayRequired && cfg.RelaySecret == "" {
			return nil, ErrRelaySecretRequired
		}
	case config.SourcePoller:
		if cfg.SportRadarAPIKey == "" {
			return nil, ErrAPIKeyRequired
		}
	case config.SourceMock:
	default:
		return nil, fmt.Errorf("unknown DATA_SOURCE %q (want relay, poller or mock)", cfg.DataSource)
	}

	cache := store.New(nil)
	bus := events.NewBus()

	var prov provider.Provider
	var opts []fanout.Option
	if cfg.DataSource == config.SourceMock {
		prov = provider.NewMock()
	} else {
		prov = provider.NewNormalized(cache, normalize.New(sc.StatusOverrides))
	}
	if cfg.DataSource == config.SourcePoller {
		opts = append(opts, fanout.WithLocalDemand())
	}

	hub := fanout.NewHub(cache, prov, bus, opts...)
	bus.Subscribe(events.EventRelayStatus, func(e events.Event) error {
		if st, ok := e.Payload.(events.RelayStatusEvent); ok && !st.Connected {
			telemetry.Warnf("hub: relay link down, serving cached state")
		}
		return nil
	})
	discord.NewNotifier(cfg.DiscordWebhookURL).Subscribe(bus)

	server, err := fanout.NewServer(hub, fanout.ServerConfig{
		Addr:              fmt.Sprintf("%s:%d", cfg.HubHost, cfg.HubPort),
		RelaySecret:       cfg.RelaySecret,
		HeartbeatInterval: cfg.HeartbeatInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	p := &HubProcess{cfg: cfg, cache: cache, hub: hub, server: server}
	if cfg.DataSource == config.SourcePoller {
		limiter := ratelimit.New(cfg.SRDailyQuota, nil)
		client := sportradar.NewClient(cfg.SRBaseURL, cfg.SRTier, cfg.SportRadarAPIKey, limiter, nil)
		p.poller = poller.New(poller.Config{
			Sports:           sports,
			ScheduleInterval: cfg.ScheduleInterval,
			LiveInterval:     cfg.GameInterval,
			IdleInterval:     cfg.IdleInterval,
			BackfillInterval: cfg.BackfillInterval,
		}, client, cache, hub, nil)
	}
	return p, nil
}

func (p *HubProcess) Hub() *fanout.Hub       { return p.hub }
func (p *HubProcess) Server() *fanout.Server { return p.server }

// Run serves until ctx is cancelled, then shuts down within shutdownTimeout.
func (p *HubProcess) Run(ctx context.Context) error {
	telemetry.Infof("hub: starting, data_source=%s", p.cfg.DataSource)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- p.server.ListenAndServe() }()

	pollerDone := make(chan struct{})
	if p.poller != nil {
		go func() {
			defer close(pollerDone)
			if err := p.poller.Run(ctx); err != nil {
				telemetry.Errorf("hub: poller: %v", err)
			}
		}()
	} else {
		close(pollerDone)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	cancel()

	telemetry.Infof("hub: shutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := p.server.Shutdown(shutdownCtx); err != nil {
		telemetry.Warnf("hub: shutdown: %v", err)
	}
	<-pollerDone

	telemetry.Infof("hub: shutdown complete  relay_in=%d  broadcasts=%d  send_errors=%d",
		telemetry.Metrics.RelayMessagesIn.Value(),
		telemetry.Metrics.Broadcasts.Value(),
		telemetry.Metrics.ViewerSendErrors.Value(),
	)
	return serveErr
}

// RunHub builds the hub from cfg and runs it until ctx is cancelled.
func RunHub(ctx context.Context, cfg *config.Config) error {
	p, err := NewHub(cfg)
	if err != nil {
		return err
	}
	return p.Run(ctx)
}

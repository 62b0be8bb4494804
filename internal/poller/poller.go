// Package poller keeps the StateCache fresh by polling the metered API
// directly, for hubs running without a relay.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/charleschow/sports-lounge/internal/adapters/outbound/sportradar"
	"github.com/charleschow/sports-lounge/internal/core/state/store"
	"github.com/charleschow/sports-lounge/internal/core/tracking"
	"github.com/charleschow/sports-lounge/internal/core/upstream"
	"github.com/charleschow/sports-lounge/internal/telemetry"
)

// Applier is the hub's cache write path. Satisfied by *fanout.Hub.
type Applier interface {
	ApplySchedule(sport string, data map[string]any)
	ApplySummary(gameID string, data map[string]any)
	ApplyPBP(gameID string, data map[string]any)
}

type Config struct {
	Sports           []string
	ScheduleInterval time.Duration
	LiveInterval     time.Duration
	IdleInterval     time.Duration
	BackfillInterval time.Duration
	RateLimitPause   time.Duration
}

func (c *Config) setDefaults() {
	if c.ScheduleInterval <= 0 {
		c.ScheduleInterval = 5 * time.Minute
	}
	if c.LiveInterval <= 0 {
		c.LiveInterval = 2 * time.Second
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = 30 * time.Second
	}
	if c.BackfillInterval <= 0 {
		c.BackfillInterval = time.Minute
	}
	if c.RateLimitPause <= 0 {
		c.RateLimitPause = time.Minute
	}
}

type Poller struct {
	cfg     Config
	feed    upstream.Feed
	cache   *store.StateCache
	apply   Applier
	tracker *tracking.ChangeTracker
	clock   clockwork.Clock
}

func New(cfg Config, feed upstream.Feed, cache *store.StateCache, apply Applier, clock clockwork.Clock) *Poller {
	cfg.setDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		cfg:     cfg,
		feed:    feed,
		cache:   cache,
		apply:   apply,
		tracker: tracking.NewChangeTracker(),
		clock:   clock,
	}
}

// Run fetches every schedule once, then runs the schedule, live and
// backfill tasks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	telemetry.Infof("poller: started, sports=%v", p.cfg.Sports)
	if err := p.RefreshSchedules(ctx); err != nil {
		return nil // cancelled during the first fetch
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.scheduleLoop(ctx) })
	g.Go(func() error { return p.liveLoop(ctx) })
	g.Go(func() error { return p.backfillLoop(ctx) })
	err := g.Wait()
	telemetry.Infof("poller: stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Poller) scheduleLoop(ctx context.Context) error {
	for {
		if err := p.wait(ctx, p.cfg.ScheduleInterval); err != nil {
			return err
		}
		if err := p.RefreshSchedules(ctx); err != nil {
			return err
		}
	}
}

func (p *Poller) liveLoop(ctx context.Context) error {
	for {
		live, err := p.PollLive(ctx)
		if err != nil {
			return err
		}
		if err := p.DrainPBP(ctx); err != nil {
			return err
		}
		delay := p.cfg.IdleInterval
		if live > 0 {
			delay = p.cfg.LiveInterval
		}
		if err := p.wait(ctx, delay); err != nil {
			return err
		}
	}
}

func (p *Poller) backfillLoop(ctx context.Context) error {
	for {
		if err := p.Backfill(ctx); err != nil {
			return err
		}
		if err := p.wait(ctx, p.cfg.BackfillInterval); err != nil {
			return err
		}
	}
}

// RefreshSchedules fetches each sport's daily schedule, applying only
// those that changed. An unchanged schedule is restamped so its age tracks
// the last successful fetch.
func (p *Poller) RefreshSchedules(ctx context.Context) error {
	for _, sport := range p.cfg.Sports {
		data, err := p.feed.DailySchedule(ctx, sport)
		if err := p.handle(ctx, err, "schedule "+sport); err != nil {
			return err
		}
		if data == nil {
			continue
		}
		if !p.tracker.CheckSchedule(sport, data) {
			p.cache.TouchSchedule(sport)
			continue
		}
		p.apply.ApplySchedule(sport, data)
		telemetry.Infof("poller: schedule updated: %s, %d games", sport, len(store.ScheduleGames(data)))
	}
	return nil
}

// PollLive refreshes the summary of every live game and returns how many
// there were.
func (p *Poller) PollLive(ctx context.Context) (int, error) {
	live := p.cache.LiveGameIDs()
	for _, id := range live {
		if err := p.fetchSummary(ctx, id); err != nil {
			return len(live), err
		}
	}
	return len(live), nil
}

// Backfill fetches a first summary for scheduled games that have none.
func (p *Poller) Backfill(ctx context.Context) error {
	live := make(map[string]struct{})
	for _, id := range p.cache.LiveGameIDs() {
		live[id] = struct{}{}
	}
	for _, id := range p.cache.AllGameIDs() {
		if _, ok := live[id]; ok || p.cache.HasSummary(id) {
			continue
		}
		if err := p.fetchSummary(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// DrainPBP fetches play-by-play for every game a viewer asked about since
// the last drain.
func (p *Poller) DrainPBP(ctx context.Context) error {
	for id := range p.cache.DrainPBPRequests() {
		sport, ok := p.cache.SportForGame(id)
		if !ok {
			telemetry.Debugf("poller: no schedule lists game %s, skipping PBP", id)
			continue
		}
		data, err := p.feed.PlayByPlay(ctx, sport, id)
		if err := p.handle(ctx, err, "pbp "+id); err != nil {
			return err
		}
		if data != nil {
			p.apply.ApplyPBP(id, data)
		}
	}
	return nil
}

func (p *Poller) fetchSummary(ctx context.Context, id string) error {
	sport, ok := p.cache.SportForGame(id)
	if !ok {
		return nil
	}
	data, err := p.feed.GameSummary(ctx, sport, id)
	if err := p.handle(ctx, err, "summary "+id); err != nil {
		return err
	}
	if data == nil || !p.tracker.CheckSummaryContent(id, data) {
		return nil
	}
	p.apply.ApplySummary(id, data)
	return nil
}

// handle logs a fetch failure. Only cancellation is returned; a 429 pauses
// the calling task first.
func (p *Poller) handle(ctx context.Context, err error, what string) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, sportradar.ErrRateLimited):
		telemetry.Warnf("poller: %s rate limited, pausing %s", what, p.cfg.RateLimitPause)
		return p.wait(ctx, p.cfg.RateLimitPause)
	case errors.Is(err, sportradar.ErrUnauthorized):
		telemetry.Errorf("poller: %s unauthorized, check SPORTRADAR_API_KEY", what)
	case errors.Is(err, sportradar.ErrQuotaExhausted):
		telemetry.Debugf("poller: daily quota exhausted, skipping %s", what)
	default:
		telemetry.Warnf("poller: %s: %v", what, err)
	}
	return nil
}

func (p *Poller) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(d):
		return nil
	}
}

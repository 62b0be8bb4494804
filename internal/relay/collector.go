package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/charleschow/sports-lounge/internal/adapters/outbound/sportradar"
	"github.com/charleschow/sports-lounge/internal/core/state/store"
	"github.com/charleschow/sports-lounge/internal/core/tracking"
	"github.com/charleschow/sports-lounge/internal/core/upstream"
	"github.com/charleschow/sports-lounge/internal/telemetry"
)

// ErrRejected means the hub refused the relay secret.
var ErrRejected = errors.New("relay: rejected by hub")

const (
	writeDeadline = 5 * time.Second
	outboundBuf   = 64
)

// State is the collector's connection state.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateBackingOff
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackingOff:
		return "backing-off"
	case StateShuttingDown:
		return "shutting-down"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type CollectorConfig struct {
	URL    string // ws(s)://host/ws/relay
	Secret string
	Sports []string

	PollInterval      time.Duration
	BackfillInterval  time.Duration
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	// RateLimitPause is how long the PBP worker idles after an upstream 429.
	RateLimitPause time.Duration
	QueueSize      int
}

func (c *CollectorConfig) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BackfillInterval <= 0 {
		c.BackfillInterval = time.Minute
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.RateLimitPause <= 0 {
		c.RateLimitPause = time.Minute
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
}

// Collector is the relay's collector side. It watches the authoritative
// store, pushes changed schedules and summaries to the hub, and serves the
// hub's play-by-play requests from the metered API.
type Collector struct {
	cfg     CollectorConfig
	store   upstream.Store
	fetcher upstream.PBPFetcher
	tracker *tracking.ChangeTracker
	clock   clockwork.Clock
	dialer  *websocket.Dialer

	state atomic.Int32

	// PBP work queue; pending dedups ids that are queued or being fetched.
	queue     chan string
	pendingMu sync.Mutex
	pending   map[string]struct{}
}

func NewCollector(cfg CollectorConfig, st upstream.Store, fetcher upstream.PBPFetcher, clock clockwork.Clock) *Collector {
	cfg.setDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Collector{
		cfg:     cfg,
		store:   st,
		fetcher: fetcher,
		tracker: tracking.NewChangeTracker(),
		clock:   clock,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		queue:   make(chan string, cfg.QueueSize),
		pending: make(map[string]struct{}),
	}
}

func (c *Collector) State() State { return State(c.state.Load()) }

func (c *Collector) setState(s State) {
	if prev := State(c.state.Swap(int32(s))); prev != s {
		telemetry.Debugf("relay: %s -> %s", prev, s)
	}
}

// Run connects to the hub and reconnects after a fixed delay whenever the
// session ends. Blocks until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			c.setState(StateShuttingDown)
			return
		}

		c.setState(StateConnecting)
		err := c.session(ctx)
		if ctx.Err() != nil {
			c.setState(StateShuttingDown)
			telemetry.Infof("relay: shutting down")
			return
		}

		telemetry.Metrics.RelayConnected.Set(0)
		telemetry.Metrics.RelayReconnects.Inc()
		c.setState(StateBackingOff)
		if errors.Is(err, ErrRejected) {
			telemetry.Errorf("relay: hub rejected the relay secret, retrying in %s", c.cfg.ReconnectDelay)
		} else {
			telemetry.Warnf("relay: connection lost: %v, reconnecting in %s", err, c.cfg.ReconnectDelay)
		}

		select {
		case <-ctx.Done():
			c.setState(StateShuttingDown)
			return
		case <-c.clock.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *Collector) dialURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.cfg.Secret)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// session runs one connection until any of its tasks fails.
func (c *Collector) session(ctx context.Context) error {
	target, err := c.dialURL()
	if err != nil {
		return err
	}
	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()

	// A new session may be talking to a restarted hub with an empty cache.
	c.tracker.Reset()
	c.setState(StateConnected)
	telemetry.Metrics.RelayConnected.Set(1)
	telemetry.Infof("relay: connected to %s", c.cfg.URL)

	g, gctx := errgroup.WithContext(ctx)
	out := make(chan []byte, outboundBuf)

	g.Go(func() error { return c.writePump(gctx, conn, out) })
	g.Go(func() error { return c.readPump(conn) })
	g.Go(func() error { return c.pollLoop(gctx, out) })
	g.Go(func() error { return c.backfillLoop(gctx, out) })
	g.Go(func() error { return c.heartbeatLoop(gctx, out) })
	g.Go(func() error { return c.pbpWorker(gctx, out) })
	g.Go(func() error {
		<-gctx.Done()
		conn.Close()
		return nil
	})

	return g.Wait()
}

// writePump is the only goroutine that writes data frames to conn.
func (c *Collector) writePump(ctx context.Context, conn *websocket.Conn, out <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()
		case msg := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return fmt.Errorf("write: %w", err)
			}
			telemetry.Metrics.RelayMessagesOut.Inc()
		}
	}
}

func (c *Collector) readPump(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, CloseUnauthorized) {
				return ErrRejected
			}
			return fmt.Errorf("read: %w", err)
		}
		telemetry.Metrics.RelayMessagesIn.Inc()

		msg, err := Decode(raw)
		if err != nil {
			telemetry.Metrics.RelayParseErrors.Inc()
			telemetry.Warnf("relay: dropping frame from hub: %v", err)
			continue
		}
		if msg.Type != TypeRequestPBP {
			telemetry.Debugf("relay: ignoring %s from hub", msg.Type)
			continue
		}
		telemetry.Metrics.PBPRequests.Inc()
		if c.enqueue(msg.GameID) {
			telemetry.Infof("relay: PBP requested for %s", msg.GameID)
		}
	}
}

// enqueue adds gameID to the PBP queue unless it is already pending.
func (c *Collector) enqueue(gameID string) bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if _, ok := c.pending[gameID]; ok {
		return false
	}
	select {
	case c.queue <- gameID:
		c.pending[gameID] = struct{}{}
		return true
	default:
		telemetry.Metrics.PBPQueueDrops.Inc()
		telemetry.Warnf("relay: PBP queue full, dropping request for %s", gameID)
		return false
	}
}

func (c *Collector) release(gameID string) {
	c.pendingMu.Lock()
	delete(c.pending, gameID)
	c.pendingMu.Unlock()
}

func (c *Collector) send(ctx context.Context, out chan<- []byte, msg []byte) error {
	select {
	case out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collector) pollLoop(ctx context.Context, out chan<- []byte) error {
	ticker := c.clock.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := c.pollOnce(ctx, out); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

// pollOnce pushes changed schedules and changed summaries of live games.
// Store read errors are transient and only logged.
func (c *Collector) pollOnce(ctx context.Context, out chan<- []byte) error {
	for _, sport := range c.cfg.Sports {
		data, err := c.store.Schedule(ctx, sport)
		if err != nil {
			telemetry.Warnf("relay: read schedule %s: %v", sport, err)
			continue
		}
		if data == nil {
			continue
		}

		if c.tracker.CheckSchedule(sport, data) {
			msg, err := Schedule(sport, data)
			if err != nil {
				telemetry.Warnf("relay: encode schedule %s: %v", sport, err)
			} else if err := c.send(ctx, out, msg); err != nil {
				return err
			} else {
				telemetry.Metrics.SchedulePushes.Inc()
				telemetry.Debugf("relay: pushed schedule for %s", sport)
			}
		}

		for _, game := range store.ScheduleGames(data) {
			id, _ := game["id"].(string)
			status, _ := game["status"].(string)
			if id == "" || !store.IsLiveStatus(status) {
				continue
			}
			if err := c.pushSummary(ctx, out, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// pushSummary sends the store's record for gameID if it is newer than the
// last one pushed. Only send failures are returned.
func (c *Collector) pushSummary(ctx context.Context, out chan<- []byte, gameID string) error {
	rec, err := c.store.Game(ctx, gameID)
	if err != nil {
		telemetry.Warnf("relay: read game %s: %v", gameID, err)
		return nil
	}
	if rec == nil || !c.tracker.CheckSummaryRaw(gameID, rec.UpdatedAt) {
		return nil
	}
	msg, err := Summary(gameID, rec.Data)
	if err != nil {
		telemetry.Warnf("relay: encode summary %s: %v", gameID, err)
		return nil
	}
	if err := c.send(ctx, out, msg); err != nil {
		return err
	}
	telemetry.Metrics.SummaryPushes.Inc()
	telemetry.Debugf("relay: pushed summary for %s", gameID)
	return nil
}

// backfillLoop pushes summaries for scheduled games that are not live and
// have never been pushed in this session, on its own slower cadence.
func (c *Collector) backfillLoop(ctx context.Context, out chan<- []byte) error {
	ticker := c.clock.NewTicker(c.cfg.BackfillInterval)
	defer ticker.Stop()
	for {
		for _, sport := range c.cfg.Sports {
			data, err := c.store.Schedule(ctx, sport)
			if err != nil || data == nil {
				continue
			}
			for _, game := range store.ScheduleGames(data) {
				id, _ := game["id"].(string)
				status, _ := game["status"].(string)
				if id == "" || store.IsLiveStatus(status) || c.tracker.Seen(id) {
					continue
				}
				if err := c.pushSummary(ctx, out, id); err != nil {
					return err
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}

func (c *Collector) heartbeatLoop(ctx context.Context, out chan<- []byte) error {
	ticker := c.clock.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := c.send(ctx, out, Heartbeat()); err != nil {
				return err
			}
		}
	}
}

// pbpWorker serves queued PBP requests one at a time. The metered fetcher
// applies the rate limiter.
func (c *Collector) pbpWorker(ctx context.Context, out chan<- []byte) error {
	for {
		var gameID string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case gameID = <-c.queue:
		}

		if ctx.Err() != nil {
			c.release(gameID)
			return ctx.Err()
		}
		err := c.fetchPBP(ctx, out, gameID)
		c.release(gameID)
		if err != nil {
			return err
		}
	}
}

// fetchPBP fetches and pushes play-by-play for gameID. Upstream failures are
// logged and swallowed; only cancellation and send failures are returned.
func (c *Collector) fetchPBP(ctx context.Context, out chan<- []byte, gameID string) error {
	sport, ok := c.sportForGame(ctx, gameID)
	if !ok {
		telemetry.Warnf("relay: no schedule lists game %s, skipping PBP", gameID)
		return nil
	}

	data, err := c.fetcher.PlayByPlay(ctx, sport, gameID)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, sportradar.ErrRateLimited):
		telemetry.Warnf("relay: PBP rate limited, pausing %s", c.cfg.RateLimitPause)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.cfg.RateLimitPause):
		}
		return nil
	case errors.Is(err, sportradar.ErrUnauthorized):
		telemetry.Errorf("relay: PBP fetch for %s unauthorized, check SPORTRADAR_API_KEY", gameID)
		return nil
	case errors.Is(err, sportradar.ErrQuotaExhausted):
		telemetry.Warnf("relay: daily quota exhausted, skipping PBP for %s", gameID)
		return nil
	default:
		telemetry.Warnf("relay: PBP fetch for %s: %v", gameID, err)
		return nil
	}
	if data == nil {
		return nil
	}

	msg, err := PBP(gameID, data)
	if err != nil {
		telemetry.Warnf("relay: encode pbp %s: %v", gameID, err)
		return nil
	}
	if err := c.send(ctx, out, msg); err != nil {
		return err
	}
	telemetry.Metrics.PBPPushes.Inc()
	telemetry.Infof("relay: pushed PBP for %s (%d bytes)", gameID, len(msg))
	return nil
}

func (c *Collector) sportForGame(ctx context.Context, gameID string) (string, bool) {
	for _, sport := range c.cfg.Sports {
		data, err := c.store.Schedule(ctx, sport)
		if err != nil || data == nil {
			continue
		}
		for _, game := range store.ScheduleGames(data) {
			if id, _ := game["id"].(string); id == gameID {
				return sport, true
			}
		}
	}
	return "", false
}

package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charleschow/sports-lounge/internal/core/state/store"
	"github.com/charleschow/sports-lounge/internal/events"
	"github.com/charleschow/sports-lounge/internal/provider"
	"github.com/charleschow/sports-lounge/internal/relay"
	"github.com/charleschow/sports-lounge/internal/telemetry"
)

// Viewer is one downstream connection. Send must not block on the network.
type Viewer interface {
	ID() string
	Send(msg []byte) error
	Close() error
}

// relaySender is the hub's handle on the attached collector relay.
type relaySender interface {
	SendRequestPBP(gameID string) error
	Close() error
}

// Hub owns the subscription registry and the relay handle. It applies
// state deltas to the StateCache and fans canonical payloads out to the
// viewers subscribed to the affected topics.
type Hub struct {
	cache    *store.StateCache
	provider provider.Provider
	bus      *events.Bus

	// localDemand also records PBP demand in the cache, for the poller.
	localDemand bool

	// applyMu serializes cache writes and the fan-out they trigger, so every
	// viewer sees a topic's payloads in apply order.
	applyMu sync.Mutex

	mu           sync.Mutex
	topics       map[string]map[Viewer]struct{}
	viewerTopics map[Viewer]map[string]struct{}

	relayMu       sync.Mutex
	relay         relaySender
	lastHeartbeat time.Time
}

type Option func(*Hub)

// WithLocalDemand makes RequestPBP mark the StateCache demand set, for hubs
// that poll the upstream themselves.
func WithLocalDemand() Option {
	return func(h *Hub) { h.localDemand = true }
}

func NewHub(cache *store.StateCache, prov provider.Provider, bus *events.Bus, opts ...Option) *Hub {
	h := &Hub{
		cache:        cache,
		provider:     prov,
		bus:          bus,
		topics:       make(map[string]map[Viewer]struct{}),
		viewerTopics: make(map[Viewer]map[string]struct{}),
	}
	for _, o := range opts {
		o(h)
	}

	bus.Subscribe(events.EventScheduleUpdated, h.onScheduleUpdated)
	bus.Subscribe(events.EventSummaryUpdated, h.onSummaryUpdated)
	bus.Subscribe(events.EventPBPUpdated, h.onPBPUpdated)
	return h
}

// ── Subscription registry ──────────────────────────────────

// Subscribe adds v to topic and immediately sends it the current snapshot.
// Subscribing to a game topic always signals PBP demand for that game.
//
// Registration and the snapshot send hold applyMu, so no concurrent apply
// can broadcast a newer payload that the snapshot then overwrites.
func (h *Hub) Subscribe(ctx context.Context, v Viewer, topic string) error {
	gameID, err := ParseTopic(topic)
	if err != nil {
		return err
	}

	h.sendSnapshot(ctx, v, topic, gameID)
	if topic != TopicScoreboard {
		h.RequestPBP(gameID)
	}
	return nil
}

func (h *Hub) sendSnapshot(ctx context.Context, v Viewer, topic, gameID string) {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()

	h.mu.Lock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[Viewer]struct{})
	}
	h.topics[topic][v] = struct{}{}
	if h.viewerTopics[v] == nil {
		h.viewerTopics[v] = make(map[string]struct{})
	}
	h.viewerTopics[v][topic] = struct{}{}
	h.mu.Unlock()

	var (
		snapshot []byte
		err      error
	)
	if topic == TopicScoreboard {
		snapshot, err = h.ScoreboardSnapshot(ctx)
	} else {
		snapshot, err = h.GameSnapshot(ctx, gameID)
	}
	if err != nil {
		telemetry.Warnf("fanout: snapshot for %s: %v", topic, err)
		return
	}
	if snapshot != nil {
		if err := v.Send(snapshot); err != nil {
			h.drop(v, err)
		}
	}
}

func (h *Hub) Unsubscribe(v Viewer, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, v)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	if ts, ok := h.viewerTopics[v]; ok {
		delete(ts, topic)
		if len(ts) == 0 {
			delete(h.viewerTopics, v)
		}
	}
}

// DisconnectViewer removes v from every topic it joined.
func (h *Hub) DisconnectViewer(v Viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic := range h.viewerTopics[v] {
		if subs, ok := h.topics[topic]; ok {
			delete(subs, v)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	delete(h.viewerTopics, v)
}

func (h *Hub) SubscriberCount(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

func (h *Hub) ViewerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewerTopics)
}

func (h *Hub) subscribers(topic string) []Viewer {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Viewer, 0, len(h.topics[topic]))
	for v := range h.topics[topic] {
		out = append(out, v)
	}
	return out
}

// ── Relay ──────────────────────────────────────────────────

// AttachRelay makes r the authoritative relay, closing any previous one.
func (h *Hub) AttachRelay(r relaySender) {
	h.relayMu.Lock()
	old := h.relay
	h.relay = r
	h.lastHeartbeat = time.Now()
	h.relayMu.Unlock()

	if old != nil {
		telemetry.Warnf("fanout: new relay connected, closing the previous one")
		old.Close()
	}
	telemetry.Metrics.RelayConnected.Set(1)
	h.bus.Publish(events.Event{Type: events.EventRelayStatus, Timestamp: time.Now(),
		Payload: events.RelayStatusEvent{Connected: true, Remote: remoteOf(r)}})
}

// DetachRelay clears the relay handle if r is still the current relay.
func (h *Hub) DetachRelay(r relaySender) {
	h.relayMu.Lock()
	current := h.relay == r
	if current {
		h.relay = nil
	}
	h.relayMu.Unlock()

	if current {
		telemetry.Metrics.RelayConnected.Set(0)
		h.bus.Publish(events.Event{Type: events.EventRelayStatus, Timestamp: time.Now(),
			Payload: events.RelayStatusEvent{Connected: false, Remote: remoteOf(r)}})
	}
}

func remoteOf(r relaySender) string {
	if rr, ok := r.(interface{ Remote() string }); ok {
		return rr.Remote()
	}
	return ""
}

func (h *Hub) RelayConnected() bool {
	h.relayMu.Lock()
	defer h.relayMu.Unlock()
	return h.relay != nil
}

// RequestPBP forwards a demand signal for gameID to the relay. Without a
// relay it is a no-op unless the hub records demand locally.
func (h *Hub) RequestPBP(gameID string) {
	if gameID == "" {
		return
	}
	if h.localDemand {
		h.cache.RequestPBP(gameID)
	}

	h.relayMu.Lock()
	r := h.relay
	h.relayMu.Unlock()
	if r == nil {
		telemetry.Debugf("fanout: no relay, PBP request for %s not forwarded", gameID)
		return
	}
	if err := r.SendRequestPBP(gameID); err != nil {
		telemetry.Warnf("fanout: forward PBP request for %s: %v", gameID, err)
	}
}

// OnRelayMessage decodes one relay frame and applies it. Malformed frames
// are logged and dropped.
func (h *Hub) OnRelayMessage(raw []byte) {
	telemetry.Metrics.RelayMessagesIn.Inc()
	msg, err := relay.Decode(raw)
	if err != nil {
		telemetry.Metrics.RelayParseErrors.Inc()
		telemetry.Warnf("fanout: dropping relay frame: %v", err)
		return
	}
	if err := h.Apply(msg); err != nil {
		telemetry.Metrics.RelayParseErrors.Inc()
		telemetry.Warnf("fanout: apply %s: %v", msg.Type, err)
	}
}

// Apply writes a decoded relay message into the cache and fans it out.
func (h *Hub) Apply(msg relay.Message) error {
	switch msg.Type {
	case relay.TypeHeartbeat:
		h.relayMu.Lock()
		h.lastHeartbeat = time.Now()
		h.relayMu.Unlock()
		return nil
	case relay.TypeRequestPBP:
		return nil
	}

	data, err := msg.Payload()
	if err != nil {
		return err
	}
	switch msg.Type {
	case relay.TypeSchedule:
		h.ApplySchedule(msg.Sport, data)
	case relay.TypeSummary:
		h.ApplySummary(msg.GameID, data)
	case relay.TypePBP:
		h.ApplyPBP(msg.GameID, data)
	default:
		return fmt.Errorf("%w: %q", relay.ErrUnknownType, msg.Type)
	}
	return nil
}

func (h *Hub) ApplySchedule(sport string, data map[string]any) {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()
	h.cache.SetSchedule(sport, data)
	h.bus.Publish(events.Event{Type: events.EventScheduleUpdated, Sport: sport, Timestamp: time.Now()})
}

func (h *Hub) ApplySummary(gameID string, data map[string]any) {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()
	h.cache.SetSummary(gameID, data)
	h.bus.Publish(events.Event{Type: events.EventSummaryUpdated, GameID: gameID, Timestamp: time.Now()})
}

func (h *Hub) ApplyPBP(gameID string, data map[string]any) {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()
	h.cache.SetPBP(gameID, data)
	h.bus.Publish(events.Event{Type: events.EventPBPUpdated, GameID: gameID, Timestamp: time.Now()})
}

// ── Fan-out ────────────────────────────────────────────────

func (h *Hub) onScheduleUpdated(events.Event) error {
	return h.publishScoreboard(context.Background())
}

func (h *Hub) onSummaryUpdated(e events.Event) error {
	if err := h.publishScoreboard(context.Background()); err != nil {
		return err
	}
	return h.publishGame(context.Background(), e.GameID)
}

func (h *Hub) onPBPUpdated(e events.Event) error {
	return h.publishGame(context.Background(), e.GameID)
}

// ScoreboardSnapshot builds the scoreboard payload from current state.
func (h *Hub) ScoreboardSnapshot(ctx context.Context) ([]byte, error) {
	games, err := h.provider.Scoreboard(ctx, provider.AllSports)
	if err != nil {
		return nil, fmt.Errorf("scoreboard: %w", err)
	}
	return MarshalScoreboard(games)
}

// GameSnapshot builds the game_update payload for gameID, or nil when the
// game is not known yet.
func (h *Hub) GameSnapshot(ctx context.Context, gameID string) ([]byte, error) {
	detail, err := h.provider.Game(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", gameID, err)
	}
	if detail == nil {
		return nil, nil
	}
	return MarshalGameUpdate(gameID, detail)
}

func (h *Hub) publishScoreboard(ctx context.Context) error {
	viewers := h.subscribers(TopicScoreboard)
	if len(viewers) == 0 {
		return nil
	}
	payload, err := h.ScoreboardSnapshot(ctx)
	if err != nil {
		return err
	}
	h.broadcast(viewers, payload)
	return nil
}

func (h *Hub) publishGame(ctx context.Context, gameID string) error {
	viewers := h.subscribers(GameTopic(gameID))
	if len(viewers) == 0 {
		return nil
	}
	payload, err := h.GameSnapshot(ctx, gameID)
	if err != nil || payload == nil {
		return err
	}
	h.broadcast(viewers, payload)
	return nil
}

// broadcast sends payload to every viewer concurrently and waits for all of
// them. Viewers that fail are pruned from every topic and closed.
func (h *Hub) broadcast(viewers []Viewer, payload []byte) {
	telemetry.Metrics.Broadcasts.Inc()

	var (
		wg       sync.WaitGroup
		failedMu sync.Mutex
		failed   []Viewer
		errs     []error
	)
	for _, v := range viewers {
		wg.Add(1)
		go func(v Viewer) {
			defer wg.Done()
			if err := v.Send(payload); err != nil {
				failedMu.Lock()
				failed = append(failed, v)
				errs = append(errs, err)
				failedMu.Unlock()
				return
			}
			telemetry.Metrics.ViewerSends.Inc()
		}(v)
	}
	wg.Wait()

	for i, v := range failed {
		h.drop(v, errs[i])
	}
}

func (h *Hub) drop(v Viewer, err error) {
	telemetry.Metrics.ViewerSendErrors.Inc()
	telemetry.Warnf("fanout: dropping viewer %s: %v", v.ID(), err)
	h.DisconnectViewer(v)
	v.Close()
}

// ── Lifecycle ──────────────────────────────────────────────

// Health is the hub's /healthz body.
type Health struct {
	RelayConnected     bool               `json:"relay_connected"`
	LastHeartbeatAgo   float64            `json:"last_heartbeat_seconds_ago,omitempty"`
	Viewers            int                `json:"viewers"`
	ScheduleAgeSeconds map[string]float64 `json:"schedule_age_seconds"`
}

func (h *Hub) Health() Health {
	h.relayMu.Lock()
	hl := Health{RelayConnected: h.relay != nil}
	if hl.RelayConnected {
		hl.LastHeartbeatAgo = time.Since(h.lastHeartbeat).Seconds()
	}
	h.relayMu.Unlock()

	hl.Viewers = h.ViewerCount()
	hl.ScheduleAgeSeconds = make(map[string]float64)
	for _, sport := range h.cache.Sports() {
		hl.ScheduleAgeSeconds[sport] = h.cache.ScheduleAge(sport).Seconds()
	}
	return hl
}

// Close drops the relay and every viewer.
func (h *Hub) Close() {
	h.relayMu.Lock()
	r := h.relay
	h.relay = nil
	h.relayMu.Unlock()
	if r != nil {
		r.Close()
		telemetry.Metrics.RelayConnected.Set(0)
	}

	h.mu.Lock()
	viewers := make([]Viewer, 0, len(h.viewerTopics))
	for v := range h.viewerTopics {
		viewers = append(viewers, v)
	}
	h.topics = make(map[string]map[Viewer]struct{})
	h.viewerTopics = make(map[Viewer]map[string]struct{})
	h.mu.Unlock()

	for _, v := range viewers {
		v.Close()
	}
}

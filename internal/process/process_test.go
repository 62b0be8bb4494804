package process

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/sports-lounge/internal/config"
	"github.com/charleschow/sports-lounge/internal/core/ratelimit"
	"github.com/charleschow/sports-lounge/internal/core/upstream"
	"github.com/charleschow/sports-lounge/internal/fanout"
	"github.com/charleschow/sports-lounge/internal/relay"
)

const secret = "lounge-secret"

func hubConfig(source config.DataSource) *config.Config {
	return &config.Config{
		HubHost:           "127.0.0.1",
		HubPort:           0,
		DataSource:        source,
		RelaySecret:       secret,
		RelayRequired:     true,
		HeartbeatInterval: 30 * time.Second,
		SRSports:          []string{"nba"},
		SRDailyQuota:      100,
	}
}

func TestNewHub_Validation(t *testing.T) {
	cfg := hubConfig(config.SourceRelay)
	cfg.RelaySecret = ""
	_, err := NewHub(cfg)
	assert.ErrorIs(t, err, ErrRelaySecretRequired)

	cfg.RelayRequired = false
	_, err = NewHub(cfg)
	assert.NoError(t, err)

	_, err = NewHub(hubConfig(config.SourcePoller))
	assert.ErrorIs(t, err, ErrAPIKeyRequired)

	_, err = NewHub(hubConfig("carrier-pigeon"))
	assert.Error(t, err)

	cfg = hubConfig(config.SourceRelay)
	cfg.SportsConfigPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewHub(cfg)
	assert.Error(t, err)
}

func TestNewHub_MockServesSlate(t *testing.T) {
	p, err := NewHub(hubConfig(config.SourceMock))
	require.NoError(t, err)

	raw, err := p.Hub().ScoreboardSnapshot(context.Background())
	require.NoError(t, err)
	var board fanout.ScoreboardPayload
	require.NoError(t, json.Unmarshal(raw, &board))
	assert.Len(t, board.Games, 5)
}

func TestNewHub_PollerUsesLocalDemand(t *testing.T) {
	cfg := hubConfig(config.SourcePoller)
	cfg.SportRadarAPIKey = "key"
	p, err := NewHub(cfg)
	require.NoError(t, err)
	require.NotNil(t, p.poller)

	p.Hub().RequestPBP("g1")
	assert.Contains(t, p.cache.DrainPBPRequests(), "g1")
}

func TestHubRun_StopsOnCancel(t *testing.T) {
	p, err := NewHub(hubConfig(config.SourceRelay))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("hub did not shut down")
	}
}

func TestRunRelay_Validation(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{RelaySecret: secret, ScannerDBPath: "x.db"}
	assert.ErrorIs(t, RunRelay(ctx, cfg), ErrRelayURLRequired)

	cfg = &config.Config{RelayURL: "ws://localhost/ws/relay", ScannerDBPath: "x.db"}
	assert.ErrorIs(t, RunRelay(ctx, cfg), ErrRelaySecretMissing)

	cfg = &config.Config{RelayURL: "ws://localhost/ws/relay", RelaySecret: secret}
	assert.ErrorIs(t, RunRelay(ctx, cfg), ErrScannerDBRequired)

	cfg.ScannerDBPath = filepath.Join(t.TempDir(), "missing.db")
	assert.Error(t, RunRelay(ctx, cfg))
}

// ── end to end ─────────────────────────────────────────────

type scheduleStore struct {
	schedules map[string]map[string]any
}

func (s *scheduleStore) Schedule(_ context.Context, sport string) (map[string]any, error) {
	return s.schedules[sport], nil
}

func (s *scheduleStore) Game(context.Context, string) (*upstream.GameRecord, error) {
	return nil, nil
}

// meteredFetcher passes the rate limiter before serving canned PBP.
type meteredFetcher struct {
	limiter *ratelimit.Limiter

	mu    sync.Mutex
	calls []string
}

func (f *meteredFetcher) PlayByPlay(ctx context.Context, sport, gameID string) (map[string]any, error) {
	if !f.limiter.Acquire(ctx) {
		return nil, ctx.Err()
	}
	f.mu.Lock()
	f.calls = append(f.calls, sport+"/"+gameID)
	f.mu.Unlock()
	return map[string]any{"periods": []any{
		map[string]any{"number": 1.0, "events": []any{
			map[string]any{"description": "Tip-off", "clock": "12:00"},
			map[string]any{"description": "Wembanyama dunk", "clock": "11:41",
				"home_points": 2.0, "away_points": 0.0},
		}},
	}}, nil
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		if match(m) {
			return m
		}
	}
}

func TestEndToEnd_ScheduleSubscribeAndPBP(t *testing.T) {
	p, err := NewHub(hubConfig(config.SourceRelay))
	require.NoError(t, err)
	ts := httptest.NewServer(p.Server().Handler())
	t.Cleanup(func() {
		p.Hub().Close()
		ts.Close()
	})
	base := "ws" + strings.TrimPrefix(ts.URL, "http")

	board := dialWS(t, base+"/ws/live")
	require.NoError(t, board.WriteJSON(fanout.ViewerRequest{Type: fanout.ReqSubscribe, Topic: fanout.TopicScoreboard}))

	st := &scheduleStore{schedules: map[string]map[string]any{
		"nba": {"games": []any{map[string]any{
			"id":     "g1",
			"status": "inprogress",
			"home":   map[string]any{"name": "Spurs"},
			"away":   map[string]any{"name": "Pistons"},
		}}},
	}}
	fetcher := &meteredFetcher{limiter: ratelimit.New(10, nil)}
	collector := relay.NewCollector(relay.CollectorConfig{
		URL:               base + "/ws/relay",
		Secret:            secret,
		Sports:            []string{"nba"},
		PollInterval:      20 * time.Millisecond,
		HeartbeatInterval: time.Second,
		ReconnectDelay:    50 * time.Millisecond,
	}, st, fetcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		collector.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-collectorDone
	})

	// schedule push reaches scoreboard subscribers
	msg := readUntil(t, board, func(m map[string]any) bool {
		games, _ := m["games"].([]any)
		return m["type"] == "scoreboard" && len(games) == 1
	})
	game := msg["games"].([]any)[0].(map[string]any)
	assert.Equal(t, "g1", game["game_id"])
	assert.Equal(t, "live", game["status"])

	// subscribing to the game returns the snapshot and pulls PBP upstream
	viewer := dialWS(t, base+"/ws/live")
	require.NoError(t, viewer.WriteJSON(fanout.ViewerRequest{Type: fanout.ReqSubscribe, Topic: fanout.GameTopic("g1")}))

	snapshot := readUntil(t, viewer, func(m map[string]any) bool { return m["type"] == "game_update" })
	assert.Empty(t, snapshot["data"].(map[string]any)["play_by_play"])

	update := readUntil(t, viewer, func(m map[string]any) bool {
		plays, _ := m["data"].(map[string]any)["play_by_play"].([]any)
		return m["type"] == "game_update" && len(plays) > 0
	})
	plays := update["data"].(map[string]any)["play_by_play"].([]any)
	require.Len(t, plays, 2)
	assert.Equal(t, "Wembanyama dunk", plays[0].(map[string]any)["description"])
	assert.Equal(t, "Tip-off", plays[1].(map[string]any)["description"])

	fetcher.mu.Lock()
	assert.Equal(t, []string{"nba/g1"}, fetcher.calls)
	fetcher.mu.Unlock()
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DataSource selects where the hub gets game state from.
type DataSource string

const (
	SourceRelay  DataSource = "relay"  // collector pushes deltas over the relay link
	SourcePoller DataSource = "poller" // hub polls the metered API itself
	SourceMock   DataSource = "mock"   // fixed in-memory slate
)

type Config struct {
	// Hub
	HubHost       string
	HubPort       int
	DataSource    DataSource
	RelaySecret   string
	RelayRequired bool

	// Relay link
	RelayURL          string
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration

	// Collector
	ScannerDBPath    string
	PollInterval     time.Duration
	BackfillInterval time.Duration
	PBPQueueSize     int

	// SportRadar
	SportRadarAPIKey string
	SRTier           string
	SRBaseURL        string
	SRSports         []string
	SRDailyQuota     int
	ScheduleInterval time.Duration
	GameInterval     time.Duration
	IdleInterval     time.Duration

	SportsConfigPath string

	// Alerts
	DiscordWebhookURL string

	// Telemetry
	LogLevel string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HubHost:       envStr("HUB_HOST", "0.0.0.0"),
		HubPort:       envInt("HUB_PORT", 8000),
		DataSource:    DataSource(strings.ToLower(envStr("DATA_SOURCE", string(SourceRelay)))),
		RelaySecret:   envStr("RELAY_SECRET", ""),
		RelayRequired: envStr("RELAY_REQUIRED", "true") == "true",

		RelayURL:          envStr("RELAY_URL", ""),
		HeartbeatInterval: envDuration("RELAY_HEARTBEAT_SEC", 30, time.Second),
		ReconnectDelay:    envDuration("RELAY_RECONNECT_SEC", 5, time.Second),

		ScannerDBPath:    envStr("SCANNER_DB_PATH", "scanner.db"),
		PollInterval:     envDuration("RELAY_POLL_MS", 1000, time.Millisecond),
		BackfillInterval: envDuration("RELAY_BACKFILL_SEC", 60, time.Second),
		PBPQueueSize:     envInt("PBP_QUEUE_SIZE", 64),

		SportRadarAPIKey: envStr("SPORTRADAR_API_KEY", ""),
		SRTier:           envStr("SR_TIER", "trial"),
		SRBaseURL:        envStr("SR_BASE_URL", "https://api.sportradar.com"),
		SRSports:         envList("SR_SPORTS", []string{"nba", "ncaamb"}),
		SRDailyQuota:     envInt("SR_DAILY_QUOTA", 1000),
		ScheduleInterval: envDuration("SR_SCHEDULE_SEC", 300, time.Second),
		GameInterval:     envDuration("SR_GAME_SEC", 2, time.Second),
		IdleInterval:     envDuration("SR_IDLE_SEC", 30, time.Second),

		SportsConfigPath: envStr("SPORTS_CONFIG_PATH", ""),

		DiscordWebhookURL: envStr("DISCORD_WEBHOOK_URL", ""),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback int, unit time.Duration) time.Duration {
	return time.Duration(envInt(key, fallback)) * unit
}

// envList splits a comma-separated value, dropping blanks.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

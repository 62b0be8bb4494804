package upstream

import "context"

// GameRecord is one authoritative game row. UpdatedAt is whatever the store
// recorded (usually unix seconds) and is read with tracking.Timestamp.
type GameRecord struct {
	Data      map[string]any
	UpdatedAt any
}

// Store is the read side of the authoritative store owned by the upstream
// collector. A nil result with a nil error means not found.
// Satisfied by *scanner.Reader.
type Store interface {
	Schedule(ctx context.Context, sport string) (map[string]any, error)
	Game(ctx context.Context, gameID string) (*GameRecord, error)
}

// PBPFetcher pulls full play-by-play for a game from the metered API.
// Satisfied by *sportradar.Client.
type PBPFetcher interface {
	PlayByPlay(ctx context.Context, sport, gameID string) (map[string]any, error)
}

// Feed is the metered API surface the standalone poller needs.
// Satisfied by *sportradar.Client.
type Feed interface {
	PBPFetcher
	DailySchedule(ctx context.Context, sport string) (map[string]any, error)
	GameSummary(ctx context.Context, sport, gameID string) (map[string]any, error)
}

package scanner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charleschow/sports-lounge/internal/core/upstream"
	"github.com/charleschow/sports-lounge/internal/telemetry"

	_ "modernc.org/sqlite"
)

// Reader is a read-only view of the scanner's SQLite database, the
// authoritative store the upstream collector keeps current.
type Reader struct {
	db *sql.DB
}

// OpenReader opens path read-only. The scanner owns the file and writes to it
// concurrently, so the connection never takes a write lock.
func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("scanner db: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping scanner db: %w", err)
	}

	telemetry.Plainf("scanner: opened %s (read-only)", path)
	return &Reader{db: db}, nil
}

// Schedule returns the latest daily schedule payload for sport, or nil when
// the scanner has none.
func (r *Reader) Schedule(ctx context.Context, sport string) (map[string]any, error) {
	var raw sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT data_json FROM sportradar_schedules WHERE sport = ?`, sport,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query schedule %s: %w", sport, err)
	}
	return decodePayload(raw)
}

// Game returns the latest summary row for gameID, or nil when the scanner has
// none or stored an empty object.
func (r *Reader) Game(ctx context.Context, gameID string) (*upstream.GameRecord, error) {
	var (
		raw       sql.NullString
		updatedAt any
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT game_data_json, updated_at FROM sportradar_games WHERE game_id = ?`, gameID,
	).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query game %s: %w", gameID, err)
	}

	data, err := decodePayload(raw)
	if err != nil || data == nil {
		return nil, err
	}
	return &upstream.GameRecord{Data: data, UpdatedAt: updatedAt}, nil
}

func decodePayload(raw sql.NullString) (map[string]any, error) {
	s := strings.TrimSpace(raw.String)
	if !raw.Valid || s == "" || s == "{}" {
		return nil, nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (r *Reader) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

package tracking

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ChangeTracker suppresses pushes of payloads identical to the last one sent.
//
// Schedules carry no per-record revision, so they are compared by content
// hash. Game records carry an updated-at stamp, so they are compared by
// timestamp. Summaries fetched straight from the upstream API are compared
// by content hash as well.
type ChangeTracker struct {
	mu          sync.Mutex
	schedules   map[string]uint64  // sport -> content hash
	summaryTS   map[string]float64 // game id -> last accepted updated_at
	summaryHash map[string]uint64  // game id -> content hash
}

func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{
		schedules:   make(map[string]uint64),
		summaryTS:   make(map[string]float64),
		summaryHash: make(map[string]uint64),
	}
}

// CheckSchedule reports whether payload differs from the last schedule seen
// for sport, and remembers it if so. Map key order does not matter: JSON
// encoding sorts map keys.
func (t *ChangeTracker) CheckSchedule(sport string, payload any) bool {
	return t.checkHash(t.schedules, sport, payload)
}

// CheckSummaryContent is CheckSchedule for one game's summary.
func (t *ChangeTracker) CheckSummaryContent(gameID string, payload any) bool {
	return t.checkHash(t.summaryHash, gameID, payload)
}

func (t *ChangeTracker) checkHash(seen map[string]uint64, key string, payload any) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		return true
	}
	h := xxhash.Sum64(raw)

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := seen[key]; ok && prev == h {
		return false
	}
	seen[key] = h
	return true
}

// CheckSummary reports whether updatedAt is strictly newer than every
// timestamp accepted so far for gameID, and advances if so.
func (t *ChangeTracker) CheckSummary(gameID string, updatedAt float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.summaryTS[gameID]
	if ok && updatedAt <= prev {
		return false
	}
	t.summaryTS[gameID] = updatedAt
	return true
}

// CheckSummaryRaw is CheckSummary over an untyped upstream value. A value
// that cannot be read as a timestamp always counts as changed.
func (t *ChangeTracker) CheckSummaryRaw(gameID string, raw any) bool {
	ts, ok := Timestamp(raw)
	if !ok {
		return true
	}
	return t.CheckSummary(gameID, ts)
}

// Seen reports whether any summary for gameID has been accepted.
func (t *ChangeTracker) Seen(gameID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.summaryTS[gameID]
	return ok
}

// Reset forgets all history so the next check of everything reports a change.
func (t *ChangeTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.schedules)
	clear(t.summaryTS)
	clear(t.summaryHash)
}

// Timestamp reads a numeric or RFC 3339 timestamp as unix seconds.
func Timestamp(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case time.Time:
		if x.IsZero() {
			return 0, false
		}
		return float64(x.UnixNano()) / 1e9, true
	case []byte:
		return Timestamp(string(x))
	case string:
		s := strings.TrimSpace(x)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return float64(ts.UnixNano()) / 1e9, true
		}
	}
	return 0, false
}

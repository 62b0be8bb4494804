package store

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Never is the age reported for a schedule that was never written.
const Never = time.Duration(math.MaxInt64)

// Entry is one cached upstream payload. Entries are replaced, never mutated,
// so a copied *Entry stays consistent after the lock is released.
type Entry struct {
	Data      map[string]any
	UpdatedAt time.Time
}

// StateCache is the in-memory store of schedules (by sport), game summaries
// and play-by-play (by game id), plus the play-by-play demand set.
type StateCache struct {
	clock clockwork.Clock

	mu        sync.RWMutex
	schedules map[string]*Entry
	summaries map[string]*Entry
	pbp       map[string]*Entry
	demand    map[string]struct{}
}

func New(clock clockwork.Clock) *StateCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StateCache{
		clock:     clock,
		schedules: make(map[string]*Entry),
		summaries: make(map[string]*Entry),
		pbp:       make(map[string]*Entry),
		demand:    make(map[string]struct{}),
	}
}

func (c *StateCache) SetSchedule(sport string, data map[string]any) {
	c.put(c.schedules, sport, data)
}

func (c *StateCache) SetSummary(gameID string, data map[string]any) {
	c.put(c.summaries, gameID, data)
}

func (c *StateCache) SetPBP(gameID string, data map[string]any) {
	c.put(c.pbp, gameID, data)
}

func (c *StateCache) put(ns map[string]*Entry, key string, data map[string]any) {
	e := &Entry{Data: data, UpdatedAt: c.clock.Now()}
	c.mu.Lock()
	ns[key] = e
	c.mu.Unlock()
}

// TouchSchedule restamps the sport's schedule without replacing its data,
// for a fetch that returned the same schedule. It reports false when there
// is no schedule to touch.
func (c *StateCache) TouchSchedule(sport string) bool {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.schedules[sport]
	if !ok {
		return false
	}
	c.schedules[sport] = &Entry{Data: e.Data, UpdatedAt: now}
	return true
}

func (c *StateCache) Schedule(sport string) (map[string]any, bool) {
	return c.get(c.schedules, sport)
}

func (c *StateCache) Summary(gameID string) (map[string]any, bool) {
	return c.get(c.summaries, gameID)
}

func (c *StateCache) PBP(gameID string) (map[string]any, bool) {
	return c.get(c.pbp, gameID)
}

func (c *StateCache) get(ns map[string]*Entry, key string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := ns[key]
	if !ok {
		return nil, false
	}
	return e.Data, true
}

func (c *StateCache) HasSummary(gameID string) bool {
	_, ok := c.Summary(gameID)
	return ok
}

// ScheduleAge reports how long ago the sport's schedule was written, or
// Never. Callers decide staleness from it; nothing expires on its own.
func (c *StateCache) ScheduleAge(sport string) time.Duration {
	c.mu.RLock()
	e, ok := c.schedules[sport]
	c.mu.RUnlock()
	if !ok {
		return Never
	}
	return c.clock.Since(e.UpdatedAt)
}

// Sports returns the sports that have a schedule, sorted.
func (c *StateCache) Sports() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.schedules))
	for sport := range c.schedules {
		out = append(out, sport)
	}
	slices.Sort(out)
	return out
}

// LiveGameIDs returns ids of scheduled games the upstream reports as
// in progress or at halftime.
func (c *StateCache) LiveGameIDs() []string {
	return c.gameIDs(func(game map[string]any) bool {
		return IsLiveStatus(stringField(game, "status"))
	})
}

func (c *StateCache) AllGameIDs() []string {
	return c.gameIDs(func(map[string]any) bool { return true })
}

func (c *StateCache) gameIDs(keep func(map[string]any) bool) []string {
	snap := c.Snapshot()
	var out []string
	for _, sport := range snap.Sports() {
		for _, game := range ScheduleGames(snap.Schedules[sport].Data) {
			id := stringField(game, "id")
			if id != "" && keep(game) {
				out = append(out, id)
			}
		}
	}
	return out
}

// SportForGame finds which schedule lists gameID.
func (c *StateCache) SportForGame(gameID string) (string, bool) {
	return c.Snapshot().SportForGame(gameID)
}

// RequestPBP marks gameID as wanted by a viewer. Idempotent.
func (c *StateCache) RequestPBP(gameID string) {
	if gameID == "" {
		return
	}
	c.mu.Lock()
	c.demand[gameID] = struct{}{}
	c.mu.Unlock()
}

// DrainPBPRequests returns the demand set and clears it in one step.
func (c *StateCache) DrainPBPRequests() map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.demand
	c.demand = make(map[string]struct{})
	return out
}

// Snapshot copies the three namespaces under one read lock. Payloads built
// from a single Snapshot never mix two different cache states.
func (c *StateCache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Schedules: copyNS(c.schedules),
		Summaries: copyNS(c.summaries),
		PBP:       copyNS(c.pbp),
	}
}

func copyNS(ns map[string]*Entry) map[string]*Entry {
	out := make(map[string]*Entry, len(ns))
	for k, v := range ns {
		out[k] = v
	}
	return out
}

package store

import "slices"

// Snapshot is a point-in-time view of the cache. The maps are private copies;
// the entries they point to are shared and must not be modified.
type Snapshot struct {
	Schedules map[string]*Entry
	Summaries map[string]*Entry
	PBP       map[string]*Entry
}

func (s Snapshot) Sports() []string {
	out := make([]string, 0, len(s.Schedules))
	for sport := range s.Schedules {
		out = append(out, sport)
	}
	slices.Sort(out)
	return out
}

func (s Snapshot) Summary(gameID string) (map[string]any, bool) {
	e, ok := s.Summaries[gameID]
	if !ok {
		return nil, false
	}
	return e.Data, true
}

func (s Snapshot) PBPData(gameID string) (map[string]any, bool) {
	e, ok := s.PBP[gameID]
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// FindGame returns the sport and the schedule record listing gameID.
func (s Snapshot) FindGame(gameID string) (string, map[string]any, bool) {
	if gameID == "" {
		return "", nil, false
	}
	for _, sport := range s.Sports() {
		for _, game := range ScheduleGames(s.Schedules[sport].Data) {
			if stringField(game, "id") == gameID {
				return sport, game, true
			}
		}
	}
	return "", nil, false
}

func (s Snapshot) SportForGame(gameID string) (string, bool) {
	sport, _, ok := s.FindGame(gameID)
	return sport, ok
}

// ScheduleGames extracts the "games" list of an upstream schedule payload,
// skipping anything that is not an object.
func ScheduleGames(schedule map[string]any) []map[string]any {
	raw, _ := schedule["games"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, g := range raw {
		if m, ok := g.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// IsLiveStatus reports whether an upstream status means the game is being
// played right now.
func IsLiveStatus(status string) bool {
	return slices.Contains([]string{"inprogress", "halftime"}, status)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

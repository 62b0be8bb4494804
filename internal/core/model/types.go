package model

// Status is the canonical game state shown to viewers.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusLive      Status = "live"
	StatusFinal     Status = "final"
)

// GameSummary is an immutable snapshot of one game. A newer snapshot
// supersedes it wholesale.
type GameSummary struct {
	GameID    string `json:"game_id"`
	Sport     string `json:"sport"` // "nba", "ncaamb", ...
	Status    Status `json:"status"`
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Period    int    `json:"period"`
	Clock     string `json:"clock"`
	StartTime string `json:"start_time"` // "7:00 PM ET"
}

// PlayerStats is one player's box score line, recomputed on every refresh.
type PlayerStats struct {
	Name      string `json:"name"`
	Position  string `json:"position"`
	Minutes   string `json:"minutes"`
	Points    int    `json:"points"`
	Rebounds  int    `json:"rebounds"`
	Assists   int    `json:"assists"`
	Steals    int    `json:"steals"`
	Blocks    int    `json:"blocks"`
	FG        string `json:"fg"`       // "made-attempted"
	ThreePT   string `json:"three_pt"` // "made-attempted"
	FT        string `json:"ft"`       // "made-attempted"
	PlusMinus int    `json:"plus_minus"`
}

type PlayEvent struct {
	EventID     int    `json:"event_id"`
	Clock       string `json:"clock"`
	Period      int    `json:"period"`
	Team        string `json:"team"`
	Player      string `json:"player"`
	Description string `json:"description"`
	HomeScore   int    `json:"home_score"`
	AwayScore   int    `json:"away_score"`
}

// GameDetail is composed on demand from cache entries. PlayByPlay is
// newest-first.
type GameDetail struct {
	Summary       GameSummary    `json:"summary"`
	HomePlayers   []PlayerStats  `json:"home_players"`
	AwayPlayers   []PlayerStats  `json:"away_players"`
	PlayByPlay    []PlayEvent    `json:"play_by_play"`
	HomeTeamStats map[string]any `json:"home_team_stats"`
	AwayTeamStats map[string]any `json:"away_team_stats"`
}

// NewGameDetail returns a detail with empty, non-nil collections so it
// encodes as [] and {} rather than null.
func NewGameDetail(summary GameSummary) *GameDetail {
	return &GameDetail{
		Summary:       summary,
		HomePlayers:   []PlayerStats{},
		AwayPlayers:   []PlayerStats{},
		PlayByPlay:    []PlayEvent{},
		HomeTeamStats: map[string]any{},
		AwayTeamStats: map[string]any{},
	}
}

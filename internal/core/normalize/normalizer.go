package normalize

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charleschow/sports-lounge/internal/core/model"
	"github.com/charleschow/sports-lounge/internal/core/state/store"
)

// AllSports selects every cached sport in Scoreboard.
const AllSports = "all"

// Normalizer maps SportRadar-shaped cache entries onto the canonical model.
// It is stateless apart from its status table and safe for concurrent use.
type Normalizer struct {
	status map[string]model.Status
}

// New builds a Normalizer. overrides extends or replaces entries of the
// built-in status table; values must be scheduled, live or final.
func New(overrides map[string]string) *Normalizer {
	table := maps.Clone(defaultStatus)
	for raw, s := range overrides {
		table[strings.ToLower(raw)] = model.Status(s)
	}
	return &Normalizer{status: table}
}

func (n *Normalizer) Status(raw string) model.Status {
	return mapStatus(n.status, raw)
}

// Scoreboard lists one summary per scheduled game of sport, or of every
// cached sport (sorted by tag) when sport is AllSports.
func (n *Normalizer) Scoreboard(snap store.Snapshot, sport string) []model.GameSummary {
	sports := []string{sport}
	if sport == AllSports {
		sports = snap.Sports()
	}

	out := []model.GameSummary{}
	for _, sp := range sports {
		entry, ok := snap.Schedules[sp]
		if !ok {
			continue
		}
		for _, game := range store.ScheduleGames(entry.Data) {
			id := extractString(game, "id")
			summary, _ := snap.Summary(id)
			out = append(out, n.summarize(sp, id, game, summary))
		}
	}
	return out
}

// Game composes the full detail for gameID. It returns false when no cached
// schedule lists the game.
func (n *Normalizer) Game(snap store.Snapshot, gameID string) (*model.GameDetail, bool) {
	sport, game, ok := snap.FindGame(gameID)
	if !ok {
		return nil, false
	}
	summary, hasSummary := snap.Summary(gameID)

	detail := model.NewGameDetail(n.summarize(sport, gameID, game, summary))
	if hasSummary {
		detail.HomePlayers, detail.AwayPlayers = Players(summary)
		detail.HomeTeamStats, detail.AwayTeamStats = TeamStats(summary)
	}
	if pbp, ok := snap.PBPData(gameID); ok {
		detail.PlayByPlay = PlayByPlay(pbp)
	}
	return detail, true
}

// summarize builds a GameSummary from the schedule record, preferring the
// game summary for status, scores and clock when one is cached.
func (n *Normalizer) summarize(sport, id string, game, summary map[string]any) model.GameSummary {
	gs := model.GameSummary{
		GameID:    id,
		Sport:     sport,
		HomeTeam:  teamName(extractMap(game, "home")),
		AwayTeam:  teamName(extractMap(game, "away")),
		StartTime: FormatStartTime(extractString(game, "scheduled")),
	}

	if summary != nil {
		status := extractString(summary, "status")
		if status == "" {
			status = extractString(game, "status")
		}
		gs.Status = n.Status(status)
		gs.HomeScore = extractInt(extractMap(summary, "home"), "points")
		gs.AwayScore = extractInt(extractMap(summary, "away"), "points")
		gs.Period, gs.Clock = periodAndClock(summary)
		return gs
	}

	gs.Status = n.Status(extractString(game, "status"))
	gs.HomeScore = extractInt(game, "home_points")
	gs.AwayScore = extractInt(game, "away_points")
	gs.Period, gs.Clock = periodAndClock(game)
	return gs
}

func teamName(team map[string]any) string {
	if name := extractString(team, "name"); name != "" {
		return name
	}
	return "TBD"
}

// Players extracts box score lines for both sides. Players without
// statistics are skipped, as are those with no minutes and no field goal
// attempts (did not play).
func Players(summary map[string]any) (home, away []model.PlayerStats) {
	return sidePlayers(extractMap(summary, "home")), sidePlayers(extractMap(summary, "away"))
}

func sidePlayers(team map[string]any) []model.PlayerStats {
	out := []model.PlayerStats{}
	for _, raw := range extractArray(team, "players") {
		p, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		stats := extractMap(p, "statistics")
		if len(stats) == 0 {
			continue
		}
		minutes := extractString(stats, "minutes")
		if minutes == "" && extractInt(stats, "field_goals_att") == 0 {
			continue
		}
		if minutes == "" {
			minutes = "0:00"
		}
		name := firstString(p, "full_name", "name")
		if name == "" {
			name = "Unknown"
		}

		out = append(out, model.PlayerStats{
			Name:      name,
			Position:  firstString(p, "position", "primary_position"),
			Minutes:   minutes,
			Points:    extractInt(stats, "points"),
			Rebounds:  extractInt(stats, "rebounds"),
			Assists:   extractInt(stats, "assists"),
			Steals:    extractInt(stats, "steals"),
			Blocks:    extractInt(stats, "blocks"),
			FG:        split(stats, "field_goals"),
			ThreePT:   split(stats, "three_points"),
			FT:        split(stats, "free_throws"),
			PlusMinus: extractInt(stats, "plus_minus"),
		})
	}
	return out
}

// split renders "<prefix>_made"/"<prefix>_att" as "made-attempted".
func split(stats map[string]any, prefix string) string {
	return fmt.Sprintf("%d-%d", extractInt(stats, prefix+"_made"), extractInt(stats, prefix+"_att"))
}

// TeamStats extracts the aggregate team lines for both sides. A side with no
// statistics yields an empty map.
func TeamStats(summary map[string]any) (home, away map[string]any) {
	return sideTeamStats(extractMap(summary, "home")), sideTeamStats(extractMap(summary, "away"))
}

func sideTeamStats(team map[string]any) map[string]any {
	out := map[string]any{}
	stats := extractMap(team, "statistics")
	if len(stats) == 0 {
		return out
	}

	AddShootingSplit(out, "FG", extractInt(stats, "field_goals_made"), extractInt(stats, "field_goals_att"))
	AddShootingSplit(out, "3PT", extractInt(stats, "three_points_made"), extractInt(stats, "three_points_att"))
	AddShootingSplit(out, "FT", extractInt(stats, "free_throws_made"), extractInt(stats, "free_throws_att"))
	out["Rebounds"] = extractInt(stats, "rebounds")
	out["Assists"] = extractInt(stats, "assists")
	out["Steals"] = extractInt(stats, "steals")
	out["Blocks"] = extractInt(stats, "blocks")
	out["Turnovers"] = extractInt(stats, "turnovers")
	if _, ok := stats["points_in_paint"]; ok {
		out["Points in Paint"] = extractInt(stats, "points_in_paint")
	} else {
		out["Points in Paint"] = extractInt(stats, "paint_pts")
	}
	out["Fast Break Pts"] = extractInt(stats, "fast_break_pts")
	return out
}

// AddShootingSplit writes label as "made-attempted" and, only when there
// were attempts, label+"%" as a one-decimal percentage.
func AddShootingSplit(dest map[string]any, label string, made, att int) {
	dest[label] = fmt.Sprintf("%d-%d", made, att)
	if att > 0 {
		dest[label+"%"] = fmt.Sprintf("%.1f%%", float64(made)/float64(att)*100)
	}
}

// PlayByPlay flattens the periods of a play-by-play payload into events,
// newest first. Events without a description are skipped; ids count up from
// zero in upstream (oldest-first) order.
func PlayByPlay(pbp map[string]any) []model.PlayEvent {
	out := []model.PlayEvent{}
	seq := 0
	for _, rawPeriod := range extractArray(pbp, "periods") {
		period, ok := rawPeriod.(map[string]any)
		if !ok {
			continue
		}
		number := extractInt(period, "number")
		for _, rawEvent := range extractArray(period, "events") {
			ev, ok := rawEvent.(map[string]any)
			if !ok {
				continue
			}
			desc := extractString(ev, "description")
			if desc == "" {
				continue
			}
			out = append(out, model.PlayEvent{
				EventID:     seq,
				Clock:       extractString(ev, "clock"),
				Period:      number,
				Team:        teamTag(extractMap(ev, "attribution")),
				Player:      eventPlayer(ev),
				Description: desc,
				HomeScore:   extractInt(ev, "home_points"),
				AwayScore:   extractInt(ev, "away_points"),
			})
			seq++
		}
	}
	slices.Reverse(out)
	return out
}

// teamTag is the first three letters of the team market (or name), upper case.
func teamTag(attribution map[string]any) string {
	tag := firstString(attribution, "market", "name")
	if r := []rune(tag); len(r) > 3 {
		tag = string(r[:3])
	}
	return strings.ToUpper(tag)
}

func eventPlayer(ev map[string]any) string {
	stats := extractArray(ev, "statistics")
	if len(stats) == 0 {
		return ""
	}
	first, ok := stats[0].(map[string]any)
	if !ok {
		return ""
	}
	return extractString(extractMap(first, "player"), "full_name")
}

package normalize

import (
	"encoding/json"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/sports-lounge/internal/core/model"
	"github.com/charleschow/sports-lounge/internal/core/state/store"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestStatus(t *testing.T) {
	n := New(nil)
	tests := []struct {
		raw  string
		want model.Status
	}{
		{"inprogress", model.StatusLive},
		{"halftime", model.StatusLive},
		{"closed", model.StatusFinal},
		{"complete", model.StatusFinal},
		{"created", model.StatusScheduled},
		{"weird", model.StatusScheduled},
		{"", model.StatusScheduled},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Status(tt.raw))
		})
	}
}

func TestStatus_Overrides(t *testing.T) {
	n := New(map[string]string{"Delayed": "live"})
	assert.Equal(t, model.StatusLive, n.Status("delayed"))
	assert.Equal(t, model.StatusFinal, n.Status("closed"))

	// the built-in table is not shared between normalizers
	assert.Equal(t, model.StatusScheduled, New(nil).Status("delayed"))
}

func TestAddShootingSplit(t *testing.T) {
	stats := map[string]any{}
	AddShootingSplit(stats, "FG", 2, 5)
	AddShootingSplit(stats, "3PT", 0, 0)

	assert.Equal(t, "2-5", stats["FG"])
	assert.Equal(t, "40.0%", stats["FG%"])
	assert.Equal(t, "0-0", stats["3PT"])
	assert.NotContains(t, stats, "3PT%")
}

func TestPeriodAndClock(t *testing.T) {
	tests := []struct {
		name   string
		game   string
		period int
	}{
		{"quarter", `{"quarter":3,"clock":"04:12"}`, 3},
		{"half", `{"half":2,"clock":"04:12"}`, 2},
		{"periods list", `{"periods":[{},{}],"clock":"04:12"}`, 2},
		{"nothing", `{"clock":"04:12"}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			period, clock := periodAndClock(decode(t, tt.game))
			assert.Equal(t, tt.period, period)
			assert.Equal(t, "04:12", clock)
		})
	}
}

func TestFormatStartTime(t *testing.T) {
	assert.Equal(t, "7:00 PM ET", FormatStartTime("2026-02-24T00:00:00Z"))
	// daylight saving
	assert.Equal(t, "7:30 PM ET", FormatStartTime("2026-07-01T23:30:00+00:00"))
	assert.Equal(t, "tonight", FormatStartTime("tonight"))
	assert.Equal(t, "", FormatStartTime(""))
}

func TestPlayers_FiltersDidNotPlay(t *testing.T) {
	summary := decode(t, `{
		"home": {"players": [
			{"full_name": "Starter", "position": "G", "statistics": {"minutes": "34:10", "points": 21,
				"field_goals_made": 8, "field_goals_att": 15, "three_points_made": 3, "three_points_att": 7,
				"free_throws_made": 2, "free_throws_att": 2, "plus_minus": -4}},
			{"full_name": "Bench", "statistics": {"minutes": "", "field_goals_made": 0}},
			{"full_name": "No Stats"},
			{"name": "Garbage Time", "primary_position": "F", "statistics": {"field_goals_made": 1, "field_goals_att": 1}},
			{"full_name": "Bricklayer", "statistics": {"field_goals_made": 0, "field_goals_att": 3}}
		]},
		"away": {"players": []}
	}`)

	home, away := Players(summary)
	require.Len(t, home, 3)
	assert.Empty(t, away)
	assert.NotNil(t, away)

	assert.Equal(t, model.PlayerStats{
		Name: "Starter", Position: "G", Minutes: "34:10", Points: 21,
		FG: "8-15", ThreePT: "3-7", FT: "2-2", PlusMinus: -4,
	}, home[0])
	assert.Equal(t, "Garbage Time", home[1].Name)
	assert.Equal(t, "F", home[1].Position)
	assert.Equal(t, "0:00", home[1].Minutes)

	// shot and missed everything: still played
	assert.Equal(t, "Bricklayer", home[2].Name)
	assert.Equal(t, "0-3", home[2].FG)
	assert.Equal(t, "0:00", home[2].Minutes)
}

func TestTeamStats(t *testing.T) {
	summary := decode(t, `{
		"home": {"statistics": {"field_goals_made": 2, "field_goals_att": 5, "three_points_made": 0,
			"three_points_att": 0, "free_throws_made": 3, "free_throws_att": 4, "rebounds": 10, "paint_pts": 12}},
		"away": {}
	}`)

	home, away := TeamStats(summary)
	assert.Equal(t, "40.0%", home["FG%"])
	assert.NotContains(t, home, "3PT%")
	assert.Equal(t, "75.0%", home["FT%"])
	assert.Equal(t, 10, home["Rebounds"])
	assert.Equal(t, 12, home["Points in Paint"])
	assert.Empty(t, away)
}

func TestPlayByPlay_NewestFirst(t *testing.T) {
	pbp := decode(t, `{"periods": [
		{"number": 1, "events": [
			{"clock": "12:00", "description": "Jump ball"},
			{"clock": "11:40", "description": "", "home_points": 0},
			{"clock": "11:31", "description": "Layup", "home_points": 2, "away_points": 0,
				"attribution": {"market": "Boston", "name": "Celtics"},
				"statistics": [{"player": {"full_name": "Jayson Tatum"}}]}
		]},
		{"number": 2, "events": [
			{"clock": "11:50", "description": "Three pointer", "home_points": 2, "away_points": 3,
				"attribution": {"name": "Knicks"}}
		]}
	]}`)

	events := PlayByPlay(pbp)
	require.Len(t, events, 3)

	assert.Equal(t, "Three pointer", events[0].Description)
	assert.Equal(t, 2, events[0].EventID)
	assert.Equal(t, 2, events[0].Period)
	assert.Equal(t, "KNI", events[0].Team)
	assert.Equal(t, 3, events[0].AwayScore)

	assert.Equal(t, "BOS", events[1].Team)
	assert.Equal(t, "Jayson Tatum", events[1].Player)
	assert.Equal(t, 0, events[2].EventID)
	assert.Equal(t, "Jump ball", events[2].Description)
}

func seededSnapshot(t *testing.T) store.Snapshot {
	c := store.New(clockwork.NewFakeClock())
	c.SetSchedule("nba", decode(t, `{"games": [
		{"id": "g1", "status": "inprogress", "scheduled": "2026-02-24T00:00:00Z",
			"home": {"name": "Celtics"}, "away": {"name": "Knicks"}, "home_points": 50, "away_points": 48, "quarter": 3},
		{"id": "g2", "status": "scheduled", "home": {"name": "Lakers"}, "away": {}}
	]}`))
	c.SetSchedule("ncaamb", decode(t, `{"games": [{"id": "c1", "status": "halftime", "half": 1}]}`))
	c.SetSummary("g1", decode(t, `{"status": "closed", "clock": "00:00", "quarter": 4,
		"home": {"points": 101, "players": []}, "away": {"points": 99}}`))
	return c.Snapshot()
}

func TestScoreboard(t *testing.T) {
	n := New(nil)
	snap := seededSnapshot(t)

	all := n.Scoreboard(snap, AllSports)
	require.Len(t, all, 3)
	// sports iterate in sorted order
	assert.Equal(t, "g1", all[0].GameID)
	assert.Equal(t, "c1", all[2].GameID)

	g1 := all[0]
	assert.Equal(t, model.StatusFinal, g1.Status, "summary status wins over schedule status")
	assert.Equal(t, 101, g1.HomeScore)
	assert.Equal(t, 4, g1.Period)
	assert.Equal(t, "Celtics", g1.HomeTeam)
	assert.Equal(t, "7:00 PM ET", g1.StartTime)

	g2 := all[1]
	assert.Equal(t, "TBD", g2.AwayTeam)
	assert.Equal(t, model.StatusScheduled, g2.Status)

	c1 := n.Scoreboard(snap, "ncaamb")
	require.Len(t, c1, 1)
	assert.Equal(t, model.StatusLive, c1[0].Status)
	assert.Equal(t, 1, c1[0].Period)

	assert.NotNil(t, n.Scoreboard(snap, "nhl"))
	assert.Empty(t, n.Scoreboard(snap, "nhl"))
}

func TestGame(t *testing.T) {
	n := New(nil)
	snap := seededSnapshot(t)

	_, ok := n.Game(snap, "missing")
	assert.False(t, ok)

	detail, ok := n.Game(snap, "g2")
	require.True(t, ok)
	assert.Equal(t, "nba", detail.Summary.Sport)
	assert.Empty(t, detail.PlayByPlay)
	assert.NotNil(t, detail.PlayByPlay)

	raw, err := json.Marshal(detail)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"play_by_play":[]`)
	assert.Contains(t, string(raw), `"home_team_stats":{}`)
}

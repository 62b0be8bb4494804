package provider

import (
	"context"
	"slices"

	"github.com/charleschow/sports-lounge/internal/core/model"
)

// Mock serves a fixed slate for running the hub offline.
type Mock struct {
	games map[string]*model.GameDetail
	order []string
}

func NewMock() *Mock {
	m := &Mock{games: make(map[string]*model.GameDetail)}
	for _, g := range mockSlate() {
		m.games[g.Summary.GameID] = g
		m.order = append(m.order, g.Summary.GameID)
	}
	return m
}

func (m *Mock) Scoreboard(_ context.Context, sport string) ([]model.GameSummary, error) {
	out := []model.GameSummary{}
	for _, id := range m.order {
		s := m.games[id].Summary
		if sport != "" && sport != AllSports && s.Sport != sport {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *Mock) Game(_ context.Context, gameID string) (*model.GameDetail, error) {
	g, ok := m.games[gameID]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.HomePlayers = slices.Clone(g.HomePlayers)
	cp.AwayPlayers = slices.Clone(g.AwayPlayers)
	cp.PlayByPlay = slices.Clone(g.PlayByPlay)
	return &cp, nil
}

func (m *Mock) PlayByPlay(_ context.Context, gameID string) ([]model.PlayEvent, error) {
	g, ok := m.games[gameID]
	if !ok {
		return []model.PlayEvent{}, nil
	}
	return slices.Clone(g.PlayByPlay), nil
}

func mockSlate() []*model.GameDetail {
	scheduled := func(id, sport, home, away, start string) *model.GameDetail {
		return model.NewGameDetail(model.GameSummary{
			GameID: id, Sport: sport, Status: model.StatusScheduled,
			HomeTeam: home, AwayTeam: away, StartTime: start,
		})
	}

	live := model.NewGameDetail(model.GameSummary{
		GameID: "nba-sas-det-20260223", Sport: "nba", Status: model.StatusLive,
		HomeTeam: "Detroit Pistons", AwayTeam: "San Antonio Spurs",
		HomeScore: 58, AwayScore: 61, Period: 3, Clock: "8:42", StartTime: "7:00 PM ET",
	})
	live.HomePlayers = []model.PlayerStats{
		{Name: "Cade Cunningham", Position: "G", Minutes: "24:10", Points: 19, Rebounds: 4, Assists: 7, FG: "7-14", ThreePT: "2-5", FT: "3-3", PlusMinus: -2},
	}
	live.AwayPlayers = []model.PlayerStats{
		{Name: "Victor Wembanyama", Position: "C", Minutes: "23:02", Points: 22, Rebounds: 9, Blocks: 3, FG: "8-15", ThreePT: "2-6", FT: "4-4", PlusMinus: 5},
	}
	live.PlayByPlay = []model.PlayEvent{
		{EventID: 1, Clock: "8:42", Period: 3, Team: "SAN", Player: "Victor Wembanyama", Description: "Wembanyama makes 2-foot dunk", HomeScore: 58, AwayScore: 61},
		{EventID: 0, Clock: "9:05", Period: 3, Team: "DET", Player: "Cade Cunningham", Description: "Cunningham makes 18-foot jumper", HomeScore: 58, AwayScore: 59},
	}

	return []*model.GameDetail{
		live,
		scheduled("nba-sac-mem-20260223", "nba", "Memphis Grizzlies", "Sacramento Kings", "8:00 PM ET"),
		scheduled("nba-uta-hou-20260223", "nba", "Houston Rockets", "Utah Jazz", "9:30 PM ET"),
		scheduled("ncaamb-lou-unc-20260223", "ncaamb", "North Carolina Tar Heels", "Louisville Cardinals", "7:00 PM ET"),
		scheduled("ncaamb-hou-kan-20260223", "ncaamb", "Kansas Jayhawks", "Houston Cougars", "9:00 PM ET"),
	}
}

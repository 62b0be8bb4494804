package provider

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/sports-lounge/internal/core/model"
	"github.com/charleschow/sports-lounge/internal/core/normalize"
	"github.com/charleschow/sports-lounge/internal/core/state/store"
)

var (
	_ Provider = (*Normalized)(nil)
	_ Provider = (*Mock)(nil)
)

func TestNormalized(t *testing.T) {
	cache := store.New(clockwork.NewFakeClock())
	p := NewNormalized(cache, normalize.New(nil))
	ctx := context.Background()

	games, err := p.Scoreboard(ctx, AllSports)
	require.NoError(t, err)
	assert.Empty(t, games)

	cache.SetSchedule("nba", map[string]any{"games": []any{
		map[string]any{"id": "g1", "status": "inprogress", "home": map[string]any{"name": "Celtics"}},
	}})
	cache.SetPBP("g1", map[string]any{"periods": []any{
		map[string]any{"number": 1.0, "events": []any{
			map[string]any{"description": "first"},
			map[string]any{"description": "second"},
		}},
	}})

	games, err = p.Scoreboard(ctx, "nba")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, model.StatusLive, games[0].Status)

	detail, err := p.Game(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, detail)
	require.Len(t, detail.PlayByPlay, 2)
	assert.Equal(t, "second", detail.PlayByPlay[0].Description)

	detail, err = p.Game(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, detail)

	events, err := p.PlayByPlay(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// reading never signals demand
	assert.Empty(t, cache.DrainPBPRequests())
}

func TestMock(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	all, err := m.Scoreboard(ctx, AllSports)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	ncaa, err := m.Scoreboard(ctx, "ncaamb")
	require.NoError(t, err)
	assert.Len(t, ncaa, 2)

	detail, err := m.Game(ctx, "nba-sas-det-20260223")
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, model.StatusLive, detail.Summary.Status)

	// callers cannot mutate the slate
	detail.PlayByPlay[0].Description = "changed"
	again, _ := m.Game(ctx, "nba-sas-det-20260223")
	assert.NotEqual(t, "changed", again.PlayByPlay[0].Description)

	missing, err := m.Game(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

package provider

import (
	"context"

	"github.com/charleschow/sports-lounge/internal/core/model"
	"github.com/charleschow/sports-lounge/internal/core/normalize"
	"github.com/charleschow/sports-lounge/internal/core/state/store"
)

// Normalized serves the StateCache through the Normalizer. Each call reads
// one cache snapshot, so a payload never mixes two cache states.
type Normalized struct {
	cache *store.StateCache
	norm  *normalize.Normalizer
}

func NewNormalized(cache *store.StateCache, norm *normalize.Normalizer) *Normalized {
	return &Normalized{cache: cache, norm: norm}
}

func (p *Normalized) Scoreboard(_ context.Context, sport string) ([]model.GameSummary, error) {
	if sport == "" || sport == AllSports {
		sport = normalize.AllSports
	}
	return p.norm.Scoreboard(p.cache.Snapshot(), sport), nil
}

func (p *Normalized) Game(_ context.Context, gameID string) (*model.GameDetail, error) {
	detail, ok := p.norm.Game(p.cache.Snapshot(), gameID)
	if !ok {
		return nil, nil
	}
	return detail, nil
}

func (p *Normalized) PlayByPlay(_ context.Context, gameID string) ([]model.PlayEvent, error) {
	data, ok := p.cache.PBP(gameID)
	if !ok {
		return []model.PlayEvent{}, nil
	}
	return normalize.PlayByPlay(data), nil
}

package provider

import (
	"context"

	"github.com/charleschow/sports-lounge/internal/core/model"
)

// AllSports asks Scoreboard for every sport the provider knows.
const AllSports = "all"

// Provider is where the hub reads canonical game state from. It is chosen
// once at startup and injected.
type Provider interface {
	Scoreboard(ctx context.Context, sport string) ([]model.GameSummary, error)
	// Game returns nil when the game is unknown.
	Game(ctx context.Context, gameID string) (*model.GameDetail, error)
	PlayByPlay(ctx context.Context, gameID string) ([]model.PlayEvent, error)
}

package fanout

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charleschow/sports-lounge/internal/core/model"
)

const (
	TopicScoreboard = "scoreboard"
	gameTopicPrefix = "game:"
)

// Viewer request types.
const (
	ReqSubscribe   = "subscribe"
	ReqUnsubscribe = "unsubscribe"
	ReqRequestPBP  = "request_pbp"
)

// GameTopic is the topic carrying detail updates for one game.
func GameTopic(gameID string) string { return gameTopicPrefix + gameID }

// ParseTopic validates topic. For a game topic it returns the game id.
func ParseTopic(topic string) (gameID string, err error) {
	switch {
	case topic == TopicScoreboard:
		return "", nil
	case strings.HasPrefix(topic, gameTopicPrefix) && len(topic) > len(gameTopicPrefix):
		return strings.TrimPrefix(topic, gameTopicPrefix), nil
	default:
		return "", fmt.Errorf("unknown topic %q", topic)
	}
}

// ViewerRequest is a frame sent by a viewer.
type ViewerRequest struct {
	Type   string `json:"type"`
	Topic  string `json:"topic,omitempty"`
	GameID string `json:"game_id,omitempty"`
}

type ScoreboardPayload struct {
	Type  string              `json:"type"`
	Games []model.GameSummary `json:"games"`
}

type GameUpdatePayload struct {
	Type   string            `json:"type"`
	GameID string            `json:"game_id"`
	Data   *model.GameDetail `json:"data"`
}

func MarshalScoreboard(games []model.GameSummary) ([]byte, error) {
	if games == nil {
		games = []model.GameSummary{}
	}
	return json.Marshal(ScoreboardPayload{Type: "scoreboard", Games: games})
}

func MarshalGameUpdate(gameID string, detail *model.GameDetail) ([]byte, error) {
	return json.Marshal(GameUpdatePayload{Type: "game_update", GameID: gameID, Data: detail})
}

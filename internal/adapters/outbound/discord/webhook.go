package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charleschow/sports-lounge/internal/events"
	"github.com/charleschow/sports-lounge/internal/telemetry"
)

// Notifier posts operational alerts to a Discord webhook. With an empty URL
// every send is a no-op.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *Notifier) Enabled() bool { return n.webhookURL != "" }

type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

func (n *Notifier) SendEmbed(ctx context.Context, embed Embed) error {
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return n.send(ctx, webhookPayload{Embeds: []Embed{embed}})
}

func (n *Notifier) send(ctx context.Context, payload webhookPayload) error {
	if !n.Enabled() {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("discord rate limited")
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook: status=%d", resp.StatusCode)
	}
	return nil
}

const (
	ColorGreen = 0x2ECC71
	ColorRed   = 0xE74C3C
)

// RelayStatus reports the relay link attaching to or dropping from the hub.
func (n *Notifier) RelayStatus(ctx context.Context, st events.RelayStatusEvent) error {
	embed := Embed{Title: "Relay connected", Color: ColorGreen}
	if !st.Connected {
		embed = Embed{
			Title:       "Relay disconnected",
			Description: "Hub is serving cached state until the collector reconnects.",
			Color:       ColorRed,
		}
	}
	if st.Remote != "" {
		embed.Fields = []Field{{Name: "Remote", Value: st.Remote, Inline: true}}
	}
	return n.SendEmbed(ctx, embed)
}

// Subscribe posts relay status changes from bus. Posts run off the
// publisher's goroutine.
func (n *Notifier) Subscribe(bus *events.Bus) {
	if !n.Enabled() {
		return
	}
	bus.Subscribe(events.EventRelayStatus, func(e events.Event) error {
		st, ok := e.Payload.(events.RelayStatusEvent)
		if !ok {
			return nil
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := n.RelayStatus(ctx, st); err != nil {
				telemetry.Warnf("discord: relay alert: %v", err)
			}
		}()
		return nil
	})
}

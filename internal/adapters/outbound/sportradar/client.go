package sportradar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/charleschow/sports-lounge/internal/core/ratelimit"
	"github.com/charleschow/sports-lounge/internal/telemetry"
)

var (
	ErrRateLimited    = errors.New("sportradar: rate limited")
	ErrUnauthorized   = errors.New("sportradar: unauthorized")
	ErrNotFound       = errors.New("sportradar: not found")
	ErrQuotaExhausted = errors.New("sportradar: daily quota exhausted")
)

const DefaultBaseURL = "https://api.sportradar.com"

// Client calls the metered SportRadar REST API. Every request passes the
// shared Limiter first.
type Client struct {
	baseURL    string
	tier       string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	clock      clockwork.Clock
}

func NewClient(baseURL, tier, apiKey string, limiter *ratelimit.Limiter, clock clockwork.Clock) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		baseURL: baseURL,
		tier:    tier,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: limiter,
		clock:   clock,
	}
}

// DailySchedule fetches today's (UTC) schedule for sport.
func (c *Client) DailySchedule(ctx context.Context, sport string) (map[string]any, error) {
	now := c.clock.Now().UTC()
	return c.getJSON(ctx, sport, fmt.Sprintf("games/%d/%02d/%02d/schedule.json", now.Year(), now.Month(), now.Day()))
}

func (c *Client) GameSummary(ctx context.Context, sport, gameID string) (map[string]any, error) {
	return c.getJSON(ctx, sport, "games/"+url.PathEscape(gameID)+"/summary.json")
}

func (c *Client) PlayByPlay(ctx context.Context, sport, gameID string) (map[string]any, error) {
	return c.getJSON(ctx, sport, "games/"+url.PathEscape(gameID)+"/pbp.json")
}

func (c *Client) Remaining() int { return c.limiter.Remaining() }

func (c *Client) getJSON(ctx context.Context, sport, path string) (map[string]any, error) {
	if !c.limiter.Acquire(ctx) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		telemetry.Metrics.QuotaExhausted.Inc()
		return nil, ErrQuotaExhausted
	}

	endpoint := fmt.Sprintf("%s/%s/%s/v8/en/%s?%s",
		c.baseURL, sport, c.tier, path, url.Values{"api_key": {c.apiKey}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	telemetry.Metrics.UpstreamRequests.Inc()
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.Metrics.UpstreamErrors.Inc()
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	telemetry.Metrics.UpstreamLatency.Record(elapsed)
	if err != nil {
		telemetry.Metrics.UpstreamErrors.Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}

	telemetry.Debugf("sportradar: GET %s/%s -> %d (%s)", sport, path, resp.StatusCode, elapsed)

	if err := statusError(resp.StatusCode); err != nil {
		telemetry.Metrics.UpstreamErrors.Inc()
		return nil, fmt.Errorf("%s/%s: %w", sport, path, err)
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		telemetry.Metrics.UpstreamErrors.Inc()
		return nil, fmt.Errorf("decode %s/%s: %w", sport, path, err)
	}
	return data, nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}

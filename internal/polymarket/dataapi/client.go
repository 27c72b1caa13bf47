package dataapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/polywhale/whalescan/internal/config"
	"github.com/polywhale/whalescan/internal/ratelimit"
)

// tradeHistoryLimit caps the trade-count lookup; the API returns at most
// this many rows, so a count equal to the limit means "at least that many".
const tradeHistoryLimit = 100

// Client handles communication with the Polymarket Data API, used for
// wallet enrichment. The client timeout is deliberately short: enrichment
// must never hold up ingestion.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tradesLimiter *ratelimit.Limiter
	rankLimiter   *ratelimit.Limiter
}

// NewClient creates a new Data API client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:       cfg.DataAPIBaseURL,
		httpClient:    &http.Client{Timeout: cfg.EnrichTimeout},
		tradesLimiter: ratelimit.New(cfg.DataAPITradesRPS),
		rankLimiter:   ratelimit.New(cfg.DataAPIRankRPS),
	}
}

// GetWalletTradeCount returns how many trades the wallet has on record,
// capped at tradeHistoryLimit.
func (c *Client) GetWalletTradeCount(ctx context.Context, wallet string) (int, error) {
	if err := c.tradesLimiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/trades")
	if err != nil {
		return 0, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	q.Set("user", wallet)
	q.Set("limit", strconv.Itoa(tradeHistoryLimit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var trades []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&trades); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	return len(trades), nil
}

// GetLeaderboardEntry returns the wallet's leaderboard row, or (nil, nil)
// when the wallet is not ranked.
func (c *Client) GetLeaderboardEntry(ctx context.Context, wallet string) (*LeaderboardEntry, error) {
	if err := c.rankLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/v1/leaderboard")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}

	q := u.Query()
	q.Set("user", wallet)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var entries []LeaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	colorBuy  = 0x2ECC71 // Green
	colorSell = 0xE74C3C // Red

	newWalletTradeLimit = 10
	highPnLUSD          = 100000.0
	profitablePnLUSD    = 25000.0
	topRankLimit        = 100
	repeatWhaleTrades   = 5
	minSettledForRate   = 3
	strongWinRate       = 0.70
	goodWinRate         = 0.50
)

// DiscordSender sends alerts to Discord via webhook
type DiscordSender struct {
	webhookURL string
	httpClient *http.Client
}

// NewDiscordSender creates a new Discord sender
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send sends the alert to Discord
func (s *DiscordSender) Send(ctx context.Context, payload *AlertPayload) error {
	embed := s.buildEmbed(payload)

	webhookPayload := map[string]interface{}{
		"embeds": []interface{}{embed},
	}

	body, err := json.Marshal(webhookPayload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}

// Verify fetches the webhook metadata to confirm the URL is live
func (s *DiscordSender) Verify(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.webhookURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook check returned status %d", resp.StatusCode)
	}

	return nil
}

func (s *DiscordSender) buildEmbed(payload *AlertPayload) map[string]interface{} {
	var title string
	var color int
	if payload.Side == "SELL" {
		title = "🔴 Whale SELL"
		color = colorSell
	} else {
		title = "🟢 Whale BUY"
		color = colorBuy
	}

	description := fmt.Sprintf("**$%.2f** %s **%s** @ **%.2f** (%.0f shares)",
		payload.ValueUSD,
		strings.ToLower(payload.Side),
		payload.Outcome,
		payload.Price,
		payload.Size,
	)

	fields := []map[string]interface{}{
		{
			"name":   "Wallet",
			"value":  fmt.Sprintf("`%s`", payload.WalletShort),
			"inline": true,
		},
		{
			"name":   "Market",
			"value":  truncate(payload.MarketTitle, 100),
			"inline": true,
		},
		{
			"name":   "Size",
			"value":  fmt.Sprintf("$%.2f", payload.ValueUSD),
			"inline": true,
		},
		{
			"name":   "History",
			"value":  s.walletHistory(payload),
			"inline": false,
		},
		{
			"name":   "Tx",
			"value":  fmt.Sprintf("`%s`", payload.TxHashShort),
			"inline": true,
		},
	}

	if flags := buildFlags(payload); len(flags) > 0 {
		fields = append(fields, map[string]interface{}{
			"name":   "Flags",
			"value":  strings.Join(flags, "\n"),
			"inline": false,
		})
	}

	footer := map[string]interface{}{
		"text": fmt.Sprintf("Whalescan • %s • %s", payload.Environment, payload.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")),
	}

	embed := map[string]interface{}{
		"title":       title,
		"url":         payload.MarketURL,
		"description": description,
		"color":       color,
		"fields":      fields,
		"footer":      footer,
		"timestamp":   payload.Timestamp.Format(time.RFC3339),
	}

	return embed
}

func (s *DiscordSender) walletHistory(payload *AlertPayload) string {
	var parts []string

	if payload.APITradeCount != nil {
		parts = append(parts, fmt.Sprintf("%d lifetime trades", *payload.APITradeCount))
	} else {
		parts = append(parts, "lifetime trades unknown")
	}

	if payload.LeaderboardPnLUSD != nil {
		parts = append(parts, fmt.Sprintf("PnL $%.0f", *payload.LeaderboardPnLUSD))
	}
	if payload.LeaderboardVolumeUSD != nil {
		parts = append(parts, fmt.Sprintf("volume $%.0f", *payload.LeaderboardVolumeUSD))
	}

	parts = append(parts, fmt.Sprintf("%d whale trades tracked (first seen %s)", payload.WhaleTradeCount, payload.FirstSeenDate))

	if settled := payload.SettledCount(); settled > 0 {
		parts = append(parts, fmt.Sprintf("%d-%d settled, $%.2f realized", payload.Wins, payload.Losses, payload.RealizedPnLUSD))
	}

	return truncate(strings.Join(parts, " • "), 1000)
}

// buildFlags derives the attention markers shown under the embed
func buildFlags(payload *AlertPayload) []string {
	var flags []string

	switch {
	case payload.APITradeCount == nil:
		flags = append(flags, "❓ UNKNOWN HISTORY - trade count lookup failed")
	case *payload.APITradeCount == 0:
		flags = append(flags, "🆕 NEW WALLET - no prior trades on record")
	case *payload.APITradeCount < newWalletTradeLimit:
		flags = append(flags, fmt.Sprintf("🆕 NEW WALLET - only %d prior trades", *payload.APITradeCount))
	}

	if payload.LeaderboardPnLUSD != nil {
		switch {
		case *payload.LeaderboardPnLUSD > highPnLUSD:
			flags = append(flags, fmt.Sprintf("💰 HIGH PNL - $%.0f lifetime profit", *payload.LeaderboardPnLUSD))
		case *payload.LeaderboardPnLUSD > profitablePnLUSD:
			flags = append(flags, fmt.Sprintf("💵 Profitable trader - $%.0f lifetime profit", *payload.LeaderboardPnLUSD))
		}
	}

	if payload.LeaderboardRank != nil && *payload.LeaderboardRank <= topRankLimit {
		flags = append(flags, fmt.Sprintf("🏆 TOP %d - leaderboard rank #%d", topRankLimit, *payload.LeaderboardRank))
	}

	if settled := payload.SettledCount(); settled >= minSettledForRate {
		rate := payload.WinRate()
		if rate >= strongWinRate {
			flags = append(flags, fmt.Sprintf("🎯 STRONG WIN RATE - %.0f%% over %d settled", rate*100, settled))
		} else if rate >= goodWinRate {
			flags = append(flags, fmt.Sprintf("✅ Winning record - %.0f%% over %d settled", rate*100, settled))
		}
	}

	if payload.WhaleTradeCount > repeatWhaleTrades {
		flags = append(flags, fmt.Sprintf("🔁 REPEAT WHALE - %d large trades tracked", payload.WhaleTradeCount))
	}

	return flags
}

// truncate limits s to maxLen runes, cutting on rune boundaries so
// multi-byte market titles never end in a torn character.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

package processor

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/polywhale/whalescan/internal/config"
	"github.com/polywhale/whalescan/internal/polymarket/rtds"
	"github.com/polywhale/whalescan/internal/storage"
)

func TestHandleTradeBelowThreshold(t *testing.T) {
	cfg := &config.Config{WhaleThresholdUSD: 10000}
	p := &Processor{cfg: cfg, log: logrus.New()}

	tests := []struct {
		name        string
		value       float64
		description string
	}{
		{
			name:        "tiny trade",
			value:       5.0,
			description: "$5 is nowhere near the $10k threshold",
		},
		{
			name:        "just below threshold",
			value:       9999.99,
			description: "One cent short still does not qualify",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &rtds.TradeEvent{
				TransactionHash: "0xhash",
				ProxyWallet:     "0xwallet",
				Value:           tt.value,
			}

			// Below-threshold trades never reach storage, so a nil db
			// proves the filter short-circuits.
			if err := p.HandleTrade(context.Background(), ev); err != nil {
				t.Errorf("HandleTrade returned %v, want nil (%s)", err, tt.description)
			}

			if whales, _ := p.Stats(); whales != 0 {
				t.Errorf("whale counter = %d, want 0 (%s)", whales, tt.description)
			}
		})
	}
}

func TestPositionFromEvent(t *testing.T) {
	tradedAt := time.Unix(1756600000, 0)
	ev := &rtds.TradeEvent{
		ConditionID:     "0xcond",
		EventSlug:       "us-election-2026",
		Title:           "Will it happen?",
		Side:            "SELL",
		Outcome:         "No",
		Size:            20000,
		Price:           0.75,
		Value:           15000,
		ProxyWallet:     "0xwallet",
		Timestamp:       tradedAt,
		TransactionHash: "0xhash",
	}

	pos := positionFromEvent(ev)

	if pos.TransactionHash != "0xhash" || pos.ConditionID != "0xcond" {
		t.Errorf("identity fields = %s/%s, want 0xhash/0xcond", pos.TransactionHash, pos.ConditionID)
	}
	if pos.Side != "SELL" || pos.Outcome != "No" {
		t.Errorf("side/outcome = %s/%s, want SELL/No", pos.Side, pos.Outcome)
	}
	if pos.TradeValueUSD != 15000 {
		t.Errorf("value = %v, want 15000", pos.TradeValueUSD)
	}
	if pos.TradedAtTS != tradedAt.Unix() {
		t.Errorf("traded_at = %d, want %d", pos.TradedAtTS, tradedAt.Unix())
	}
	if pos.Won != nil || pos.ResolvedOutcome != nil || pos.PnLUSD != nil {
		t.Error("new position must start unsettled")
	}
}

func TestBuildPayload(t *testing.T) {
	cfg := &config.Config{Environment: "test"}
	p := &Processor{cfg: cfg, log: logrus.New()}

	ev := &rtds.TradeEvent{
		ConditionID:     "0xcond",
		EventSlug:       "us-election-2026",
		Title:           "Will it happen?",
		Side:            "BUY",
		Outcome:         "Yes",
		Size:            25000,
		Price:           0.60,
		Value:           15000,
		ProxyWallet:     "0xabc123def456abc123def456abc123def456abcd",
		Timestamp:       time.Unix(1756600000, 0),
		TransactionHash: "0x1234567890abcdef1234567890abcdef",
	}

	t.Run("without rollup", func(t *testing.T) {
		payload := p.buildPayload(ev, nil)

		if payload.MarketURL != "https://polymarket.com/event/us-election-2026" {
			t.Errorf("market URL = %s", payload.MarketURL)
		}
		if payload.APITradeCount != nil {
			t.Error("trade count must stay unknown without enrichment")
		}
		if payload.WhaleTradeCount != 0 {
			t.Errorf("whale trade count = %d, want 0", payload.WhaleTradeCount)
		}
	})

	t.Run("with rollup", func(t *testing.T) {
		count := 42
		rank := 17
		rollup := &storage.WalletRollup{
			WalletAddress:   ev.ProxyWallet,
			FirstSeenTS:     1756000000,
			PositionCount:   7,
			Wins:            4,
			Losses:          2,
			RealizedPnLUSD:  1234.56,
			APITradeCount:   &count,
			LeaderboardRank: &rank,
		}

		payload := p.buildPayload(ev, rollup)

		if payload.APITradeCount == nil || *payload.APITradeCount != 42 {
			t.Errorf("trade count = %v, want 42", payload.APITradeCount)
		}
		if payload.LeaderboardRank == nil || *payload.LeaderboardRank != 17 {
			t.Errorf("rank = %v, want 17", payload.LeaderboardRank)
		}
		if payload.WhaleTradeCount != 7 || payload.Wins != 4 || payload.Losses != 2 {
			t.Errorf("history = %d/%d/%d, want 7/4/2", payload.WhaleTradeCount, payload.Wins, payload.Losses)
		}
		if payload.FirstSeenDate == "" {
			t.Error("first seen date must be formatted from the rollup")
		}
	})
}

func TestShorteners(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(string) string
		input    string
		expected string
	}{
		{
			name:     "long address",
			fn:       shortenAddress,
			input:    "0xabc123def456abc123def456abc123def456abcd",
			expected: "0xabc1...abcd",
		},
		{
			name:     "short address untouched",
			fn:       shortenAddress,
			input:    "0xabc",
			expected: "0xabc",
		},
		{
			name:     "long hash",
			fn:       shortenHash,
			input:    "0x1234567890abcdef1234567890abcdef",
			expected: "0x12345678...cdef",
		},
		{
			name:     "short hash untouched",
			fn:       shortenHash,
			input:    "0x1234",
			expected: "0x1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.input); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

package alerts

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestBuildFlags(t *testing.T) {
	tests := []struct {
		name        string
		payload     AlertPayload
		expected    []string
		notExpected []string
		description string
	}{
		{
			name: "unknown history",
			payload: AlertPayload{
				APITradeCount: nil,
			},
			expected:    []string{"UNKNOWN HISTORY"},
			description: "Failed lookup must not masquerade as a new wallet",
		},
		{
			name: "brand new wallet",
			payload: AlertPayload{
				APITradeCount: intPtr(0),
			},
			expected:    []string{"NEW WALLET"},
			notExpected: []string{"UNKNOWN"},
			description: "Zero prior trades is the strongest new-wallet signal",
		},
		{
			name: "nearly new wallet",
			payload: AlertPayload{
				APITradeCount: intPtr(7),
			},
			expected:    []string{"NEW WALLET", "7 prior trades"},
			description: "Under 10 trades still counts as new",
		},
		{
			name: "established wallet",
			payload: AlertPayload{
				APITradeCount: intPtr(500),
			},
			notExpected: []string{"NEW WALLET", "UNKNOWN"},
			description: "500 trades is not new",
		},
		{
			name: "high pnl",
			payload: AlertPayload{
				APITradeCount:     intPtr(500),
				LeaderboardPnLUSD: floatPtr(250000),
			},
			expected:    []string{"HIGH PNL"},
			description: "Over $100k lifetime profit",
		},
		{
			name: "merely profitable",
			payload: AlertPayload{
				APITradeCount:     intPtr(500),
				LeaderboardPnLUSD: floatPtr(30000),
			},
			expected:    []string{"Profitable trader"},
			notExpected: []string{"HIGH PNL"},
			description: "Between $25k and $100k",
		},
		{
			name: "top ranked",
			payload: AlertPayload{
				APITradeCount:   intPtr(500),
				LeaderboardRank: intPtr(12),
			},
			expected:    []string{"TOP 100", "#12"},
			description: "Rank 12 is inside the top 100",
		},
		{
			name: "rank outside top",
			payload: AlertPayload{
				APITradeCount:   intPtr(500),
				LeaderboardRank: intPtr(4000),
			},
			notExpected: []string{"TOP 100"},
			description: "Rank 4000 gets no flag",
		},
		{
			name: "strong win rate",
			payload: AlertPayload{
				APITradeCount: intPtr(500),
				Wins:          8,
				Losses:        2,
			},
			expected:    []string{"STRONG WIN RATE", "80%"},
			description: "80% over 10 settled",
		},
		{
			name: "good win rate",
			payload: AlertPayload{
				APITradeCount: intPtr(500),
				Wins:          3,
				Losses:        2,
			},
			expected:    []string{"Winning record"},
			notExpected: []string{"STRONG WIN RATE"},
			description: "60% over 5 settled",
		},
		{
			name: "too few settled for win rate",
			payload: AlertPayload{
				APITradeCount: intPtr(500),
				Wins:          2,
				Losses:        0,
			},
			notExpected: []string{"WIN RATE", "Winning record"},
			description: "Two settled positions is not a record",
		},
		{
			name: "repeat whale",
			payload: AlertPayload{
				APITradeCount:   intPtr(500),
				WhaleTradeCount: 9,
			},
			expected:    []string{"REPEAT WHALE"},
			description: "More than five tracked whale trades",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := buildFlags(&tt.payload)
			joined := strings.Join(flags, "\n")

			for _, want := range tt.expected {
				if !strings.Contains(joined, want) {
					t.Errorf("flags %q missing %q (%s)", joined, want, tt.description)
				}
			}
			for _, notWant := range tt.notExpected {
				if strings.Contains(joined, notWant) {
					t.Errorf("flags %q unexpectedly contain %q (%s)", joined, notWant, tt.description)
				}
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 100); got != "short" {
		t.Errorf("got %q, want unchanged", got)
	}

	long := strings.Repeat("x", 150)
	got := truncate(long, 100)
	if len(got) != 100 {
		t.Errorf("truncated length = %d, want 100", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated string %q missing ellipsis", got)
	}
}

func TestTruncateMultiByte(t *testing.T) {
	// Each rune here is multi-byte; a byte-index cut would tear one apart.
	long := strings.Repeat("日本語の市場タイトル", 20)

	got := truncate(long, 100)

	if !utf8.ValidString(got) {
		t.Fatalf("truncated string is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated string %q missing ellipsis", got)
	}
	if n := utf8.RuneCountInString(got); n != 100 {
		t.Errorf("truncated rune count = %d, want 100", n)
	}
	if strings.ContainsRune(got, utf8.RuneError) {
		t.Errorf("truncated string contains a replacement character: %q", got)
	}
}

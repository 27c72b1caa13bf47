package settlement

import (
	"math"
	"testing"
)

func TestSettle(t *testing.T) {
	tests := []struct {
		name            string
		side            string
		betOutcome      string
		resolvedOutcome string
		size            float64
		price           float64
		expectedWon     bool
		expectedPnL     float64
		description     string
	}{
		{
			name:            "winning buy",
			side:            "BUY",
			betOutcome:      "Yes",
			resolvedOutcome: "Yes",
			size:            1000,
			price:           0.65,
			expectedWon:     true,
			expectedPnL:     350.00,
			description:     "1000 * (1 - 0.65) = 350.00",
		},
		{
			name:            "losing buy",
			side:            "BUY",
			betOutcome:      "Yes",
			resolvedOutcome: "No",
			size:            1000,
			price:           0.65,
			expectedWon:     false,
			expectedPnL:     -650.00,
			description:     "-(1000 * 0.65) = -650.00",
		},
		{
			name:            "winning sell",
			side:            "SELL",
			betOutcome:      "Yes",
			resolvedOutcome: "No",
			size:            500,
			price:           0.20,
			expectedWon:     true,
			expectedPnL:     100.00,
			description:     "500 * 0.20 = 100.00",
		},
		{
			name:            "losing sell",
			side:            "SELL",
			betOutcome:      "Yes",
			resolvedOutcome: "Yes",
			size:            500,
			price:           0.20,
			expectedWon:     false,
			expectedPnL:     -400.00,
			description:     "-(500 * 0.80) = -400.00",
		},
		{
			name:            "winning buy on No",
			side:            "BUY",
			betOutcome:      "No",
			resolvedOutcome: "No",
			size:            200,
			price:           0.40,
			expectedWon:     true,
			expectedPnL:     120.00,
			description:     "200 * (1 - 0.40) = 120.00",
		},
		{
			name:            "losing buy on No",
			side:            "BUY",
			betOutcome:      "No",
			resolvedOutcome: "Yes",
			size:            200,
			price:           0.40,
			expectedWon:     false,
			expectedPnL:     -80.00,
			description:     "-(200 * 0.40) = -80.00",
		},
		{
			name:            "winning sell on No",
			side:            "SELL",
			betOutcome:      "No",
			resolvedOutcome: "Yes",
			size:            300,
			price:           0.55,
			expectedWon:     true,
			expectedPnL:     165.00,
			description:     "300 * 0.55 = 165.00",
		},
		{
			name:            "losing sell on No",
			side:            "SELL",
			betOutcome:      "No",
			resolvedOutcome: "No",
			size:            300,
			price:           0.55,
			expectedWon:     false,
			expectedPnL:     -135.00,
			description:     "-(300 * 0.45) = -135.00",
		},
		{
			name:            "case insensitive side and outcome",
			side:            "buy",
			betOutcome:      "yes",
			resolvedOutcome: "Yes",
			size:            100,
			price:           0.50,
			expectedWon:     true,
			expectedPnL:     50.00,
			description:     "Side and outcome comparisons ignore case",
		},
		{
			name:            "rounds to whole cents",
			side:            "BUY",
			betOutcome:      "Yes",
			resolvedOutcome: "Yes",
			size:            33.333,
			price:           0.333,
			expectedWon:     true,
			expectedPnL:     22.23,
			description:     "33.333 * 0.667 = 22.233... rounds to 22.23",
		},
		{
			name:            "float sum that needs decimal math",
			side:            "BUY",
			betOutcome:      "Yes",
			resolvedOutcome: "Yes",
			size:            10000,
			price:           0.1,
			expectedWon:     true,
			expectedPnL:     9000.00,
			description:     "10000 * 0.9 must be exactly 9000.00, not 8999.99...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			won, pnl := Settle(tt.side, tt.betOutcome, tt.resolvedOutcome, tt.size, tt.price)

			if won != tt.expectedWon {
				t.Errorf("won = %v, want %v (%s)", won, tt.expectedWon, tt.description)
			}
			if math.Abs(pnl-tt.expectedPnL) > 0.001 {
				t.Errorf("pnl = %.4f, want %.2f (%s)", pnl, tt.expectedPnL, tt.description)
			}
		})
	}
}

// A position's win/loss amounts must be complementary: whichever way the
// market resolves, win amount minus loss amount equals the full share count.
func TestSettlePayoutSymmetry(t *testing.T) {
	size, price := 750.0, 0.37

	_, winPnL := Settle("BUY", "Yes", "Yes", size, price)
	_, lossPnL := Settle("BUY", "Yes", "No", size, price)

	if math.Abs(winPnL-lossPnL-size) > 0.01 {
		t.Errorf("win %.2f - loss %.2f = %.2f, want %.2f", winPnL, lossPnL, winPnL-lossPnL, size)
	}
}

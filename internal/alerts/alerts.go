package alerts

import (
	"context"
	"time"
)

// AlertPayload contains all information for a whale-trade alert
type AlertPayload struct {
	// Trade
	WalletAddress   string
	WalletShort     string // Shortened for display
	MarketTitle     string
	MarketURL       string
	Side            string
	Outcome         string
	Size            float64
	Price           float64
	ValueUSD        float64
	TransactionHash string
	TxHashShort     string // Shortened for display
	Timestamp       time.Time

	// Wallet history, from the enrichment APIs. Nil means the lookup
	// failed or has not run; display as unknown, never as zero.
	APITradeCount        *int
	LeaderboardRank      *int
	LeaderboardPnLUSD    *float64
	LeaderboardVolumeUSD *float64

	// Wallet history, from our own ledger
	WhaleTradeCount int
	Wins            int
	Losses          int
	RealizedPnLUSD  float64
	FirstSeenDate   string

	Environment string
}

// SettledCount returns how many of the wallet's tracked positions resolved
func (p *AlertPayload) SettledCount() int {
	return p.Wins + p.Losses
}

// WinRate returns the wallet's win fraction over settled positions
func (p *AlertPayload) WinRate() float64 {
	settled := p.SettledCount()
	if settled == 0 {
		return 0
	}
	return float64(p.Wins) / float64(settled)
}

// Sender defines the interface for alert senders
type Sender interface {
	Send(ctx context.Context, payload *AlertPayload) error
	// Verify checks the destination is reachable at startup
	Verify(ctx context.Context) error
}

package storage

import (
	"time"

	"gorm.io/gorm"
)

// WhalePosition is one flagged whale trade. The resolution fields
// (ResolvedOutcome, Won, PnLUSD) are either all NULL (pending) or all set
// (settled); partial resolution never occurs because settlement writes
// them in a single update.
type WhalePosition struct {
	ID              int64   `gorm:"primaryKey;autoIncrement"`
	TransactionHash string  `gorm:"uniqueIndex;size:128;not null"`
	ConditionID     string  `gorm:"size:128;not null;index"`
	EventSlug       string  `gorm:"size:255"`
	MarketTitle     string  `gorm:"size:512"`
	ProxyWallet     string  `gorm:"size:128;not null;index"`
	Side            string  `gorm:"size:10;not null"`
	Outcome         string  `gorm:"size:255;not null"`
	Size            float64 `gorm:"type:decimal(20,6);not null"`
	Price           float64 `gorm:"type:decimal(10,6);not null"`
	TradeValueUSD   float64 `gorm:"type:decimal(20,6);not null"`
	TradedAtTS      int64   `gorm:"not null;index"`

	// Resolution (filled in by the settlement engine)
	ResolvedOutcome *string  `gorm:"size:255"`
	Won             *bool    `gorm:"index"`
	PnLUSD          *float64 `gorm:"column:pnl_usd;type:decimal(20,2)"`

	CreatedTS int64 `gorm:"not null"`
}

func (WhalePosition) TableName() string {
	return "whale_positions"
}

// Pending reports whether the position still awaits settlement.
func (p *WhalePosition) Pending() bool {
	return p.Won == nil
}

// WalletRollup aggregates all flagged positions for one wallet, plus the
// cached enrichment data fetched from the Data API. The cached fields are
// pointers so that "unknown" stays distinguishable from zero.
type WalletRollup struct {
	WalletAddress  string  `gorm:"primaryKey;size:128"`
	FirstSeenTS    int64   `gorm:"not null;index"`
	PositionCount  int64   `gorm:"not null;default:0"`
	TotalValueUSD  float64 `gorm:"type:decimal(20,6);not null;default:0"`
	Wins           int64   `gorm:"not null;default:0"`
	Losses         int64   `gorm:"not null;default:0"`
	RealizedPnLUSD float64 `gorm:"column:realized_pnl_usd;type:decimal(20,2);not null;default:0"`

	// Enrichment cache (refreshed on a TTL)
	APITradeCount        *int
	LeaderboardRank      *int
	LeaderboardPnLUSD    *float64 `gorm:"column:leaderboard_pnl_usd;type:decimal(20,2)"`
	LeaderboardVolumeUSD *float64 `gorm:"type:decimal(20,2)"`
	LastEnrichedTS       int64    `gorm:"not null;default:0"`

	UpdatedTS int64 `gorm:"not null"`
}

func (WalletRollup) TableName() string {
	return "wallet_rollups"
}

// WinRate returns the wallet's settled win rate, or false when no
// positions have settled yet.
func (w *WalletRollup) WinRate() (float64, bool) {
	settled := w.Wins + w.Losses
	if settled == 0 {
		return 0, false
	}
	return float64(w.Wins) / float64(settled), true
}

// EnrichmentFresh reports whether the cached API data is younger than ttl.
func (w *WalletRollup) EnrichmentFresh(ttl time.Duration) bool {
	if w.LastEnrichedTS == 0 {
		return false
	}
	return time.Since(time.Unix(w.LastEnrichedTS, 0)) < ttl
}

// PendingMarket is one market with unsettled positions, derived by
// grouping pending whale_positions rows.
type PendingMarket struct {
	ConditionID   string
	EventSlug     string
	MarketTitle   string
	PositionCount int64
}

// Enrichment carries wallet data fetched from the Data API. Nil means the
// lookup could not determine a value.
type Enrichment struct {
	TradeCount *int
	Rank       *int
	PnLUSD     *float64
	VolumeUSD  *float64
}

func (p *WhalePosition) BeforeCreate(tx *gorm.DB) error {
	if p.CreatedTS == 0 {
		p.CreatedTS = time.Now().Unix()
	}
	return nil
}

func (w *WalletRollup) BeforeCreate(tx *gorm.DB) error {
	if w.UpdatedTS == 0 {
		w.UpdatedTS = time.Now().Unix()
	}
	return nil
}

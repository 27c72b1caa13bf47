package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/polywhale/whalescan/internal/config"
	"github.com/polywhale/whalescan/internal/metrics"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrDuplicatePosition is returned by RecordPosition when the transaction
// hash has already been recorded. Feed redelivery makes this a normal,
// non-fatal outcome.
var ErrDuplicatePosition = errors.New("position already recorded")

// SettleFunc computes the verdict and P&L for one pending position given
// the market's resolved outcome.
type SettleFunc func(pos *WhalePosition) (won bool, pnlUSD float64)

// DB wraps the GORM database connection
type DB struct {
	conn *gorm.DB
	log  *logrus.Logger
}

// New creates a new database connection with GORM
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	gormLogger := logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("Database connection established")

	return &DB{conn: conn, log: log}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs GORM auto-migration (for development only)
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&WhalePosition{},
		&WalletRollup{},
	)
}

// RecordPosition inserts a flagged position and bumps the owning wallet's
// rollup in one transaction, so a reader never observes one without the
// other. A redelivered trade (same transaction hash) leaves both tables
// untouched and returns ErrDuplicatePosition.
func (db *DB) RecordPosition(ctx context.Context, pos *WhalePosition) error {
	err := db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pos).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicatePosition
			}
			return fmt.Errorf("insert position: %w", err)
		}

		res := tx.Model(&WalletRollup{}).
			Where("wallet_address = ?", pos.ProxyWallet).
			Updates(map[string]interface{}{
				"position_count":  gorm.Expr("position_count + 1"),
				"total_value_usd": gorm.Expr("total_value_usd + ?", pos.TradeValueUSD),
				"updated_ts":      time.Now().Unix(),
			})
		if res.Error != nil {
			return fmt.Errorf("update rollup: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			rollup := &WalletRollup{
				WalletAddress: pos.ProxyWallet,
				FirstSeenTS:   pos.TradedAtTS,
				PositionCount: 1,
				TotalValueUSD: pos.TradeValueUSD,
			}
			if err := tx.Create(rollup).Error; err != nil {
				return fmt.Errorf("insert rollup: %w", err)
			}
		}
		return nil
	})

	if !errors.Is(err, ErrDuplicatePosition) {
		metrics.RecordDatabaseQuery("record_position", err)
	}
	return err
}

// GetPendingMarkets returns the markets that still have unsettled
// positions, one entry per condition ID.
func (db *DB) GetPendingMarkets(ctx context.Context) ([]PendingMarket, error) {
	var markets []PendingMarket
	err := db.conn.WithContext(ctx).
		Model(&WhalePosition{}).
		Select("condition_id, MIN(event_slug) AS event_slug, MIN(market_title) AS market_title, COUNT(*) AS position_count").
		Where("won IS NULL").
		Group("condition_id").
		Scan(&markets).Error
	metrics.RecordDatabaseQuery("get_pending_markets", err)
	if err != nil {
		return nil, fmt.Errorf("get pending markets: %w", err)
	}
	return markets, nil
}

// GetPendingPositions returns unsettled positions, optionally restricted
// to one market.
func (db *DB) GetPendingPositions(ctx context.Context, conditionID string) ([]WhalePosition, error) {
	q := db.conn.WithContext(ctx).Where("won IS NULL")
	if conditionID != "" {
		q = q.Where("condition_id = ?", conditionID)
	}

	var positions []WhalePosition
	err := q.Find(&positions).Error
	metrics.RecordDatabaseQuery("get_pending_positions", err)
	if err != nil {
		return nil, fmt.Errorf("get pending positions: %w", err)
	}
	return positions, nil
}

// ResolveMarket settles every pending position for a market. Each position
// gets its resolution fields set and the owning wallet's wins/losses and
// realized P&L incremented, atomically and only once: the update predicate
// re-checks "won IS NULL", so running the same resolution twice is a
// no-op. Returns the number of positions settled.
func (db *DB) ResolveMarket(ctx context.Context, conditionID, resolvedOutcome string, settle SettleFunc) (int, error) {
	settled := 0
	err := db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []WhalePosition
		if err := tx.
			Where("condition_id = ? AND won IS NULL", conditionID).
			Find(&pending).Error; err != nil {
			return fmt.Errorf("select pending: %w", err)
		}

		for i := range pending {
			pos := &pending[i]
			if !pos.Pending() {
				continue
			}
			won, pnl := settle(pos)

			res := tx.Model(&WhalePosition{}).
				Where("id = ? AND won IS NULL", pos.ID).
				Updates(map[string]interface{}{
					"resolved_outcome": resolvedOutcome,
					"won":              won,
					"pnl_usd":          pnl,
				})
			if res.Error != nil {
				return fmt.Errorf("settle position %d: %w", pos.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				continue // settled by a concurrent sweep
			}

			winInc, lossInc := 0, 1
			if won {
				winInc, lossInc = 1, 0
			}
			if err := tx.Model(&WalletRollup{}).
				Where("wallet_address = ?", pos.ProxyWallet).
				Updates(map[string]interface{}{
					"wins":             gorm.Expr("wins + ?", winInc),
					"losses":           gorm.Expr("losses + ?", lossInc),
					"realized_pnl_usd": gorm.Expr("realized_pnl_usd + ?", pnl),
					"updated_ts":       time.Now().Unix(),
				}).Error; err != nil {
				return fmt.Errorf("update rollup for %s: %w", pos.ProxyWallet, err)
			}

			settled++
		}
		return nil
	})

	metrics.RecordDatabaseQuery("resolve_market", err)
	if err != nil {
		return 0, err
	}
	return settled, nil
}

// GetWalletRollup retrieves a wallet's rollup, or (nil, nil) if the wallet
// has never been seen.
func (db *DB) GetWalletRollup(ctx context.Context, address string) (*WalletRollup, error) {
	var rollup WalletRollup
	result := db.conn.WithContext(ctx).Where("wallet_address = ?", address).First(&rollup)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	metrics.RecordDatabaseQuery("get_wallet_rollup", result.Error)
	if result.Error != nil {
		return nil, result.Error
	}
	return &rollup, nil
}

// UpdateWalletEnrichment stores freshly fetched API data on the wallet's
// rollup row. Nil fields overwrite stale values so "unknown" is recorded
// as unknown, not carried forward.
func (db *DB) UpdateWalletEnrichment(ctx context.Context, address string, e *Enrichment) error {
	err := db.conn.WithContext(ctx).Model(&WalletRollup{}).
		Where("wallet_address = ?", address).
		Updates(map[string]interface{}{
			"api_trade_count":        e.TradeCount,
			"leaderboard_rank":       e.Rank,
			"leaderboard_pnl_usd":    e.PnLUSD,
			"leaderboard_volume_usd": e.VolumeUSD,
			"last_enriched_ts":       time.Now().Unix(),
		}).Error
	metrics.RecordDatabaseQuery("update_enrichment", err)
	return err
}

// GetWalletPositions returns a wallet's most recent flagged positions.
func (db *DB) GetWalletPositions(ctx context.Context, address string, limit int) ([]WhalePosition, error) {
	if limit <= 0 {
		limit = 50
	}
	var positions []WhalePosition
	err := db.conn.WithContext(ctx).
		Where("proxy_wallet = ?", address).
		Order("traded_at_ts DESC").
		Limit(limit).
		Find(&positions).Error
	metrics.RecordDatabaseQuery("get_wallet_positions", err)
	if err != nil {
		return nil, fmt.Errorf("get wallet positions: %w", err)
	}
	return positions, nil
}

// GetTopWallets returns the highest-ranked wallets by the given rollup
// column. Unknown columns fall back to realized P&L.
func (db *DB) GetTopWallets(ctx context.Context, orderBy string, limit int) ([]WalletRollup, error) {
	switch orderBy {
	case "realized_pnl_usd", "wins", "total_value_usd", "position_count":
	default:
		orderBy = "realized_pnl_usd"
	}
	if limit <= 0 {
		limit = 20
	}

	var rollups []WalletRollup
	err := db.conn.WithContext(ctx).
		Where("position_count > 0").
		Order(orderBy + " DESC").
		Limit(limit).
		Find(&rollups).Error
	metrics.RecordDatabaseQuery("get_top_wallets", err)
	if err != nil {
		return nil, fmt.Errorf("get top wallets: %w", err)
	}
	return rollups, nil
}

// CleanupResolvedBefore deletes settled positions older than the cutoff.
// Pending positions are kept regardless of age, and rollups are never
// touched, so wallet aggregates survive retention.
func (db *DB) CleanupResolvedBefore(ctx context.Context, cutoffTS int64) (int64, error) {
	res := db.conn.WithContext(ctx).
		Where("won IS NOT NULL AND traded_at_ts < ?", cutoffTS).
		Delete(&WhalePosition{})
	metrics.RecordDatabaseQuery("cleanup_resolved", res.Error)
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup resolved positions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// gormLogAdapter adapts logrus to GORM's logger interface
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

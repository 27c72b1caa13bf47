package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/polywhale/whalescan/internal/config"
	"github.com/polywhale/whalescan/internal/metrics"
	"github.com/polywhale/whalescan/internal/polymarket/gammaapi"
	"github.com/polywhale/whalescan/internal/storage"
)

// Engine periodically sweeps pending markets, asks the Gamma API whether
// they have resolved, and settles the positions of those that have.
type Engine struct {
	db           *storage.DB
	gamma        *gammaapi.Client
	log          *logrus.Logger
	interval     time.Duration
	initialDelay time.Duration
}

// NewEngine creates a new settlement engine
func NewEngine(cfg *config.Config, db *storage.DB, gamma *gammaapi.Client, log *logrus.Logger) *Engine {
	return &Engine{
		db:           db,
		gamma:        gamma,
		log:          log,
		interval:     cfg.SettlementInterval,
		initialDelay: cfg.SettlementInitialDelay,
	}
}

// Run executes settlement sweeps until the context is cancelled. The
// first sweep is delayed so startup traffic settles before the Gamma API
// gets hit.
func (e *Engine) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.initialDelay):
	}

	e.log.WithField("interval", e.interval.String()).Info("Settlement engine started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		if err := e.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.WithError(err).Error("Settlement sweep failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep checks every market with pending positions once. Markets that
// fail to resolve stay pending and are retried on the next sweep; one
// broken market never blocks the rest.
func (e *Engine) Sweep(ctx context.Context) error {
	start := time.Now()

	markets, err := e.db.GetPendingMarkets(ctx)
	if err != nil {
		return fmt.Errorf("load pending markets: %w", err)
	}

	if len(markets) == 0 {
		metrics.RecordSettlementSweep(time.Since(start), 0)
		return nil
	}

	e.log.WithField("pending_markets", len(markets)).Info("Starting settlement sweep")

	totalSettled := 0
	for _, m := range markets {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		settled, err := e.checkMarket(ctx, m)
		if err != nil {
			e.log.WithError(err).WithFields(logrus.Fields{
				"condition_id": m.ConditionID,
				"market":       m.MarketTitle,
			}).Warn("Market resolution check failed")
			continue
		}
		totalSettled += settled
	}

	metrics.RecordSettlementSweep(time.Since(start), totalSettled)

	e.log.WithFields(logrus.Fields{
		"markets_checked":   len(markets),
		"positions_settled": totalSettled,
		"duration":          time.Since(start).String(),
	}).Info("Settlement sweep complete")

	return nil
}

func (e *Engine) checkMarket(ctx context.Context, m storage.PendingMarket) (int, error) {
	market, err := e.gamma.GetMarketByConditionID(ctx, m.ConditionID)
	if err != nil {
		if errors.Is(err, gammaapi.ErrMarketNotFound) {
			metrics.MarketsChecked.WithLabelValues("not_resolved").Inc()
			return 0, nil
		}
		metrics.MarketsChecked.WithLabelValues("unreachable").Inc()
		return 0, fmt.Errorf("fetch market: %w", err)
	}

	res := ExtractResolution(market)
	metrics.MarketsChecked.WithLabelValues(string(res.State)).Inc()

	switch res.State {
	case StateResolved:
	case StateAmbiguous:
		e.log.WithFields(logrus.Fields{
			"condition_id": m.ConditionID,
			"market":       m.MarketTitle,
		}).Warn("Market prices collapsed on both outcomes, leaving pending")
		return 0, nil
	default:
		return 0, nil
	}

	settled, err := e.db.ResolveMarket(ctx, m.ConditionID, res.Outcome, func(pos *storage.WhalePosition) (bool, float64) {
		return Settle(pos.Side, pos.Outcome, res.Outcome, pos.Size, pos.Price)
	})
	if err != nil {
		return 0, fmt.Errorf("resolve market: %w", err)
	}

	if settled > 0 {
		e.log.WithFields(logrus.Fields{
			"condition_id":      m.ConditionID,
			"market":            m.MarketTitle,
			"resolved_outcome":  res.Outcome,
			"positions_settled": settled,
		}).Info("Market settled")
	}

	return settled, nil
}

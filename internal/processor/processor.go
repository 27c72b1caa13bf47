package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/polywhale/whalescan/internal/alerts"
	"github.com/polywhale/whalescan/internal/config"
	"github.com/polywhale/whalescan/internal/metrics"
	"github.com/polywhale/whalescan/internal/polymarket/dataapi"
	"github.com/polywhale/whalescan/internal/polymarket/rtds"
	"github.com/polywhale/whalescan/internal/storage"
)

const (
	recordAttempts     = 3
	recordRetryBackoff = 500 * time.Millisecond
)

// Processor consumes normalized trade events, keeps the whale ledger, and
// fires alerts for trades over the threshold.
type Processor struct {
	cfg         *config.Config
	db          *storage.DB
	dataClient  *dataapi.Client
	alertSender alerts.Sender
	workerPool  chan struct{}
	log         *logrus.Logger
	walletLocks sync.Map // Per-wallet locks to prevent duplicate API calls

	whalesSeen atomic.Uint64
	alertsSent atomic.Uint64

	// Tracks in-flight enrichment goroutines so Run can drain them
	enrichWG sync.WaitGroup
}

// New creates a new processor
func New(
	cfg *config.Config,
	db *storage.DB,
	dataClient *dataapi.Client,
	alertSender alerts.Sender,
	log *logrus.Logger,
) *Processor {
	workerPool := make(chan struct{}, cfg.EnrichWorkers)
	for i := 0; i < cfg.EnrichWorkers; i++ {
		workerPool <- struct{}{}
	}

	return &Processor{
		cfg:         cfg,
		db:          db,
		dataClient:  dataClient,
		alertSender: alertSender,
		workerPool:  workerPool,
		log:         log,
	}
}

// Run consumes trade events until the context is cancelled or the channel
// closes. A persistent storage failure is returned so the caller can shut
// the service down rather than silently drop trades.
func (p *Processor) Run(ctx context.Context, events <-chan rtds.TradeEvent) error {
	defer p.enrichWG.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := p.HandleTrade(ctx, &ev); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("handle trade %s: %w", shortenHash(ev.TransactionHash), err)
			}
		}
	}
}

// HandleTrade filters, records and (asynchronously) alerts on one trade
func (p *Processor) HandleTrade(ctx context.Context, ev *rtds.TradeEvent) error {
	start := time.Now()

	if ev.Value < p.cfg.WhaleThresholdUSD {
		metrics.RecordTradeProcessing(time.Since(start), "below_threshold")
		return nil
	}

	pos := positionFromEvent(ev)

	err := p.recordWithRetry(ctx, pos)
	if errors.Is(err, storage.ErrDuplicatePosition) {
		metrics.RecordTradeProcessing(time.Since(start), "duplicate")
		return nil
	}
	if err != nil {
		metrics.RecordTradeProcessing(time.Since(start), "error")
		return err
	}

	metrics.RecordTradeProcessing(time.Since(start), "whale")
	p.whalesSeen.Add(1)

	p.log.WithFields(logrus.Fields{
		"wallet":    shortenAddress(ev.ProxyWallet),
		"market":    ev.Title,
		"side":      ev.Side,
		"outcome":   ev.Outcome,
		"value_usd": ev.Value,
		"price":     ev.Price,
		"tx_hash":   shortenHash(ev.TransactionHash),
	}).Info("Whale trade recorded")

	// Enrichment and alerting run off the hot path so slow external APIs
	// never back-pressure the feed.
	p.enrichWG.Add(1)
	go func() {
		defer p.enrichWG.Done()
		p.enrichAndNotify(ctx, ev)
	}()

	return nil
}

// recordWithRetry retries transient storage failures before giving up.
// ErrDuplicatePosition is returned immediately, it will never succeed.
func (p *Processor) recordWithRetry(ctx context.Context, pos *storage.WhalePosition) error {
	backoff := recordRetryBackoff

	var err error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		err = p.db.RecordPosition(ctx, pos)
		if err == nil || errors.Is(err, storage.ErrDuplicatePosition) {
			return err
		}

		if attempt < recordAttempts {
			metrics.DatabaseRetries.Inc()
			p.log.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"backoff": backoff.String(),
			}).Warn("Recording position failed, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return fmt.Errorf("record position after %d attempts: %w", recordAttempts, err)
}

// enrichAndNotify looks up the wallet's history and sends the alert.
// Failures here only degrade the alert, they never fail the trade.
func (p *Processor) enrichAndNotify(ctx context.Context, ev *rtds.TradeEvent) {
	select {
	case <-ctx.Done():
		return
	case <-p.workerPool:
	}
	defer func() { p.workerPool <- struct{}{} }()

	rollup := p.enrichWallet(ctx, ev.ProxyWallet)

	payload := p.buildPayload(ev, rollup)
	if err := p.alertSender.Send(ctx, payload); err != nil {
		metrics.RecordAlert("error", p.cfg.AlertMode)
		p.log.WithError(err).WithField("wallet", payload.WalletShort).Error("Failed to send alert")
		return
	}

	metrics.RecordAlert("success", p.cfg.AlertMode)
	p.alertsSent.Add(1)
}

// enrichWallet returns the wallet rollup with enrichment fields as fresh
// as the cache TTL allows. Returns nil when even the rollup read fails.
func (p *Processor) enrichWallet(ctx context.Context, wallet string) *storage.WalletRollup {
	// One lookup per wallet at a time; concurrent whales from the same
	// wallet just reuse the first result.
	lockIface, _ := p.walletLocks.LoadOrStore(wallet, &sync.Mutex{})
	lock := lockIface.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	rollup, err := p.db.GetWalletRollup(ctx, wallet)
	if err != nil {
		p.log.WithError(err).WithField("wallet", shortenAddress(wallet)).Warn("Failed to load wallet rollup")
		return nil
	}

	if rollup != nil && rollup.EnrichmentFresh(p.cfg.EnrichCacheTTL) {
		metrics.Enrichments.WithLabelValues("cached").Inc()
		return rollup
	}

	enrichment, ok := p.fetchEnrichment(ctx, wallet)
	if !ok {
		metrics.Enrichments.WithLabelValues("error").Inc()
		return rollup
	}

	if err := p.db.UpdateWalletEnrichment(ctx, wallet, enrichment); err != nil {
		p.log.WithError(err).WithField("wallet", shortenAddress(wallet)).Warn("Failed to persist enrichment")
	}
	metrics.Enrichments.WithLabelValues("fresh").Inc()

	if rollup != nil {
		rollup.APITradeCount = enrichment.TradeCount
		rollup.LeaderboardRank = enrichment.Rank
		rollup.LeaderboardPnLUSD = enrichment.PnLUSD
		rollup.LeaderboardVolumeUSD = enrichment.VolumeUSD
	}
	return rollup
}

// fetchEnrichment queries the Data API. ok is false only when every
// lookup failed; partial results still count.
func (p *Processor) fetchEnrichment(ctx context.Context, wallet string) (*storage.Enrichment, bool) {
	e := &storage.Enrichment{}
	gotAny := false

	count, err := p.dataClient.GetWalletTradeCount(ctx, wallet)
	if err != nil {
		p.log.WithError(err).WithField("wallet", shortenAddress(wallet)).Warn("Trade count lookup failed")
	} else {
		e.TradeCount = &count
		gotAny = true
	}

	entry, err := p.dataClient.GetLeaderboardEntry(ctx, wallet)
	if err != nil {
		p.log.WithError(err).WithField("wallet", shortenAddress(wallet)).Warn("Leaderboard lookup failed")
	} else {
		gotAny = true
		if entry != nil {
			if rank, ok := entry.Rank.Int(); ok {
				e.Rank = &rank
			}
			if pnl, ok := entry.PnL.Float64(); ok {
				e.PnLUSD = &pnl
			}
			if vol, ok := entry.Volume.Float64(); ok {
				e.VolumeUSD = &vol
			}
		}
	}

	return e, gotAny
}

func (p *Processor) buildPayload(ev *rtds.TradeEvent, rollup *storage.WalletRollup) *alerts.AlertPayload {
	payload := &alerts.AlertPayload{
		WalletAddress:   ev.ProxyWallet,
		WalletShort:     shortenAddress(ev.ProxyWallet),
		MarketTitle:     ev.Title,
		MarketURL:       fmt.Sprintf("https://polymarket.com/event/%s", ev.EventSlug),
		Side:            ev.Side,
		Outcome:         ev.Outcome,
		Size:            ev.Size,
		Price:           ev.Price,
		ValueUSD:        ev.Value,
		TransactionHash: ev.TransactionHash,
		TxHashShort:     shortenHash(ev.TransactionHash),
		Timestamp:       ev.Timestamp,
		Environment:     p.cfg.Environment,
	}

	if rollup != nil {
		payload.APITradeCount = rollup.APITradeCount
		payload.LeaderboardRank = rollup.LeaderboardRank
		payload.LeaderboardPnLUSD = rollup.LeaderboardPnLUSD
		payload.LeaderboardVolumeUSD = rollup.LeaderboardVolumeUSD
		payload.WhaleTradeCount = int(rollup.PositionCount)
		payload.Wins = int(rollup.Wins)
		payload.Losses = int(rollup.Losses)
		payload.RealizedPnLUSD = rollup.RealizedPnLUSD
		payload.FirstSeenDate = time.Unix(rollup.FirstSeenTS, 0).UTC().Format("2006-01-02")
	}

	return payload
}

// Stats returns counters for the periodic summary log
func (p *Processor) Stats() (whales, alertsSent uint64) {
	return p.whalesSeen.Load(), p.alertsSent.Load()
}

func positionFromEvent(ev *rtds.TradeEvent) *storage.WhalePosition {
	return &storage.WhalePosition{
		TransactionHash: ev.TransactionHash,
		ConditionID:     ev.ConditionID,
		EventSlug:       ev.EventSlug,
		MarketTitle:     ev.Title,
		ProxyWallet:     ev.ProxyWallet,
		Side:            ev.Side,
		Outcome:         ev.Outcome,
		Size:            ev.Size,
		Price:           ev.Price,
		TradeValueUSD:   ev.Value,
		TradedAtTS:      ev.Timestamp.Unix(),
	}
}

func shortenAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func shortenHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:10] + "..." + hash[len(hash)-4:]
}

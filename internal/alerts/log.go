package alerts

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSender sends alerts to the logger
type LogSender struct {
	log *logrus.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the alert
func (s *LogSender) Send(ctx context.Context, payload *AlertPayload) error {
	fields := logrus.Fields{
		"wallet":       payload.WalletShort,
		"market":       payload.MarketTitle,
		"side":         payload.Side,
		"outcome":      payload.Outcome,
		"value_usd":    payload.ValueUSD,
		"price":        payload.Price,
		"whale_trades": payload.WhaleTradeCount,
		"tx_hash":      payload.TxHashShort,
	}
	if payload.APITradeCount != nil {
		fields["api_trade_count"] = *payload.APITradeCount
	}
	if payload.LeaderboardRank != nil {
		fields["leaderboard_rank"] = *payload.LeaderboardRank
	}
	s.log.WithFields(fields).Info("Whale trade detected")
	return nil
}

// Verify is a no-op for the log sender
func (s *LogSender) Verify(ctx context.Context) error {
	return nil
}

package rtds

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Envelope wraps every RTDS message with topic/type metadata. The payload
// is kept raw until the topic is known: non-trade messages (including the
// subscription acknowledgment sent right after connecting) carry payloads
// of other shapes or none at all.
type Envelope struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// TradePayload is the raw trade shape on the activity/trades topic. Size,
// price and timestamp arrive as number or numeric string depending on the
// producer, hence Number.
type TradePayload struct {
	ConditionID     string `json:"conditionId"`
	EventSlug       string `json:"eventSlug"`
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	Side            string `json:"side"`
	Outcome         string `json:"outcome"`
	Size            Number `json:"size"`
	Price           Number `json:"price"`
	ProxyWallet     string `json:"proxyWallet"`
	Timestamp       Number `json:"timestamp"`
	TransactionHash string `json:"transactionHash"`
}

// TradeEvent is one normalized trade from the feed.
type TradeEvent struct {
	ConditionID     string
	EventSlug       string
	Slug            string
	Title           string
	Side            string // BUY or SELL
	Outcome         string
	Size            float64
	Price           float64
	Value           float64 // size * price, USD
	ProxyWallet     string
	Timestamp       time.Time
	TransactionHash string
}

// Number accepts a JSON number or a numeric string.
type Number struct {
	value float64
	set   bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return &RejectError{Reason: RejectBadNumber, Detail: fmt.Sprintf("numeric string %q", s)}
		}
		n.value = f
		n.set = true
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return &RejectError{Reason: RejectBadNumber, Detail: string(data)}
	}
	n.value = f
	n.set = true
	return nil
}

// Float64 returns the parsed value and whether one was present.
func (n Number) Float64() (float64, bool) {
	return n.value, n.set
}

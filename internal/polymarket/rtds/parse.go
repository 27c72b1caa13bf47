package rtds

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Rejection reasons reported for malformed payloads. Every dropped payload
// is attributed to exactly one of these so the malformed counter stays
// accurate.
const (
	RejectNotJSON      = "not_json"
	RejectMissingField = "missing_field"
	RejectBadNumber    = "bad_number"
	RejectBadSide      = "bad_side"
	RejectBadPrice     = "bad_price"
	RejectBadSize      = "bad_size"
)

// RejectError is the tagged outcome for a payload that could not be
// normalized into a TradeEvent.
type RejectError struct {
	Reason string
	Detail string
}

func (e *RejectError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

func reject(reason, format string, args ...interface{}) error {
	return &RejectError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ParseTradeEvents normalizes the payload of an activity/trades envelope.
// The payload may be a single trade object or an array of them. Trades are
// decoded element-wise so one bad trade in an array does not reject its
// siblings, and each rejection carries its own reason: a non-numeric
// size or price is attributed to bad_number, not to the payload's JSON.
func ParseTradeEvents(payload json.RawMessage) ([]TradeEvent, []*RejectError) {
	var raws []json.RawMessage
	if err := json.Unmarshal(payload, &raws); err != nil {
		raws = []json.RawMessage{payload}
	}

	var events []TradeEvent
	var rejects []*RejectError
	for _, raw := range raws {
		var trade TradePayload
		if err := json.Unmarshal(raw, &trade); err != nil {
			rejects = append(rejects, toReject(err))
			continue
		}

		ev, err := normalize(&trade)
		if err != nil {
			rejects = append(rejects, toReject(err))
			continue
		}
		events = append(events, ev)
	}
	return events, rejects
}

// toReject tags an arbitrary decode error. Number parse failures surface
// as *RejectError already; everything else is malformed JSON.
func toReject(err error) *RejectError {
	var rej *RejectError
	if errors.As(err, &rej) {
		return rej
	}
	return &RejectError{Reason: RejectNotJSON, Detail: err.Error()}
}

// normalize validates one raw trade and computes its value. Pure: no
// logging, no side effects.
func normalize(raw *TradePayload) (TradeEvent, error) {
	var ev TradeEvent

	switch {
	case raw.ProxyWallet == "":
		return ev, reject(RejectMissingField, "proxyWallet")
	case raw.ConditionID == "":
		return ev, reject(RejectMissingField, "conditionId")
	case raw.Outcome == "":
		return ev, reject(RejectMissingField, "outcome")
	case raw.Side == "":
		return ev, reject(RejectMissingField, "side")
	}

	if raw.Side != "BUY" && raw.Side != "SELL" {
		return ev, reject(RejectBadSide, "%q", raw.Side)
	}

	size, ok := raw.Size.Float64()
	if !ok {
		return ev, reject(RejectMissingField, "size")
	}
	if size < 0 {
		return ev, reject(RejectBadSize, "%v", size)
	}

	price, ok := raw.Price.Float64()
	if !ok {
		return ev, reject(RejectMissingField, "price")
	}
	if price < 0 || price > 1 {
		return ev, reject(RejectBadPrice, "%v", price)
	}

	ev = TradeEvent{
		ConditionID:     raw.ConditionID,
		EventSlug:       raw.EventSlug,
		Slug:            raw.Slug,
		Title:           raw.Title,
		Side:            raw.Side,
		Outcome:         raw.Outcome,
		Size:            size,
		Price:           price,
		Value:           size * price,
		ProxyWallet:     raw.ProxyWallet,
		Timestamp:       parseTimestamp(raw.Timestamp),
		TransactionHash: raw.TransactionHash,
	}
	return ev, nil
}

// parseTimestamp accepts Unix seconds or milliseconds; absent timestamps
// fall back to arrival time.
func parseTimestamp(n Number) time.Time {
	ts, ok := n.Float64()
	if !ok || ts <= 0 {
		return time.Now()
	}
	if ts > 1e12 { // milliseconds
		ts = ts / 1000
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

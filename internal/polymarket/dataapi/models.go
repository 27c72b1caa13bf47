package dataapi

import (
	"encoding/json"
	"strconv"
)

// LeaderboardEntry is one row from the leaderboard endpoint. Numeric
// fields arrive as number or numeric string depending on the API version.
type LeaderboardEntry struct {
	ProxyWallet string    `json:"proxyWallet"`
	Rank        apiNumber `json:"rank"`
	PnL         apiNumber `json:"pnl"`
	Volume      apiNumber `json:"vol"`
}

// apiNumber accepts a JSON number or a numeric string.
type apiNumber struct {
	value float64
	set   bool
}

func (n *apiNumber) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil // unparseable value stays unknown
		}
		n.value = f
		n.set = true
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	n.value = f
	n.set = true
	return nil
}

// Float64 returns the parsed value and whether one was present.
func (n apiNumber) Float64() (float64, bool) {
	return n.value, n.set
}

// Int returns the parsed value truncated to int and whether one was present.
func (n apiNumber) Int() (int, bool) {
	if !n.set {
		return 0, false
	}
	return int(n.value), true
}

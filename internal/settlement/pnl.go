package settlement

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Settle computes the outcome of a single position once its market has
// resolved. A BUY wins when the bet outcome is the resolved outcome; a
// SELL wins when it is not.
//
// Winning buys collect the complement of the entry price per share, and
// winning sells keep the premium. Losses mirror those amounts. The result
// is rounded to whole cents.
func Settle(side, betOutcome, resolvedOutcome string, size, price float64) (won bool, pnlUSD float64) {
	isBuy := strings.EqualFold(side, "BUY")
	hit := strings.EqualFold(betOutcome, resolvedOutcome)

	won = isBuy == hit

	sz := decimal.NewFromFloat(size)
	pr := decimal.NewFromFloat(price)
	complement := decimal.NewFromInt(1).Sub(pr)

	var pnl decimal.Decimal
	switch {
	case won && isBuy:
		pnl = sz.Mul(complement)
	case won && !isBuy:
		pnl = sz.Mul(pr)
	case !won && isBuy:
		pnl = sz.Mul(pr).Neg()
	default:
		pnl = sz.Mul(complement).Neg()
	}

	f, _ := pnl.Round(2).Float64()
	return won, f
}

package settlement

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/polywhale/whalescan/internal/polymarket/gammaapi"
)

// Resolution state for a single market check
type ResolutionState string

const (
	StateResolved    ResolutionState = "resolved"
	StateNotResolved ResolutionState = "not_resolved"
	StateAmbiguous   ResolutionState = "ambiguous"
	StateNotBinary   ResolutionState = "not_binary"
)

// winnerPrice is the price an outcome must trade at for the market to
// count as settled when no explicit resolution field is present.
const winnerPrice = 0.99

// tieEpsilon bounds how close the top two prices may sit before the
// heuristic refuses to pick a winner.
const tieEpsilon = 0.005

// Resolution is the result of inspecting a market for settlement
type Resolution struct {
	State   ResolutionState
	Outcome string // Winning outcome, set only when State is StateResolved
}

// ExtractResolution determines whether a market has resolved and which
// outcome won. Explicit resolution fields are trusted first; otherwise a
// closed market whose prices have collapsed to a clear winner counts too.
func ExtractResolution(m *gammaapi.Market) Resolution {
	if !m.Closed && !m.Resolved {
		return Resolution{State: StateNotResolved}
	}

	// Explicit outcome fields win over any price heuristic
	if outcome := strings.TrimSpace(m.ResolvedOutcome); outcome != "" {
		return Resolution{State: StateResolved, Outcome: outcome}
	}
	if outcome := strings.TrimSpace(m.Outcome); outcome != "" {
		return Resolution{State: StateResolved, Outcome: outcome}
	}

	return resolveFromPrices(m.Outcomes, m.OutcomePrices)
}

// resolveFromPrices applies the price-collapse heuristic: a closed binary
// market whose winning outcome trades at winnerPrice or above.
func resolveFromPrices(outcomesJSON, pricesJSON string) Resolution {
	outcomes, ok := parseStringArray(outcomesJSON)
	if !ok {
		return Resolution{State: StateNotResolved}
	}
	priceStrs, ok := parseStringArray(pricesJSON)
	if !ok {
		return Resolution{State: StateNotResolved}
	}

	if len(outcomes) != 2 || len(priceStrs) != 2 {
		return Resolution{State: StateNotBinary}
	}

	prices := make([]float64, 2)
	for i, ps := range priceStrs {
		p, err := strconv.ParseFloat(ps, 64)
		if err != nil {
			return Resolution{State: StateNotResolved}
		}
		prices[i] = p
	}

	top, second := 0, 1
	if prices[second] > prices[top] {
		top, second = second, top
	}

	if prices[top] < winnerPrice {
		return Resolution{State: StateNotResolved}
	}

	// Both outcomes near the threshold means the data is inconsistent;
	// leave the market pending rather than guess.
	if prices[top]-prices[second] < tieEpsilon {
		return Resolution{State: StateAmbiguous}
	}

	return Resolution{State: StateResolved, Outcome: outcomes[top]}
}

func parseStringArray(s string) ([]string, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, false
	}
	return out, true
}

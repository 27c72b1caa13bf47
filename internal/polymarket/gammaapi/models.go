package gammaapi

// Market represents a Gamma API market. Outcomes and OutcomePrices are
// JSON-encoded string arrays (e.g. `["Yes","No"]`, `["0.99","0.01"]`).
type Market struct {
	ID              string `json:"id"`
	ConditionID     string `json:"conditionId"`
	Slug            string `json:"slug"`
	Question        string `json:"question"`
	EndDate         string `json:"endDate"`
	Active          bool   `json:"active"`
	Closed          bool   `json:"closed"`
	Resolved        bool   `json:"resolved"`
	Outcome         string `json:"outcome"`
	ResolvedOutcome string `json:"resolvedOutcome"`
	Outcomes        string `json:"outcomes"`
	OutcomePrices   string `json:"outcomePrices"`
}

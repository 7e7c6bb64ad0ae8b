package api

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type LedgerKeys struct {
	Key   string   `json:"ledger_key,omitempty"`
	Count int      `json:"count"`
	Keys  []string `json:"keys"`
}

type TimePeriod struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Duration int       `json:"duration_days"`
}

type CostPoint struct {
	Date          time.Time `json:"date"`
	Service       string    `json:"service"`
	Region        string    `json:"region"`
	AmortizedCost float64   `json:"amortized_cost"`
	BlendedCost   float64   `json:"blended_cost"`
	UnblendedCost float64   `json:"unblended_cost"`
	UsageQuantity float64   `json:"usage_quantity"`
}

type CostReport struct {
	Period      TimePeriod  `json:"period"`
	TotalAmount float64     `json:"total_amortized_cost"`
	Points      []CostPoint `json:"points"`
}

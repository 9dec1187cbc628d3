package core

import "github.com/shopspring/decimal"

// KPIs is the dashboard summary over current base balances.
type KPIs struct {
	TotalCash       decimal.Decimal `json:"totalCash"`
	TotalCreditDebt decimal.Decimal `json:"totalCreditDebt"`
	NetWorth        decimal.Decimal `json:"netWorth"`
}

// BaseDelta is a balance change applied to one base.
type BaseDelta struct {
	BaseID string          `json:"baseId"`
	Delta  decimal.Decimal `json:"delta"`
}

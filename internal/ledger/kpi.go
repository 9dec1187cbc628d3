package ledger

import (
	"github.com/shopspring/decimal"

	"budgetblocks/internal/core"
)

// ComputeKPIs derives the dashboard totals from base balances. Credit
// balances are stored negative when owed.
func ComputeKPIs(bases []core.Base) core.KPIs {
	cash, credit, net := decimal.Zero, decimal.Zero, decimal.Zero
	for _, b := range bases {
		net = net.Add(b.Balance)
		switch {
		case b.Type.IsCash():
			cash = cash.Add(b.Balance)
		case b.Type == core.Credit:
			credit = credit.Add(b.Balance)
		}
	}
	return core.KPIs{TotalCash: cash, TotalCreditDebt: credit.Abs(), NetWorth: net}
}

// KPIs computes the totals for the current state.
func (st *State) KPIs() core.KPIs {
	return ComputeKPIs(st.bases)
}

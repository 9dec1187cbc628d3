package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"budgetblocks/internal/core"
	"budgetblocks/internal/ledger"
)

var kpisCmd = &cobra.Command{
	Use:   "kpis",
	Short: "Display total cash, credit debt and net worth",
	Args:  cobra.NoArgs,
	Run:   runKPIs,
}

func runKPIs(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	store, _, closeDB := openLedger(ctx)
	defer closeDB()

	var (
		kpis  core.KPIs
		bases int
	)
	version := store.View(func(st *ledger.State) {
		kpis = st.KPIs()
		bases = len(st.Bases())
	})

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n=== Budget Blocks ===")
	fmt.Fprintf(out, "Bases:             %d\n", bases)
	fmt.Fprintf(out, "Total cash:        %s\n", kpis.TotalCash.StringFixed(2))
	fmt.Fprintf(out, "Total credit debt: %s\n", kpis.TotalCreditDebt.StringFixed(2))
	fmt.Fprintf(out, "Net worth:         %s\n", kpis.NetWorth.StringFixed(2))
	fmt.Fprintf(out, "State version:     %d\n", version)
}

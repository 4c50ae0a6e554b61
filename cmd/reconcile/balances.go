package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"charter-reconciliation/internal/repositories"
	"charter-reconciliation/internal/services"
)

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Verify stored charter balances against derived values",
	Long: `Compares each charter's stored balance column against the derived
value (total due minus payments joined on reserve number). The derived
value is authoritative whenever the two diverge by more than $0.01.`,
	RunE: runBalances,
}

func init() {
	rootCmd.AddCommand(balancesCmd)
}

func runBalances(cmd *cobra.Command, args []string) error {
	_, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := services.NewBalanceService(repositories.NewCharterRepository(db))
	discrepancies, err := svc.VerifyBalances()
	if err != nil {
		return err
	}

	if len(discrepancies) == 0 {
		fmt.Println("All stored balances agree with the derived values.")
		return nil
	}

	fmt.Printf("%d charter(s) with divergent balances (derived value wins):\n", len(discrepancies))
	for _, d := range discrepancies {
		fmt.Printf("  %-12s stored %10s  derived %10s  diff %10s\n",
			d.ReserveNumber,
			d.StoredBalance.StringFixed(2),
			d.DerivedBalance.StringFixed(2),
			d.Difference.StringFixed(2),
		)
	}

	return nil
}

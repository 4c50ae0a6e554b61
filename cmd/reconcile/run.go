package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"charter-reconciliation/internal/repositories"
	"charter-reconciliation/internal/services"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a reconciliation pass over a period",
	Example: `  # Standard window
  reconcile run --from 2012-01-01 --to 2012-12-31

  # Historical data with gaps needs a wider window
  reconcile run --from 2012-01-01 --to 2012-12-31 --tolerance-days 60 --tolerance-amount 1.00

  # Export the report
  reconcile run --from 2012-01-01 --to 2012-12-31 --csv report.csv`,
	RunE: runReconciliation,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("from", "", "Period start (YYYY-MM-DD)")
	runCmd.Flags().String("to", "", "Period end (YYYY-MM-DD)")
	runCmd.Flags().Int("tolerance-days", 0, "Date tolerance in days (default from config)")
	runCmd.Flags().String("tolerance-amount", "", "Amount tolerance in dollars (default from config)")
	runCmd.Flags().String("csv", "", "Write the report to this CSV file")
	runCmd.MarkFlagRequired("from")
	runCmd.MarkFlagRequired("to")
}

func runReconciliation(cmd *cobra.Command, args []string) error {
	fromDate, toDate, err := parsePeriodFlags(cmd)
	if err != nil {
		return err
	}

	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	tol := cfg.Tolerance()
	if days, _ := cmd.Flags().GetInt("tolerance-days"); days > 0 {
		tol.Days = days
	}
	if amtStr, _ := cmd.Flags().GetString("tolerance-amount"); amtStr != "" {
		amt, err := decimal.NewFromString(amtStr)
		if err != nil || !amt.IsPositive() {
			return fmt.Errorf("tolerance-amount must be a positive decimal")
		}
		tol.Amount = amt
	}

	bankRepo := repositories.NewBankRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)
	reconciliationRepo := repositories.NewReconciliationRepository(db)
	svc := services.NewReconciliationService(db, bankRepo, paymentRepo, reconciliationRepo)

	result, err := svc.Run(fromDate, toDate, tol)
	if err != nil {
		return err
	}

	fmt.Printf("Batch %s (%s)\n", result.BatchID, result.Status)
	fmt.Printf("  matched:            %d ($%s)\n", result.Report.Totals.MatchedCount, result.Report.Totals.MatchedAmount.StringFixed(2))
	fmt.Printf("  unmatched bank:     %d ($%s)\n", result.Report.Totals.UnmatchedBankCount, result.Report.Totals.UnmatchedBankAmount.StringFixed(2))
	fmt.Printf("  unmatched payments: %d ($%s)\n", result.Report.Totals.UnmatchedPaymentCount, result.Report.Totals.UnmatchedPaymentAmount.StringFixed(2))
	if result.Report.Warning {
		fmt.Printf("  warning: %s\n", result.Report.WarningReason)
	}

	if csvPath, _ := cmd.Flags().GetString("csv"); csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("create csv: %w", err)
		}
		defer f.Close()
		if err := result.Report.WriteCSV(f); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		fmt.Printf("Report written to %s\n", csvPath)
	}

	return nil
}

func parsePeriodFlags(cmd *cobra.Command) (time.Time, time.Time, error) {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")

	fromDate, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --from date, use YYYY-MM-DD: %w", err)
	}
	toDate, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --to date, use YYYY-MM-DD: %w", err)
	}
	if toDate.Before(fromDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to must not precede --from")
	}
	return fromDate, toDate, nil
}

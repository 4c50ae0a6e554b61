package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"charter-reconciliation/internal/database"
	"charter-reconciliation/internal/logger"
	"charter-reconciliation/internal/matching"
	"charter-reconciliation/internal/models"
	"charter-reconciliation/internal/report"
	"charter-reconciliation/internal/repositories"
)

// ReconciliationService runs reconciliation passes over a period snapshot
// and persists the result. Each pass is one all-or-nothing batch: the run
// row, its matches and the audit entry commit together or not at all.
type ReconciliationService struct {
	db                 *sql.DB
	bankRepo           repositories.BankRepository
	paymentRepo        repositories.PaymentRepository
	reconciliationRepo repositories.ReconciliationRepository
	log                zerolog.Logger
}

func NewReconciliationService(
	db *sql.DB,
	bankRepo repositories.BankRepository,
	paymentRepo repositories.PaymentRepository,
	reconciliationRepo repositories.ReconciliationRepository,
) *ReconciliationService {
	return &ReconciliationService{
		db:                 db,
		bankRepo:           bankRepo,
		paymentRepo:        paymentRepo,
		reconciliationRepo: reconciliationRepo,
		log:                logger.WithComponent("reconciliation"),
	}
}

// RunResult pairs the persisted batch id with the computed report.
type RunResult struct {
	BatchID string         `json:"batch_id"`
	Status  string         `json:"status"`
	Report  *report.Report `json:"report"`
}

// Run executes one reconciliation pass over [fromDate, toDate]. Ambiguity
// and missing matches are data and land in the report partitions; only
// infrastructure failures return an error, wrapped with the batch id so the
// operator can retry after inspecting the cause.
func (s *ReconciliationService) Run(fromDate, toDate time.Time, tol matching.Tolerance) (*RunResult, error) {
	batchID := fmt.Sprintf("REC-%s-%s", time.Now().Format("20060102"), uuid.NewString()[:8])

	banks, err := s.bankRepo.ListByDateRange(fromDate, toDate)
	if err != nil {
		return nil, errors.Wrapf(err, "batch %s: load bank transactions", batchID)
	}
	payments, err := s.paymentRepo.ListByDateRange(fromDate, toDate)
	if err != nil {
		return nil, errors.Wrapf(err, "batch %s: load payments", batchID)
	}

	rep := report.Build(fromDate, toDate, banks, payments, tol)
	if rep.Warning {
		s.log.Warn().Str("batch_id", batchID).Str("reason", rep.WarningReason).Msg("reconciliation ran over an empty period")
	}

	run := &models.ReconciliationRun{
		BatchID:               batchID,
		FromDate:              fromDate,
		ToDate:                toDate,
		Status:                rep.Status(),
		Warning:               rep.Warning,
		MatchedCount:          rep.Totals.MatchedCount,
		UnmatchedBankCount:    rep.Totals.UnmatchedBankCount,
		UnmatchedPaymentCount: rep.Totals.UnmatchedPaymentCount,
	}

	err = database.WithTx(s.db, func(tx *sql.Tx) error {
		if err := s.reconciliationRepo.CreateRun(tx, run); err != nil {
			return err
		}
		for _, m := range rep.Matched {
			match := &models.ReconciliationMatch{
				RunID:              run.ID,
				BankTransactionID:  m.Bank.ID,
				PaymentID:          m.Payment.ID,
				Confidence:         m.Confidence,
				AmountDifference:   m.AmountDifference,
				DateDifferenceDays: m.DateDifferenceDays,
			}
			if err := s.reconciliationRepo.CreateMatch(tx, match); err != nil {
				return err
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"tolerance_days":    tol.Days,
			"tolerance_amount":  tol.Amount,
			"matched":           rep.Totals.MatchedCount,
			"unmatched_bank":    rep.Totals.UnmatchedBankCount,
			"unmatched_payment": rep.Totals.UnmatchedPaymentCount,
			"needs_review":      countAmbiguous(rep),
			"warning":           rep.Warning,
		})
		audit := &models.ReconciliationAudit{
			RunID:   sql.NullInt64{Int64: run.ID, Valid: true},
			Action:  models.AuditActionReconciled,
			Details: details,
		}
		return s.reconciliationRepo.CreateAuditEntry(tx, audit)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "batch %s", batchID)
	}

	s.log.Info().
		Str("batch_id", batchID).
		Int("matched", rep.Totals.MatchedCount).
		Int("unmatched_bank", rep.Totals.UnmatchedBankCount).
		Int("unmatched_payment", rep.Totals.UnmatchedPaymentCount).
		Msg("reconciliation pass committed")

	return &RunResult{BatchID: batchID, Status: run.Status, Report: rep}, nil
}

// GetRun returns the persisted run for a batch id.
func (s *ReconciliationService) GetRun(batchID string) (*models.ReconciliationRun, error) {
	return s.reconciliationRepo.GetRunByBatchID(batchID)
}

// BuildRunReport recomputes the full report for a persisted run's period and
// tolerance-agnostic partitions; used for CSV export of an earlier batch.
func (s *ReconciliationService) BuildRunReport(batchID string, tol matching.Tolerance) (*report.Report, error) {
	run, err := s.reconciliationRepo.GetRunByBatchID(batchID)
	if err != nil {
		return nil, err
	}
	banks, err := s.bankRepo.ListByDateRange(run.FromDate, run.ToDate)
	if err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.ListByDateRange(run.FromDate, run.ToDate)
	if err != nil {
		return nil, err
	}
	return report.Build(run.FromDate, run.ToDate, banks, payments, tol), nil
}

// UnmatchedRecords lists deposits and payments in a period that no committed
// run has matched.
type UnmatchedRecords struct {
	BankTransactions []*models.BankTransaction `json:"unmatched_bank_transactions"`
	Payments         []*models.Payment         `json:"unmatched_payments"`
}

func (s *ReconciliationService) GetUnmatchedRecords(fromDate, toDate time.Time) (*UnmatchedRecords, error) {
	banks, err := s.bankRepo.ListUnreconciledDeposits(fromDate, toDate)
	if err != nil {
		return nil, err
	}
	payments, err := s.reconciliationRepo.ListUnreconciledPayments(fromDate, toDate)
	if err != nil {
		return nil, err
	}
	return &UnmatchedRecords{BankTransactions: banks, Payments: payments}, nil
}

func countAmbiguous(rep *report.Report) int {
	n := 0
	for _, u := range rep.UnmatchedBank {
		if u.Reason == models.ReasonAmbiguous {
			n++
		}
	}
	return n
}

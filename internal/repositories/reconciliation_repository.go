package repositories

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"charter-reconciliation/internal/models"
)

type ReconciliationRepository interface {
	CreateRun(tx *sql.Tx, run *models.ReconciliationRun) error
	GetRunByBatchID(batchID string) (*models.ReconciliationRun, error)
	CreateMatch(tx *sql.Tx, m *models.ReconciliationMatch) error
	ListMatchesByRunID(runID int64) ([]*models.ReconciliationMatch, error)
	CreateAuditEntry(tx *sql.Tx, audit *models.ReconciliationAudit) error
	ListUnreconciledPayments(fromDate, toDate time.Time) ([]*models.Payment, error)
}

type reconciliationRepository struct {
	db *sql.DB
}

func NewReconciliationRepository(db *sql.DB) ReconciliationRepository {
	return &reconciliationRepository{db: db}
}

func (r *reconciliationRepository) CreateRun(tx *sql.Tx, run *models.ReconciliationRun) error {
	query := `
		INSERT INTO reconciliation_runs (
			batch_id, from_date, to_date, status, warning,
			matched_count, unmatched_bank_count, unmatched_payment_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := tx.QueryRow(query,
		run.BatchID,
		run.FromDate,
		run.ToDate,
		run.Status,
		run.Warning,
		run.MatchedCount,
		run.UnmatchedBankCount,
		run.UnmatchedPaymentCount,
	).Scan(&run.ID)
	if err != nil {
		return errors.Wrap(err, "insert reconciliation run")
	}
	return nil
}

func (r *reconciliationRepository) GetRunByBatchID(batchID string) (*models.ReconciliationRun, error) {
	run := &models.ReconciliationRun{}
	query := `
		SELECT id, batch_id, from_date, to_date, status, warning,
		       matched_count, unmatched_bank_count, unmatched_payment_count,
		       created_at, updated_at
		FROM reconciliation_runs
		WHERE batch_id = $1
	`
	err := r.db.QueryRow(query, batchID).Scan(
		&run.ID,
		&run.BatchID,
		&run.FromDate,
		&run.ToDate,
		&run.Status,
		&run.Warning,
		&run.MatchedCount,
		&run.UnmatchedBankCount,
		&run.UnmatchedPaymentCount,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (r *reconciliationRepository) CreateMatch(tx *sql.Tx, m *models.ReconciliationMatch) error {
	query := `
		INSERT INTO reconciliation_matches (
			run_id, bank_transaction_id, payment_id, confidence,
			amount_difference, date_difference_days
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := tx.QueryRow(query,
		m.RunID,
		m.BankTransactionID,
		m.PaymentID,
		m.Confidence,
		m.AmountDifference,
		m.DateDifferenceDays,
	).Scan(&m.ID)
	if err != nil {
		return errors.Wrap(err, "insert reconciliation match")
	}
	return nil
}

func (r *reconciliationRepository) ListMatchesByRunID(runID int64) ([]*models.ReconciliationMatch, error) {
	query := `
		SELECT id, run_id, bank_transaction_id, payment_id, confidence,
		       amount_difference, date_difference_days, created_at
		FROM reconciliation_matches
		WHERE run_id = $1
		ORDER BY id
	`
	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*models.ReconciliationMatch
	for rows.Next() {
		m := &models.ReconciliationMatch{}
		err := rows.Scan(
			&m.ID,
			&m.RunID,
			&m.BankTransactionID,
			&m.PaymentID,
			&m.Confidence,
			&m.AmountDifference,
			&m.DateDifferenceDays,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *reconciliationRepository) CreateAuditEntry(tx *sql.Tx, audit *models.ReconciliationAudit) error {
	query := `
		INSERT INTO reconciliation_audit (run_id, action, details)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := tx.QueryRow(query,
		audit.RunID,
		audit.Action,
		audit.Details,
	).Scan(&audit.ID)
	if err != nil {
		return errors.Wrap(err, "insert audit entry")
	}
	return nil
}

// ListUnreconciledPayments returns payments in the period that no committed
// reconciliation run has matched to a deposit.
func (r *reconciliationRepository) ListUnreconciledPayments(fromDate, toDate time.Time) ([]*models.Payment, error) {
	query := `
		SELECT p.id, p.reserve_number, p.amount, p.payment_date, p.payment_method, p.created_at
		FROM payments p
		LEFT JOIN reconciliation_matches rm ON p.id = rm.payment_id
		WHERE rm.id IS NULL
		AND p.payment_date BETWEEN $1 AND $2
		ORDER BY p.payment_date, p.id
	`
	rows, err := r.db.Query(query, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p := &models.Payment{}
		err := rows.Scan(
			&p.ID,
			&p.ReserveNumber,
			&p.Amount,
			&p.PaymentDate,
			&p.PaymentMethod,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

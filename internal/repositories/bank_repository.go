package repositories

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"charter-reconciliation/internal/models"
)

var ErrNotFound = errors.New("record not found")

type BankRepository interface {
	InsertBankTransaction(tx *sql.Tx, bt *models.BankTransaction) error
	GetBankTransactionByID(id int64) (*models.BankTransaction, error)
	ListByDateRange(fromDate, toDate time.Time) ([]*models.BankTransaction, error)
	ListUnreconciledDeposits(fromDate, toDate time.Time) ([]*models.BankTransaction, error)
}

type bankRepository struct {
	db *sql.DB
}

func NewBankRepository(db *sql.DB) BankRepository {
	return &bankRepository{db: db}
}

func (r *bankRepository) InsertBankTransaction(tx *sql.Tx, bt *models.BankTransaction) error {
	query := `
		INSERT INTO bank_transactions (
			transaction_date, credit_amount, debit_amount, description
		) VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := tx.QueryRow(query,
		bt.TransactionDate,
		bt.CreditAmount,
		bt.DebitAmount,
		bt.Description,
	).Scan(&bt.ID)
	if err != nil {
		return errors.Wrap(err, "insert bank transaction")
	}
	return nil
}

func (r *bankRepository) GetBankTransactionByID(id int64) (*models.BankTransaction, error) {
	bt := &models.BankTransaction{}
	query := `
		SELECT id, transaction_date, credit_amount, debit_amount, description, created_at
		FROM bank_transactions
		WHERE id = $1
	`
	err := r.db.QueryRow(query, id).Scan(
		&bt.ID,
		&bt.TransactionDate,
		&bt.CreditAmount,
		&bt.DebitAmount,
		&bt.Description,
		&bt.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return bt, nil
}

func (r *bankRepository) ListByDateRange(fromDate, toDate time.Time) ([]*models.BankTransaction, error) {
	query := `
		SELECT id, transaction_date, credit_amount, debit_amount, description, created_at
		FROM bank_transactions
		WHERE transaction_date BETWEEN $1 AND $2
		ORDER BY transaction_date, id
	`
	return r.queryTransactions(query, fromDate, toDate)
}

// ListUnreconciledDeposits returns deposits in the period that no committed
// reconciliation run has matched yet.
func (r *bankRepository) ListUnreconciledDeposits(fromDate, toDate time.Time) ([]*models.BankTransaction, error) {
	query := `
		SELECT bt.id, bt.transaction_date, bt.credit_amount, bt.debit_amount, bt.description, bt.created_at
		FROM bank_transactions bt
		LEFT JOIN reconciliation_matches rm ON bt.id = rm.bank_transaction_id
		WHERE rm.id IS NULL
		AND bt.credit_amount IS NOT NULL
		AND bt.transaction_date BETWEEN $1 AND $2
		ORDER BY bt.transaction_date, bt.id
	`
	return r.queryTransactions(query, fromDate, toDate)
}

func (r *bankRepository) queryTransactions(query string, args ...interface{}) ([]*models.BankTransaction, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*models.BankTransaction
	for rows.Next() {
		bt := &models.BankTransaction{}
		err := rows.Scan(
			&bt.ID,
			&bt.TransactionDate,
			&bt.CreditAmount,
			&bt.DebitAmount,
			&bt.Description,
			&bt.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, bt)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

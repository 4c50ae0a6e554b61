package repositories

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"charter-reconciliation/internal/models"
	"charter-reconciliation/internal/splits"
)

type ReceiptRepository interface {
	InsertReceipt(tx *sql.Tx, rc *models.Receipt) error
	ListByDateRange(fromDate, toDate time.Time) ([]*models.Receipt, error)
	ApplySplitUpdate(tx *sql.Tx, u splits.ReceiptUpdate) error
}

type receiptRepository struct {
	db *sql.DB
}

func NewReceiptRepository(db *sql.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) InsertReceipt(tx *sql.Tx, rc *models.Receipt) error {
	query := `
		INSERT INTO receipts (
			vendor_name, receipt_date, gross_amount, gst_amount,
			description, split_group_id, banking_transaction_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := tx.QueryRow(query,
		rc.VendorName,
		rc.ReceiptDate,
		rc.GrossAmount,
		rc.GSTAmount,
		rc.Description,
		rc.SplitGroupID,
		rc.BankingTransactionID,
	).Scan(&rc.ID)
	if err != nil {
		return errors.Wrap(err, "insert receipt")
	}
	return nil
}

func (r *receiptRepository) ListByDateRange(fromDate, toDate time.Time) ([]*models.Receipt, error) {
	query := `
		SELECT id, vendor_name, receipt_date, gross_amount, gst_amount,
		       description, split_group_id, banking_transaction_id, created_at
		FROM receipts
		WHERE receipt_date BETWEEN $1 AND $2
		ORDER BY receipt_date, id
	`
	rows, err := r.db.Query(query, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		rc := &models.Receipt{}
		err := rows.Scan(
			&rc.ID,
			&rc.VendorName,
			&rc.ReceiptDate,
			&rc.GrossAmount,
			&rc.GSTAmount,
			&rc.Description,
			&rc.SplitGroupID,
			&rc.BankingTransactionID,
			&rc.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, rc)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return receipts, nil
}

// ApplySplitUpdate writes one planned receipt mutation from a split
// resolution: the group assignment and where the banking link lives.
func (r *receiptRepository) ApplySplitUpdate(tx *sql.Tx, u splits.ReceiptUpdate) error {
	query := `
		UPDATE receipts
		SET split_group_id = $1,
		    banking_transaction_id = $2
		WHERE id = $3
	`
	result, err := tx.Exec(query, u.SplitGroupID, u.BankingTransactionID, u.ReceiptID)
	if err != nil {
		return errors.Wrapf(err, "update receipt %d", u.ReceiptID)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "receipt %d", u.ReceiptID)
	}
	return nil
}

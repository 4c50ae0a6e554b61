package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction represents one line of an imported bank statement.
// Rows are append-only; corrections are new dated rows, never overwrites.
type BankTransaction struct {
	ID              int64               `db:"id" json:"id"`
	TransactionDate time.Time           `db:"transaction_date" json:"transaction_date"`
	CreditAmount    decimal.NullDecimal `db:"credit_amount" json:"credit_amount"`
	DebitAmount     decimal.NullDecimal `db:"debit_amount" json:"debit_amount"`
	Description     string              `db:"description" json:"description"`
	CreatedAt       time.Time           `db:"created_at" json:"-"`
}

// IsDeposit reports whether the transaction is a credit (money in).
func (bt *BankTransaction) IsDeposit() bool {
	return bt.CreditAmount.Valid && bt.CreditAmount.Decimal.IsPositive()
}

// Payment is a recorded customer payment. The reserve number is the only
// valid join key to a charter; charter_id on the source rows may be null and
// is never carried here. Reversals are new negative-amount rows, so payments
// are never edited or deleted in place.
type Payment struct {
	ID            int64           `db:"id" json:"id"`
	ReserveNumber string          `db:"reserve_number" json:"reserve_number"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PaymentDate   time.Time       `db:"payment_date" json:"payment_date"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	CreatedAt     time.Time       `db:"created_at" json:"-"`
}

// Receipt is a recorded business expense. Receipts belonging to one physical
// multi-tender purchase share a split_group_id; exactly one member of a group
// carries the banking_transaction_id link.
type Receipt struct {
	ID                   int64           `db:"id" json:"id"`
	VendorName           string          `db:"vendor_name" json:"vendor_name"`
	ReceiptDate          time.Time       `db:"receipt_date" json:"receipt_date"`
	GrossAmount          decimal.Decimal `db:"gross_amount" json:"gross_amount"`
	GSTAmount            decimal.Decimal `db:"gst_amount" json:"gst_amount"`
	Description          string          `db:"description" json:"description"`
	SplitGroupID         sql.NullInt64   `db:"split_group_id" json:"split_group_id"`
	BankingTransactionID sql.NullInt64   `db:"banking_transaction_id" json:"banking_transaction_id"`
	CreatedAt            time.Time       `db:"created_at" json:"-"`
}

// Charter is a booking. The stored balance column is advisory only; the
// derived value wins whenever the two diverge by more than a cent.
type Charter struct {
	ID             int64           `db:"id" json:"id"`
	ReserveNumber  string          `db:"reserve_number" json:"reserve_number"`
	TotalAmountDue decimal.Decimal `db:"total_amount_due" json:"total_amount_due"`
	Status         string          `db:"status" json:"status"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt      time.Time       `db:"created_at" json:"-"`
}

// DerivedBalance computes the authoritative charter balance:
// total_amount_due minus every payment recorded under the same reserve
// number. Payments against other reserve numbers are ignored.
func DerivedBalance(c *Charter, payments []*Payment) decimal.Decimal {
	paid := decimal.Zero
	for _, p := range payments {
		if p.ReserveNumber == c.ReserveNumber {
			paid = paid.Add(p.Amount)
		}
	}
	return c.TotalAmountDue.Sub(paid)
}

// ReconciliationRun is one persisted reconciliation pass over a period.
type ReconciliationRun struct {
	ID                    int64     `db:"id" json:"id"`
	BatchID               string    `db:"batch_id" json:"batch_id"`
	FromDate              time.Time `db:"from_date" json:"from_date"`
	ToDate                time.Time `db:"to_date" json:"to_date"`
	Status                string    `db:"status" json:"status"`
	Warning               bool      `db:"warning" json:"warning"`
	MatchedCount          int       `db:"matched_count" json:"matched_count"`
	UnmatchedBankCount    int       `db:"unmatched_bank_count" json:"unmatched_bank_count"`
	UnmatchedPaymentCount int       `db:"unmatched_payment_count" json:"unmatched_payment_count"`
	CreatedAt             time.Time `db:"created_at" json:"-"`
	UpdatedAt             time.Time `db:"updated_at" json:"-"`
}

// ReconciliationMatch links one bank deposit to the payment it funded.
type ReconciliationMatch struct {
	ID                 int64           `db:"id" json:"id"`
	RunID              int64           `db:"run_id" json:"run_id"`
	BankTransactionID  int64           `db:"bank_transaction_id" json:"bank_transaction_id"`
	PaymentID          int64           `db:"payment_id" json:"payment_id"`
	Confidence         string          `db:"confidence" json:"confidence"`
	AmountDifference   decimal.Decimal `db:"amount_difference" json:"amount_difference"`
	DateDifferenceDays int             `db:"date_difference_days" json:"date_difference_days"`
	CreatedAt          time.Time       `db:"created_at" json:"-"`
}

// ReconciliationAudit is an audit trail entry for a batch mutation.
type ReconciliationAudit struct {
	ID        int64           `db:"id" json:"id"`
	RunID     sql.NullInt64   `db:"run_id" json:"run_id"`
	Action    string          `db:"action" json:"action"`
	Details   json.RawMessage `db:"details" json:"details"`
	CreatedAt time.Time       `db:"created_at" json:"-"`
}

// Run status constants
const (
	RunStatusMatched = "matched"
	RunStatusPartial = "partial"
)

// Match confidence constants
const (
	ConfidenceExact     = "exact"
	ConfidenceTolerance = "tolerance"
)

// Unmatched-deposit reason constants
const (
	ReasonNoCandidate = "no_candidate"
	ReasonAmbiguous   = "ambiguous"
)

// AuditAction constants
const (
	AuditActionIngested       = "ingested"
	AuditActionReconciled     = "reconciled"
	AuditActionSplitsResolved = "splits_resolved"
)

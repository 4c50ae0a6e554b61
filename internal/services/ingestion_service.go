package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"charter-reconciliation/internal/database"
	"charter-reconciliation/internal/models"
	"charter-reconciliation/internal/money"
	"charter-reconciliation/internal/repositories"
)

// IngestionService bulk-inserts statement lines, payments and receipts. Each
// call is one batch in one transaction; rows that fail validation are
// collected as errors and the batch only commits when every row passed.
type IngestionService struct {
	db                 *sql.DB
	bankRepo           repositories.BankRepository
	paymentRepo        repositories.PaymentRepository
	receiptRepo        repositories.ReceiptRepository
	reconciliationRepo repositories.ReconciliationRepository
}

func NewIngestionService(
	db *sql.DB,
	bankRepo repositories.BankRepository,
	paymentRepo repositories.PaymentRepository,
	receiptRepo repositories.ReceiptRepository,
	reconciliationRepo repositories.ReconciliationRepository,
) *IngestionService {
	return &IngestionService{
		db:                 db,
		bankRepo:           bankRepo,
		paymentRepo:        paymentRepo,
		receiptRepo:        receiptRepo,
		reconciliationRepo: reconciliationRepo,
	}
}

type BankTransactionInput struct {
	TransactionDate string `json:"transaction_date"`
	CreditAmount    string `json:"credit_amount,omitempty"`
	DebitAmount     string `json:"debit_amount,omitempty"`
	Description     string `json:"description,omitempty"`
}

type PaymentInput struct {
	ReserveNumber string `json:"reserve_number"`
	Amount        string `json:"amount"`
	PaymentDate   string `json:"payment_date"`
	PaymentMethod string `json:"payment_method"`
}

type ReceiptInput struct {
	VendorName  string `json:"vendor_name"`
	ReceiptDate string `json:"receipt_date"`
	GrossAmount string `json:"gross_amount"`
	GSTAmount   string `json:"gst_amount,omitempty"`
	Description string `json:"description,omitempty"`
}

type IngestionResult struct {
	Success      bool     `json:"success"`
	RecordsCount int      `json:"records_count"`
	Errors       []string `json:"errors,omitempty"`
}

func (s *IngestionService) IngestBankTransactions(inputs []BankTransactionInput) (*IngestionResult, error) {
	result := &IngestionResult{}

	var rows []*models.BankTransaction
	for i, input := range inputs {
		bt, err := parseBankTransaction(input)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		rows = append(rows, bt)
	}

	if len(result.Errors) > 0 {
		return result, nil
	}

	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		for _, bt := range rows {
			if err := s.bankRepo.InsertBankTransaction(tx, bt); err != nil {
				return err
			}
		}
		return s.auditIngestion(tx, "bank_transactions", len(rows))
	})
	if err != nil {
		return nil, err
	}

	result.Success = true
	result.RecordsCount = len(rows)
	return result, nil
}

func (s *IngestionService) IngestPayments(inputs []PaymentInput) (*IngestionResult, error) {
	result := &IngestionResult{}

	var rows []*models.Payment
	for i, input := range inputs {
		p, err := parsePayment(input)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		rows = append(rows, p)
	}

	if len(result.Errors) > 0 {
		return result, nil
	}

	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		for _, p := range rows {
			if err := s.paymentRepo.InsertPayment(tx, p); err != nil {
				return err
			}
		}
		return s.auditIngestion(tx, "payments", len(rows))
	})
	if err != nil {
		return nil, err
	}

	result.Success = true
	result.RecordsCount = len(rows)
	return result, nil
}

func (s *IngestionService) IngestReceipts(inputs []ReceiptInput) (*IngestionResult, error) {
	result := &IngestionResult{}

	var rows []*models.Receipt
	for i, input := range inputs {
		rc, err := parseReceipt(input)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		rows = append(rows, rc)
	}

	if len(result.Errors) > 0 {
		return result, nil
	}

	err := database.WithTx(s.db, func(tx *sql.Tx) error {
		for _, rc := range rows {
			if err := s.receiptRepo.InsertReceipt(tx, rc); err != nil {
				return err
			}
		}
		return s.auditIngestion(tx, "receipts", len(rows))
	})
	if err != nil {
		return nil, err
	}

	result.Success = true
	result.RecordsCount = len(rows)
	return result, nil
}

func (s *IngestionService) auditIngestion(tx *sql.Tx, table string, count int) error {
	details, _ := json.Marshal(map[string]interface{}{
		"table":   table,
		"records": count,
	})
	audit := &models.ReconciliationAudit{
		Action:  models.AuditActionIngested,
		Details: details,
	}
	return s.reconciliationRepo.CreateAuditEntry(tx, audit)
}

func parseBankTransaction(input BankTransactionInput) (*models.BankTransaction, error) {
	date, err := parseDate(input.TransactionDate)
	if err != nil {
		return nil, fmt.Errorf("transaction_date: %v", err)
	}
	if input.CreditAmount == "" && input.DebitAmount == "" {
		return nil, fmt.Errorf("one of credit_amount or debit_amount is required")
	}
	if input.CreditAmount != "" && input.DebitAmount != "" {
		return nil, fmt.Errorf("credit_amount and debit_amount are mutually exclusive")
	}

	bt := &models.BankTransaction{
		TransactionDate: date,
		Description:     input.Description,
	}
	if input.CreditAmount != "" {
		amt, err := parseAmount(input.CreditAmount)
		if err != nil {
			return nil, fmt.Errorf("credit_amount: %v", err)
		}
		bt.CreditAmount = decimal.NewNullDecimal(amt)
	}
	if input.DebitAmount != "" {
		amt, err := parseAmount(input.DebitAmount)
		if err != nil {
			return nil, fmt.Errorf("debit_amount: %v", err)
		}
		bt.DebitAmount = decimal.NewNullDecimal(amt)
	}
	return bt, nil
}

func parsePayment(input PaymentInput) (*models.Payment, error) {
	if input.ReserveNumber == "" {
		return nil, fmt.Errorf("reserve_number is required")
	}
	date, err := parseDate(input.PaymentDate)
	if err != nil {
		return nil, fmt.Errorf("payment_date: %v", err)
	}
	amt, err := decimal.NewFromString(input.Amount)
	if err != nil {
		return nil, fmt.Errorf("amount: %v", err)
	}
	if amt.IsZero() {
		return nil, fmt.Errorf("amount must be non-zero")
	}
	return &models.Payment{
		ReserveNumber: input.ReserveNumber,
		Amount:        amt,
		PaymentDate:   date,
		PaymentMethod: input.PaymentMethod,
	}, nil
}

func parseReceipt(input ReceiptInput) (*models.Receipt, error) {
	if input.VendorName == "" {
		return nil, fmt.Errorf("vendor_name is required")
	}
	date, err := parseDate(input.ReceiptDate)
	if err != nil {
		return nil, fmt.Errorf("receipt_date: %v", err)
	}
	gross, err := parseAmount(input.GrossAmount)
	if err != nil {
		return nil, fmt.Errorf("gross_amount: %v", err)
	}

	// GST is back-calculated from the tax-inclusive gross when the source
	// row does not carry it.
	gst := money.GSTFromGross(gross)
	if input.GSTAmount != "" {
		gst, err = decimal.NewFromString(input.GSTAmount)
		if err != nil {
			return nil, fmt.Errorf("gst_amount: %v", err)
		}
		if gst.IsNegative() {
			return nil, fmt.Errorf("gst_amount must not be negative")
		}
	}

	return &models.Receipt{
		VendorName:  input.VendorName,
		ReceiptDate: date,
		GrossAmount: gross,
		GSTAmount:   gst,
		Description: input.Description,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("required")
	}
	return time.Parse("2006-01-02", s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	amt, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !amt.IsPositive() {
		return decimal.Zero, fmt.Errorf("must be positive")
	}
	return amt, nil
}

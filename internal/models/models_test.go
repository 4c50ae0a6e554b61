package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDerivedBalance(t *testing.T) {
	charter := &Charter{
		ID:             1,
		ReserveNumber:  "X",
		TotalAmountDue: dec("250.00"),
		Balance:        dec("0.00"), // stored column lies
	}
	payments := []*Payment{
		{ID: 1, ReserveNumber: "X", Amount: dec("103.35")},
		{ID: 2, ReserveNumber: "X", Amount: dec("103.35")},
		{ID: 3, ReserveNumber: "Y", Amount: dec("500.00")}, // different charter
	}

	// Two payments of $103.35 against $250.00 due: the derived balance is
	// $43.30 regardless of what the stored column claims.
	got := DerivedBalance(charter, payments)
	assert.True(t, got.Equal(dec("43.30")), "got %s", got)
}

func TestDerivedBalance_ReversalRows(t *testing.T) {
	charter := &Charter{ReserveNumber: "Z", TotalAmountDue: dec("100.00")}
	payments := []*Payment{
		{ID: 1, ReserveNumber: "Z", Amount: dec("100.00")},
		{ID: 2, ReserveNumber: "Z", Amount: dec("-100.00")}, // reversal, not an edit
	}
	assert.True(t, DerivedBalance(charter, payments).Equal(dec("100.00")))
}

func TestBankTransactionIsDeposit(t *testing.T) {
	d := &BankTransaction{
		TransactionDate: time.Now(),
		CreditAmount:    decimal.NewNullDecimal(dec("150.00")),
	}
	assert.True(t, d.IsDeposit())

	w := &BankTransaction{
		TransactionDate: time.Now(),
		DebitAmount:     decimal.NewNullDecimal(dec("45.00")),
	}
	assert.False(t, w.IsDeposit())
}

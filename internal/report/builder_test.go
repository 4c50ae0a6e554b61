package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charter-reconciliation/internal/matching"
	"charter-reconciliation/internal/models"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func deposit(id int64, amount, day string) *models.BankTransaction {
	return &models.BankTransaction{
		ID:              id,
		TransactionDate: date(day),
		CreditAmount:    decimal.NewNullDecimal(dec(amount)),
		Description:     "DEPOSIT",
	}
}

func withdrawal(id int64, amount, day string) *models.BankTransaction {
	return &models.BankTransaction{
		ID:              id,
		TransactionDate: date(day),
		DebitAmount:     decimal.NewNullDecimal(dec(amount)),
		Description:     "CHEQUE",
	}
}

func payment(id int64, amount, day string) *models.Payment {
	return &models.Payment{
		ID:            id,
		ReserveNumber: "R-2000",
		Amount:        dec(amount),
		PaymentDate:   date(day),
		PaymentMethod: "visa",
	}
}

func period() (time.Time, time.Time) {
	return date("2012-01-01"), date("2012-12-31")
}

func TestBuild_ExactAndToleranceConfidence(t *testing.T) {
	from, to := period()
	banks := []*models.BankTransaction{
		deposit(1, "150.00", "2012-03-01"),
		deposit(2, "150.00", "2012-03-10"),
	}
	payments := []*models.Payment{
		payment(11, "150.00", "2012-03-01"),
		payment(12, "150.01", "2012-03-12"),
	}
	tol := matching.Tolerance{Days: 3, Amount: dec("0.05")}

	r := Build(from, to, banks, payments, tol)
	require.Len(t, r.Matched, 2)
	assert.Equal(t, models.ConfidenceExact, r.Matched[0].Confidence)
	assert.Equal(t, models.ConfidenceTolerance, r.Matched[1].Confidence)
	assert.Empty(t, r.UnmatchedBank)
	assert.Empty(t, r.UnmatchedPayments)
	assert.Equal(t, models.RunStatusMatched, r.Status())
	assert.False(t, r.Warning)
}

func TestBuild_UnmatchedBankDeposit(t *testing.T) {
	from, to := period()
	banks := []*models.BankTransaction{deposit(1, "1000000.00", "2012-03-01")}
	payments := []*models.Payment{payment(11, "150.00", "2012-03-01")}
	tol := matching.Tolerance{Days: 60, Amount: dec("1.00")}

	r := Build(from, to, banks, payments, tol)
	assert.Empty(t, r.Matched)
	require.Len(t, r.UnmatchedBank, 1)
	assert.Equal(t, models.ReasonNoCandidate, r.UnmatchedBank[0].Reason)
	require.Len(t, r.UnmatchedPayments, 1)
	assert.Equal(t, models.RunStatusPartial, r.Status())
}

func TestBuild_AmbiguousDepositNeedsReview(t *testing.T) {
	from, to := period()
	banks := []*models.BankTransaction{deposit(1, "150.00", "2012-03-01")}
	payments := []*models.Payment{
		payment(11, "150.00", "2012-03-01"),
		payment(12, "150.00", "2012-03-01"),
	}

	r := Build(from, to, banks, payments, matching.DefaultTolerance())
	assert.Empty(t, r.Matched, "an ambiguous deposit must not be auto-resolved")
	require.Len(t, r.UnmatchedBank, 1)
	assert.Equal(t, models.ReasonAmbiguous, r.UnmatchedBank[0].Reason)
	assert.Len(t, r.UnmatchedBank[0].Candidates, 2)
	// Neither payment was consumed.
	assert.Len(t, r.UnmatchedPayments, 2)
}

func TestBuild_PartitionsExhaustiveAndDisjoint(t *testing.T) {
	from, to := period()
	banks := []*models.BankTransaction{
		deposit(1, "150.00", "2012-03-01"),
		deposit(2, "75.50", "2012-03-05"),
		deposit(3, "980.00", "2012-03-09"),
		withdrawal(4, "45.00", "2012-03-10"), // debits are not reconciled against payments
	}
	payments := []*models.Payment{
		payment(11, "150.00", "2012-03-01"),
		payment(12, "75.50", "2012-03-06"),
		payment(13, "42.00", "2012-03-07"),
	}
	tol := matching.Tolerance{Days: 3, Amount: dec("0.01")}

	r := Build(from, to, banks, payments, tol)

	seen := make(map[int64]int)
	for _, m := range r.Matched {
		seen[m.Bank.ID]++
	}
	for _, u := range r.UnmatchedBank {
		seen[u.Bank.ID]++
	}
	for _, bt := range banks {
		if !bt.IsDeposit() {
			continue
		}
		assert.Equal(t, 1, seen[bt.ID], "deposit %d must appear in exactly one partition", bt.ID)
	}

	assert.Equal(t, 2, r.Totals.MatchedCount)
	assert.Equal(t, 1, r.Totals.UnmatchedBankCount)
	assert.Equal(t, 1, r.Totals.UnmatchedPaymentCount)
	assert.True(t, r.Totals.MatchedAmount.Equal(dec("225.50")))
	assert.True(t, r.Totals.UnmatchedBankAmount.Equal(dec("980.00")))
	assert.True(t, r.Totals.UnmatchedPaymentAmount.Equal(dec("42.00")))
}

func TestBuild_EmptyPeriodWarnsNeverFails(t *testing.T) {
	from, to := period()

	t.Run("no data at all", func(t *testing.T) {
		r := Build(from, to, nil, nil, matching.DefaultTolerance())
		assert.True(t, r.Warning)
		assert.Empty(t, r.Matched)
		assert.Empty(t, r.UnmatchedBank)
		assert.Empty(t, r.UnmatchedPayments)
	})

	t.Run("no deposits", func(t *testing.T) {
		r := Build(from, to, nil, []*models.Payment{payment(1, "10.00", "2012-03-01")}, matching.DefaultTolerance())
		assert.True(t, r.Warning)
		assert.Len(t, r.UnmatchedPayments, 1)
	})

	t.Run("no payments", func(t *testing.T) {
		r := Build(from, to, []*models.BankTransaction{deposit(1, "10.00", "2012-03-01")}, nil, matching.DefaultTolerance())
		assert.True(t, r.Warning)
		assert.Len(t, r.UnmatchedBank, 1)
	})
}

func TestBuild_PaymentConsumedOnlyOnce(t *testing.T) {
	from, to := period()
	banks := []*models.BankTransaction{
		deposit(1, "150.00", "2012-03-01"),
		deposit(2, "150.00", "2012-03-02"),
	}
	payments := []*models.Payment{payment(11, "150.00", "2012-03-01")}
	tol := matching.Tolerance{Days: 3, Amount: dec("0.01")}

	r := Build(from, to, banks, payments, tol)
	require.Len(t, r.Matched, 1)
	assert.Equal(t, int64(1), r.Matched[0].Bank.ID)
	require.Len(t, r.UnmatchedBank, 1)
	assert.Equal(t, int64(2), r.UnmatchedBank[0].Bank.ID)
}

func TestWriteCSV(t *testing.T) {
	from, to := period()
	banks := []*models.BankTransaction{
		deposit(1, "150.00", "2012-03-01"),
		deposit(2, "980.00", "2012-03-09"),
	}
	payments := []*models.Payment{
		payment(11, "150.00", "2012-03-01"),
		payment(13, "42.00", "2012-03-07"),
	}
	tol := matching.Tolerance{Days: 3, Amount: dec("0.01")}

	var buf bytes.Buffer
	require.NoError(t, Build(from, to, banks, payments, tol).WriteCSV(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4) // header + matched + unmatched_bank + unmatched_payment
	assert.Equal(t, "partition,bank_transaction_id,date,amount,payment_id,reserve_number,detail", lines[0])
	assert.Contains(t, lines[1], "matched,1,2012-03-01,150.00,11,R-2000,exact")
	assert.Contains(t, lines[2], "unmatched_bank,2,2012-03-09,980.00,,,no_candidate")
	assert.Contains(t, lines[3], "unmatched_payment,,2012-03-07,42.00,13,R-2000,visa")
}

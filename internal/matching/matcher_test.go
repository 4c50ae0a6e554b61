package matching

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func payment(id int64, amount, day string) *models.Payment {
	return &models.Payment{
		ID:            id,
		ReserveNumber: "R-1000",
		Amount:        dec(amount),
		PaymentDate:   date(day),
		PaymentMethod: "visa",
	}
}

func TestFindCandidates_ExactMatch(t *testing.T) {
	payments := []*models.Payment{
		payment(1, "150.00", "2012-03-01"),
		payment(2, "200.00", "2012-03-01"),
	}

	got := FindCandidates(payments, dec("150.00"), date("2012-03-01"), DefaultTolerance())
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Payment.ID)
	assert.Equal(t, models.ConfidenceExact, got[0].Confidence)
	assert.True(t, got[0].AmountDifference.IsZero())
	assert.Equal(t, 0, got[0].DateDifferenceDays)
}

func TestFindCandidates_ToleranceMatch(t *testing.T) {
	// Deposit $150.00 on 2012-03-01, payment $150.01 on 2012-03-03,
	// tolerance $0.05 / 3 days.
	payments := []*models.Payment{payment(7, "150.01", "2012-03-03")}
	tol := Tolerance{Days: 3, Amount: dec("0.05")}

	got := FindCandidates(payments, dec("150.00"), date("2012-03-01"), tol)
	require.Len(t, got, 1)
	assert.Equal(t, models.ConfidenceTolerance, got[0].Confidence)
	assert.Equal(t, 2, got[0].DateDifferenceDays)
	assert.True(t, got[0].AmountDifference.Equal(dec("0.01")))
}

func TestFindCandidates_NoMatchIsEmptyNotError(t *testing.T) {
	payments := []*models.Payment{
		payment(1, "150.00", "2012-03-01"),
	}
	tol := Tolerance{Days: 60, Amount: dec("1.00")}

	got := FindCandidates(payments, dec("1000000.00"), date("2012-03-01"), tol)
	assert.Empty(t, got)
}

func TestFindCandidates_OrderingByDateThenAmount(t *testing.T) {
	payments := []*models.Payment{
		payment(1, "150.05", "2012-03-04"),
		payment(2, "150.02", "2012-03-02"),
		payment(3, "150.01", "2012-03-02"),
		payment(4, "150.00", "2012-03-05"),
	}
	tol := Tolerance{Days: 7, Amount: dec("1.00")}

	got := FindCandidates(payments, dec("150.00"), date("2012-03-01"), tol)
	require.Len(t, got, 4)
	assert.Equal(t, int64(3), got[0].Payment.ID)
	assert.Equal(t, int64(2), got[1].Payment.ID)
	assert.Equal(t, int64(1), got[2].Payment.ID)
	assert.Equal(t, int64(4), got[3].Payment.ID)
}

func TestFindCandidates_AllWithinWindowAreReturned(t *testing.T) {
	payments := []*models.Payment{
		payment(1, "99.99", "2012-06-09"),
		payment(2, "100.00", "2012-06-10"),
		payment(3, "100.01", "2012-06-11"),
		payment(4, "101.50", "2012-06-10"), // outside amount tolerance
		payment(5, "100.00", "2012-07-10"), // outside date tolerance
	}
	tol := Tolerance{Days: 3, Amount: dec("0.05")}

	got := FindCandidates(payments, dec("100.00"), date("2012-06-10"), tol)
	require.Len(t, got, 3)
	for _, c := range got {
		assert.True(t, c.AmountDifference.LessThanOrEqual(tol.Amount))
		assert.LessOrEqual(t, c.DateDifferenceDays, tol.Days)
	}
}

func TestFindCandidates_ToleranceMonotonicity(t *testing.T) {
	payments := []*models.Payment{
		payment(1, "150.01", "2012-03-03"),
		payment(2, "150.75", "2012-03-20"),
		payment(3, "149.50", "2012-02-25"),
	}

	narrow := Tolerance{Days: 3, Amount: dec("0.05")}
	wide := Tolerance{Days: 60, Amount: dec("1.00")}

	narrowSet := FindCandidates(payments, dec("150.00"), date("2012-03-01"), narrow)
	wideSet := FindCandidates(payments, dec("150.00"), date("2012-03-01"), wide)

	// Every candidate at the narrow tolerance must survive widening.
	wideIDs := make(map[int64]bool)
	for _, c := range wideSet {
		wideIDs[c.Payment.ID] = true
	}
	for _, c := range narrowSet {
		assert.True(t, wideIDs[c.Payment.ID], "payment %d lost under wider tolerance", c.Payment.ID)
	}
	assert.Len(t, wideSet, 3)
}

func TestFindCandidates_EqualCandidatesAllReturned(t *testing.T) {
	// Two payments identical in amount and date must both come back; the
	// matcher never picks one arbitrarily.
	payments := []*models.Payment{
		payment(10, "150.00", "2012-03-01"),
		payment(11, "150.00", "2012-03-01"),
	}

	got := FindCandidates(payments, dec("150.00"), date("2012-03-01"), DefaultTolerance())
	require.Len(t, got, 2)
	assert.True(t, EquallyGood(got[0], got[1]))
	assert.Equal(t, int64(10), got[0].Payment.ID)
}

func TestDaysBetween_IgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2012, 3, 1, 23, 30, 0, 0, time.UTC)
	b := time.Date(2012, 3, 2, 0, 15, 0, 0, time.UTC)
	assert.Equal(t, 1, daysBetween(a, b))
	assert.Equal(t, 1, daysBetween(b, a))
}

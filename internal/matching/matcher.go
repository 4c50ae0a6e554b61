// Package matching implements the amount/date matcher: given a bank deposit,
// find the recorded payments that plausibly correspond to it within a
// configurable tolerance window.
package matching

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"charter-reconciliation/internal/models"
)

// Tolerance is the allowed deviation when matching two financial records
// believed to represent the same real-world event. Historical data has shown
// gaps requiring much wider windows than the defaults, so both fields are
// caller-supplied per run.
type Tolerance struct {
	Days   int
	Amount decimal.Decimal
}

const DefaultToleranceDays = 7

// DefaultTolerance returns the standard window: 7 days, $0.01.
func DefaultTolerance() Tolerance {
	return Tolerance{Days: DefaultToleranceDays, Amount: decimal.New(1, -2)}
}

// Candidate is one payment considered a plausible counterpart for a deposit.
type Candidate struct {
	Payment            *models.Payment
	DateDifferenceDays int
	AmountDifference   decimal.Decimal
	Confidence         string
}

// FindCandidates returns every payment within tol of the target amount and
// date, ordered by closest date, then closest amount, then payment id.
// An empty result is not an error; it signals an unreconciled deposit.
// Multiple equally good candidates are all returned so the caller can route
// the deposit to manual review instead of picking one arbitrarily.
func FindCandidates(payments []*models.Payment, targetAmount decimal.Decimal, targetDate time.Time, tol Tolerance) []Candidate {
	var candidates []Candidate
	for _, p := range payments {
		amountDiff := p.Amount.Sub(targetAmount).Abs()
		if amountDiff.GreaterThan(tol.Amount) {
			continue
		}
		dateDiff := daysBetween(p.PaymentDate, targetDate)
		if dateDiff > tol.Days {
			continue
		}

		confidence := models.ConfidenceTolerance
		if dateDiff == 0 && amountDiff.IsZero() {
			confidence = models.ConfidenceExact
		}
		candidates = append(candidates, Candidate{
			Payment:            p,
			DateDifferenceDays: dateDiff,
			AmountDifference:   amountDiff,
			Confidence:         confidence,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].DateDifferenceDays != candidates[j].DateDifferenceDays {
			return candidates[i].DateDifferenceDays < candidates[j].DateDifferenceDays
		}
		if cmp := candidates[i].AmountDifference.Cmp(candidates[j].AmountDifference); cmp != 0 {
			return cmp < 0
		}
		return candidates[i].Payment.ID < candidates[j].Payment.ID
	})

	return candidates
}

// EquallyGood reports whether two candidates are indistinguishable on the
// ordering criteria (same date distance and same amount distance).
func EquallyGood(a, b Candidate) bool {
	return a.DateDifferenceDays == b.DateDifferenceDays && a.AmountDifference.Equal(b.AmountDifference)
}

// daysBetween returns the absolute calendar-day distance between two dates,
// ignoring the time-of-day component.
func daysBetween(a, b time.Time) int {
	au := truncateToDay(a)
	bu := truncateToDay(b)
	d := au.Sub(bu) / (24 * time.Hour)
	if d < 0 {
		d = -d
	}
	return int(d)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

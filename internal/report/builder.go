// Package report aggregates matcher output over one period's snapshot into
// the three reconciliation partitions: matched, unmatched-bank and
// unmatched-payment. The computation is stateless and re-runnable; nothing
// here touches the database.
package report

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"charter-reconciliation/internal/matching"
	"charter-reconciliation/internal/models"
)

// MatchedDeposit is a deposit auto-resolved to a single payment.
type MatchedDeposit struct {
	Bank               *models.BankTransaction `json:"bank_transaction"`
	Payment            *models.Payment         `json:"payment"`
	Confidence         string                  `json:"confidence"`
	AmountDifference   decimal.Decimal         `json:"amount_difference"`
	DateDifferenceDays int                     `json:"date_difference_days"`
}

// UnmatchedDeposit is a deposit with no auto-resolvable payment. Reason
// "ambiguous" means several equally good candidates exist and the item needs
// a human decision; the tied candidates are carried for display.
type UnmatchedDeposit struct {
	Bank       *models.BankTransaction `json:"bank_transaction"`
	Reason     string                  `json:"reason"`
	Candidates []matching.Candidate    `json:"candidates,omitempty"`
}

// Totals summarizes one report's partitions.
type Totals struct {
	MatchedCount           int             `json:"matched_count"`
	MatchedAmount          decimal.Decimal `json:"matched_amount"`
	UnmatchedBankCount     int             `json:"unmatched_bank_count"`
	UnmatchedBankAmount    decimal.Decimal `json:"unmatched_bank_amount"`
	UnmatchedPaymentCount  int             `json:"unmatched_payment_count"`
	UnmatchedPaymentAmount decimal.Decimal `json:"unmatched_payment_amount"`
}

// Report is the full output of one reconciliation pass.
type Report struct {
	FromDate          time.Time          `json:"from_date"`
	ToDate            time.Time          `json:"to_date"`
	Matched           []MatchedDeposit   `json:"matched"`
	UnmatchedBank     []UnmatchedDeposit `json:"unmatched_bank"`
	UnmatchedPayments []*models.Payment  `json:"unmatched_payments"`
	Totals            Totals             `json:"totals"`
	Warning           bool               `json:"warning"`
	WarningReason     string             `json:"warning_reason,omitempty"`
}

// Build partitions a period's deposits and payments. Every deposit lands in
// exactly one of matched/unmatched-bank; every payment not consumed by a
// match lands in unmatched-payments. An empty period is not an error: it
// yields empty partitions with the warning flag set.
func Build(fromDate, toDate time.Time, banks []*models.BankTransaction, payments []*models.Payment, tol matching.Tolerance) *Report {
	r := &Report{
		FromDate: fromDate,
		ToDate:   toDate,
		Totals: Totals{
			MatchedAmount:          decimal.Zero,
			UnmatchedBankAmount:    decimal.Zero,
			UnmatchedPaymentAmount: decimal.Zero,
		},
	}

	var deposits []*models.BankTransaction
	for _, bt := range banks {
		if bt.IsDeposit() {
			deposits = append(deposits, bt)
		}
	}
	sort.Slice(deposits, func(i, j int) bool {
		if !deposits[i].TransactionDate.Equal(deposits[j].TransactionDate) {
			return deposits[i].TransactionDate.Before(deposits[j].TransactionDate)
		}
		return deposits[i].ID < deposits[j].ID
	})

	if len(deposits) == 0 || len(payments) == 0 {
		r.Warning = true
		switch {
		case len(deposits) == 0 && len(payments) == 0:
			r.WarningReason = "no bank deposits and no payments in period"
		case len(deposits) == 0:
			r.WarningReason = "no bank deposits in period"
		default:
			r.WarningReason = "no payments in period"
		}
	}

	consumed := make(map[int64]bool)
	for _, bt := range deposits {
		available := make([]*models.Payment, 0, len(payments))
		for _, p := range payments {
			if !consumed[p.ID] {
				available = append(available, p)
			}
		}

		candidates := matching.FindCandidates(available, bt.CreditAmount.Decimal, bt.TransactionDate, tol)
		switch {
		case len(candidates) == 0:
			r.UnmatchedBank = append(r.UnmatchedBank, UnmatchedDeposit{
				Bank:   bt,
				Reason: models.ReasonNoCandidate,
			})
		case len(candidates) > 1 && matching.EquallyGood(candidates[0], candidates[1]):
			// Equally plausible payments: surfacing all of them for manual
			// review, consuming none, so nothing is written that could
			// misattribute money.
			tied := []matching.Candidate{candidates[0]}
			for _, c := range candidates[1:] {
				if !matching.EquallyGood(candidates[0], c) {
					break
				}
				tied = append(tied, c)
			}
			r.UnmatchedBank = append(r.UnmatchedBank, UnmatchedDeposit{
				Bank:       bt,
				Reason:     models.ReasonAmbiguous,
				Candidates: tied,
			})
		default:
			best := candidates[0]
			consumed[best.Payment.ID] = true
			r.Matched = append(r.Matched, MatchedDeposit{
				Bank:               bt,
				Payment:            best.Payment,
				Confidence:         best.Confidence,
				AmountDifference:   best.AmountDifference,
				DateDifferenceDays: best.DateDifferenceDays,
			})
		}
	}

	for _, p := range payments {
		if !consumed[p.ID] {
			r.UnmatchedPayments = append(r.UnmatchedPayments, p)
		}
	}
	sort.Slice(r.UnmatchedPayments, func(i, j int) bool {
		return r.UnmatchedPayments[i].ID < r.UnmatchedPayments[j].ID
	})

	for _, m := range r.Matched {
		r.Totals.MatchedCount++
		r.Totals.MatchedAmount = r.Totals.MatchedAmount.Add(m.Bank.CreditAmount.Decimal)
	}
	for _, u := range r.UnmatchedBank {
		r.Totals.UnmatchedBankCount++
		r.Totals.UnmatchedBankAmount = r.Totals.UnmatchedBankAmount.Add(u.Bank.CreditAmount.Decimal)
	}
	for _, p := range r.UnmatchedPayments {
		r.Totals.UnmatchedPaymentCount++
		r.Totals.UnmatchedPaymentAmount = r.Totals.UnmatchedPaymentAmount.Add(p.Amount)
	}

	return r
}

// Status derives the persisted run status from the partitions.
func (r *Report) Status() string {
	if len(r.UnmatchedBank) == 0 && len(r.UnmatchedPayments) == 0 {
		return models.RunStatusMatched
	}
	return models.RunStatusPartial
}

// WriteCSV renders the report for the dashboard/export consumer: one row per
// record, partition in the first column.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"partition", "bank_transaction_id", "date", "amount", "payment_id", "reserve_number", "detail"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, m := range r.Matched {
		row := []string{
			"matched",
			formatID(m.Bank.ID),
			m.Bank.TransactionDate.Format("2006-01-02"),
			m.Bank.CreditAmount.Decimal.StringFixed(2),
			formatID(m.Payment.ID),
			m.Payment.ReserveNumber,
			m.Confidence,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	for _, u := range r.UnmatchedBank {
		row := []string{
			"unmatched_bank",
			formatID(u.Bank.ID),
			u.Bank.TransactionDate.Format("2006-01-02"),
			u.Bank.CreditAmount.Decimal.StringFixed(2),
			"",
			"",
			u.Reason,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	for _, p := range r.UnmatchedPayments {
		row := []string{
			"unmatched_payment",
			"",
			p.PaymentDate.Format("2006-01-02"),
			p.Amount.StringFixed(2),
			formatID(p.ID),
			p.ReserveNumber,
			p.PaymentMethod,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

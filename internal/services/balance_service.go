package services

import (
	"github.com/shopspring/decimal"

	"charter-reconciliation/internal/money"
	"charter-reconciliation/internal/repositories"
)

// BalanceService verifies stored charter balances against the derived value
// (total_amount_due minus payments joined on reserve_number). Read-only.
type BalanceService struct {
	charterRepo repositories.CharterRepository
}

func NewBalanceService(charterRepo repositories.CharterRepository) *BalanceService {
	return &BalanceService{charterRepo: charterRepo}
}

// BalanceDiscrepancy is a charter whose stored balance diverges from the
// derived calculation by more than a cent. The derived value wins.
type BalanceDiscrepancy struct {
	ReserveNumber  string          `json:"reserve_number"`
	StoredBalance  decimal.Decimal `json:"stored_balance"`
	DerivedBalance decimal.Decimal `json:"derived_balance"`
	Difference     decimal.Decimal `json:"difference"`
}

func (s *BalanceService) VerifyBalances() ([]BalanceDiscrepancy, error) {
	balances, err := s.charterRepo.ListBalances()
	if err != nil {
		return nil, err
	}

	var discrepancies []BalanceDiscrepancy
	for _, b := range balances {
		derived := b.Charter.TotalAmountDue.Sub(b.PaidTotal)
		if money.WithinCent(derived, b.Charter.Balance) {
			continue
		}
		discrepancies = append(discrepancies, BalanceDiscrepancy{
			ReserveNumber:  b.Charter.ReserveNumber,
			StoredBalance:  b.Charter.Balance,
			DerivedBalance: derived,
			Difference:     b.Charter.Balance.Sub(derived),
		})
	}
	return discrepancies, nil
}

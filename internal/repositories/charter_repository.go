package repositories

import (
	"database/sql"

	"github.com/shopspring/decimal"

	"charter-reconciliation/internal/models"
)

// CharterBalance pairs a charter with the payment total recorded against its
// reserve number. The join is on reserve_number only; payment rows may carry
// a null charter_id and it is never consulted.
type CharterBalance struct {
	Charter   *models.Charter
	PaidTotal decimal.Decimal
}

type CharterRepository interface {
	GetByReserveNumber(reserveNumber string) (*models.Charter, error)
	ListBalances() ([]*CharterBalance, error)
}

type charterRepository struct {
	db *sql.DB
}

func NewCharterRepository(db *sql.DB) CharterRepository {
	return &charterRepository{db: db}
}

func (r *charterRepository) GetByReserveNumber(reserveNumber string) (*models.Charter, error) {
	c := &models.Charter{}
	query := `
		SELECT id, reserve_number, total_amount_due, status, balance, created_at
		FROM charters
		WHERE reserve_number = $1
	`
	err := r.db.QueryRow(query, reserveNumber).Scan(
		&c.ID,
		&c.ReserveNumber,
		&c.TotalAmountDue,
		&c.Status,
		&c.Balance,
		&c.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *charterRepository) ListBalances() ([]*CharterBalance, error) {
	query := `
		SELECT c.id, c.reserve_number, c.total_amount_due, c.status, c.balance, c.created_at,
		       COALESCE(SUM(p.amount), 0) AS paid_total
		FROM charters c
		LEFT JOIN payments p ON p.reserve_number = c.reserve_number
		GROUP BY c.id, c.reserve_number, c.total_amount_due, c.status, c.balance, c.created_at
		ORDER BY c.reserve_number
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []*CharterBalance
	for rows.Next() {
		c := &models.Charter{}
		cb := &CharterBalance{Charter: c}
		err := rows.Scan(
			&c.ID,
			&c.ReserveNumber,
			&c.TotalAmountDue,
			&c.Status,
			&c.Balance,
			&c.CreatedAt,
			&cb.PaidTotal,
		)
		if err != nil {
			return nil, err
		}
		balances = append(balances, cb)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return balances, nil
}

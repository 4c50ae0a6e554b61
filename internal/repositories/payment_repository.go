package repositories

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"charter-reconciliation/internal/models"
)

type PaymentRepository interface {
	InsertPayment(tx *sql.Tx, p *models.Payment) error
	ListByDateRange(fromDate, toDate time.Time) ([]*models.Payment, error)
	ListByReserveNumber(reserveNumber string) ([]*models.Payment, error)
}

type paymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) InsertPayment(tx *sql.Tx, p *models.Payment) error {
	query := `
		INSERT INTO payments (
			reserve_number, amount, payment_date, payment_method
		) VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := tx.QueryRow(query,
		p.ReserveNumber,
		p.Amount,
		p.PaymentDate,
		p.PaymentMethod,
	).Scan(&p.ID)
	if err != nil {
		return errors.Wrap(err, "insert payment")
	}
	return nil
}

func (r *paymentRepository) ListByDateRange(fromDate, toDate time.Time) ([]*models.Payment, error) {
	query := `
		SELECT id, reserve_number, amount, payment_date, payment_method, created_at
		FROM payments
		WHERE payment_date BETWEEN $1 AND $2
		ORDER BY payment_date, id
	`
	return r.queryPayments(query, fromDate, toDate)
}

func (r *paymentRepository) ListByReserveNumber(reserveNumber string) ([]*models.Payment, error) {
	query := `
		SELECT id, reserve_number, amount, payment_date, payment_method, created_at
		FROM payments
		WHERE reserve_number = $1
		ORDER BY payment_date, id
	`
	return r.queryPayments(query, reserveNumber)
}

func (r *paymentRepository) queryPayments(query string, args ...interface{}) ([]*models.Payment, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p := &models.Payment{}
		err := rows.Scan(
			&p.ID,
			&p.ReserveNumber,
			&p.Amount,
			&p.PaymentDate,
			&p.PaymentMethod,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

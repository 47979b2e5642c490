package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridefare/internal/domain"
	"ridefare/internal/repository"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

const paymentColumns = `id, ride_id, amount_cents, currency, status, idempotency_key, refunded_cents, created_at, updated_at`

func scanPayment(row scanner) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.RideID,
		&p.AmountCents,
		&p.Currency,
		&p.Status,
		&p.IdempotencyKey,
		&p.RefundedCents,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.RideID,
		payment.AmountCents,
		payment.Currency,
		payment.Status,
		payment.IdempotencyKey,
		payment.RefundedCents,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	return err
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return payment, nil
}

// GetByIdempotencyKey retrieves a payment by its idempotency key.
// Returns nil if no payment exists with the given key.
func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE idempotency_key = $1`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return payment, nil
}

// UpdateStatus moves a payment from expected to status.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, expected, status domain.PaymentStatus) error {
	query := `UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	result, err := r.q.ExecContext(ctx, query, status, id, expected)
	if err != nil {
		return err
	}
	return rowsAffectedOrMissing(ctx, r.q, result, "payments", id)
}

// AddRefund records a refunded amount, refusing to refund more than was paid.
func (r *PaymentRepository) AddRefund(ctx context.Context, id string, cents int64) error {
	query := `
		UPDATE payments SET refunded_cents = refunded_cents + $1, updated_at = NOW()
		WHERE id = $2 AND refunded_cents + $1 <= amount_cents
	`

	result, err := r.q.ExecContext(ctx, query, cents, id)
	if err != nil {
		return err
	}
	return rowsAffectedOrMissing(ctx, r.q, result, "payments", id)
}

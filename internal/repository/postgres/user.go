package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridefare/internal/domain"
	"ridefare/internal/repository"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{q: db}
}

// Upsert inserts the user or refreshes the identity-provided fields.
func (r *UserRepository) Upsert(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, phone, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, phone = EXCLUDED.phone,
			avatar_url = EXCLUDED.avatar_url, updated_at = NOW()
		RETURNING COALESCE(payment_customer_id, ''), created_at, updated_at
	`
	return r.q.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Email, nullString(user.Phone), nullString(user.AvatarURL),
	).Scan(&user.PaymentCustomerID, &user.CreatedAt, &user.UpdatedAt)
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, name, email, COALESCE(phone, ''), COALESCE(avatar_url, ''),
			COALESCE(payment_customer_id, ''), created_at, updated_at
		FROM users WHERE id = $1
	`

	var user domain.User
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Phone, &user.AvatarURL,
		&user.PaymentCustomerID, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetPaymentCustomer stores the processor customer ID for a user.
func (r *UserRepository) SetPaymentCustomer(ctx context.Context, id, customerID string) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE users SET payment_customer_id = $1, updated_at = NOW() WHERE id = $2`, customerID, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridefare/internal/domain"
	"ridefare/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

const driverColumns = `id, COALESCE(user_id, ''), name, phone, license_plate, vehicle_type, status, rating, total_rides, created_at`

func scanDriver(row scanner) (*domain.Driver, error) {
	var driver domain.Driver
	err := row.Scan(
		&driver.ID,
		&driver.UserID,
		&driver.Name,
		&driver.Phone,
		&driver.LicensePlate,
		&driver.VehicleTier,
		&driver.Status,
		&driver.Rating,
		&driver.TotalRides,
		&driver.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, user_id, name, phone, license_plate, vehicle_type, status, rating, total_rides, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.q.ExecContext(ctx, query,
		driver.ID,
		nullString(driver.UserID),
		driver.Name,
		driver.Phone,
		driver.LicensePlate,
		driver.VehicleTier,
		driver.Status,
		driver.Rating,
		driver.TotalRides,
		driver.CreatedAt,
	)
	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
}

// GetByUserID retrieves the driver profile owned by a user.
func (r *DriverRepository) GetByUserID(ctx context.Context, userID string) (*domain.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE user_id = $1`, userID)
}

func (r *DriverRepository) getOne(ctx context.Context, query string, arg string) (*domain.Driver, error) {
	driver, err := scanDriver(r.q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return driver, nil
}

// GetAll retrieves all drivers.
func (r *DriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

// UpdateStatus updates the status of a driver.
func (r *DriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	result, err := r.q.ExecContext(ctx, `UPDATE drivers SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ClaimForRide takes an online driver for a ride in a single conditional write.
func (r *DriverRepository) ClaimForRide(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE drivers SET status = 'on_trip' WHERE id = $1 AND status = 'online'`, id)
	if err != nil {
		return err
	}
	return rowsAffectedOrMissing(ctx, r.q, result, "drivers", id)
}

// CompleteRide puts the driver back online and increments their ride count.
func (r *DriverRepository) CompleteRide(ctx context.Context, id string) error {
	query := `UPDATE drivers SET status = 'online', total_rides = total_rides + 1 WHERE id = $1`
	result, err := r.q.ExecContext(ctx, query, id)
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

package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridefare/internal/domain"
	"ridefare/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

const rideColumns = `id, rider_id, driver_id,
	pickup_lat, pickup_lng, pickup_address, dropoff_lat, dropoff_lng, dropoff_address,
	vehicle_type, estimated_distance_km, estimated_duration_min, actual_distance_km, actual_duration_min,
	base_fare, distance_fare, time_fare, surge_fare, booking_fee, taxes, subtotal, total_fare, surge_multiplier, currency,
	status, payment_status, payment_intent_id, rating, review,
	requested_at, accepted_at, picked_up_at, completed_at, canceled_at, cancel_reason, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRide(row scanner) (*domain.Ride, error) {
	var ride domain.Ride
	var (
		driverID, intentID, review, cancelReason        sql.NullString
		actualDistance, actualDuration                  sql.NullFloat64
		rating                                          sql.NullInt64
		acceptedAt, pickedUpAt, completedAt, canceledAt sql.NullTime
	)
	err := row.Scan(
		&ride.ID, &ride.RiderID, &driverID,
		&ride.Pickup.Lat, &ride.Pickup.Lng, &ride.Pickup.Address,
		&ride.Dropoff.Lat, &ride.Dropoff.Lng, &ride.Dropoff.Address,
		&ride.VehicleTier, &ride.EstimatedDistanceKm, &ride.EstimatedDurationMin, &actualDistance, &actualDuration,
		&ride.Fare.BaseFare, &ride.Fare.DistanceFare, &ride.Fare.TimeFare, &ride.Fare.SurgeFare,
		&ride.Fare.BookingFee, &ride.Fare.Taxes, &ride.Fare.Subtotal, &ride.Fare.TotalAmount,
		&ride.Fare.SurgeMultiplier, &ride.Fare.Currency,
		&ride.Status, &ride.PaymentStatus, &intentID, &rating, &review,
		&ride.RequestedAt, &acceptedAt, &pickedUpAt, &completedAt, &canceledAt, &cancelReason,
		&ride.CreatedAt, &ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ride.DriverID = driverID.String
	ride.PaymentIntentID = intentID.String
	ride.Review = review.String
	ride.CancelReason = cancelReason.String
	ride.ActualDistanceKm = floatPtr(actualDistance)
	ride.ActualDurationMin = floatPtr(actualDuration)
	if rating.Valid {
		v := int(rating.Int64)
		ride.Rating = &v
	}
	ride.AcceptedAt = timePtr(acceptedAt)
	ride.PickedUpAt = timePtr(pickedUpAt)
	ride.CompletedAt = timePtr(completedAt)
	ride.CanceledAt = timePtr(canceledAt)
	return &ride, nil
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36, $37)
	`

	var rating sql.NullInt64
	if ride.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*ride.Rating), Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		ride.ID, ride.RiderID, nullString(ride.DriverID),
		ride.Pickup.Lat, ride.Pickup.Lng, ride.Pickup.Address,
		ride.Dropoff.Lat, ride.Dropoff.Lng, ride.Dropoff.Address,
		ride.VehicleTier, ride.EstimatedDistanceKm, ride.EstimatedDurationMin,
		nullFloat(ride.ActualDistanceKm), nullFloat(ride.ActualDurationMin),
		ride.Fare.BaseFare, ride.Fare.DistanceFare, ride.Fare.TimeFare, ride.Fare.SurgeFare,
		ride.Fare.BookingFee, ride.Fare.Taxes, ride.Fare.Subtotal, ride.Fare.TotalAmount,
		ride.Fare.SurgeMultiplier, ride.Fare.Currency,
		ride.Status, ride.PaymentStatus, nullString(ride.PaymentIntentID), rating, nullString(ride.Review),
		ride.RequestedAt, nullTime(ride.AcceptedAt), nullTime(ride.PickedUpAt),
		nullTime(ride.CompletedAt), nullTime(ride.CanceledAt), nullString(ride.CancelReason),
		ride.CreatedAt, ride.UpdatedAt,
	)
	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// ListByRider retrieves a rider's most recent rides, newest first.
func (r *RideRepository) ListByRider(ctx context.Context, riderID string, limit int) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE rider_id = $1 ORDER BY requested_at DESC LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, riderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// CountOpenNear counts requested rides with a pickup inside the box.
func (r *RideRepository) CountOpenNear(ctx context.Context, minLat, maxLat, minLng, maxLng float64) (int, error) {
	query := `
		SELECT COUNT(*) FROM rides
		WHERE status = 'requested'
		  AND pickup_lat BETWEEN $1 AND $2
		  AND pickup_lng BETWEEN $3 AND $4
	`
	var n int
	if err := r.q.QueryRowContext(ctx, query, minLat, maxLat, minLng, maxLng).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateStatus writes the lifecycle fields of ride if the stored row still
// carries the expected statuses.
func (r *RideRepository) UpdateStatus(ctx context.Context, ride *domain.Ride, expected domain.RideStatus, expectedPayment domain.PaymentStatus) error {
	query := `
		UPDATE rides
		SET status = $1, payment_status = $2, driver_id = $3, payment_intent_id = $4,
			actual_distance_km = $5, actual_duration_min = $6,
			accepted_at = $7, picked_up_at = $8, completed_at = $9, canceled_at = $10,
			cancel_reason = $11, updated_at = $12
		WHERE id = $13 AND status = $14 AND payment_status = $15
	`

	result, err := r.q.ExecContext(ctx, query,
		ride.Status, ride.PaymentStatus, nullString(ride.DriverID), nullString(ride.PaymentIntentID),
		nullFloat(ride.ActualDistanceKm), nullFloat(ride.ActualDurationMin),
		nullTime(ride.AcceptedAt), nullTime(ride.PickedUpAt), nullTime(ride.CompletedAt), nullTime(ride.CanceledAt),
		nullString(ride.CancelReason), ride.UpdatedAt,
		ride.ID, expected, expectedPayment,
	)
	if err != nil {
		return err
	}
	return rowsAffectedOrMissing(ctx, r.q, result, "rides", ride.ID)
}

// SetRating records a rating on a completed, not yet rated ride.
func (r *RideRepository) SetRating(ctx context.Context, id string, rating int, review string) error {
	query := `
		UPDATE rides SET rating = $1, review = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'completed' AND rating IS NULL
	`

	result, err := r.q.ExecContext(ctx, query, rating, nullString(review), id)
	if err != nil {
		return err
	}
	return rowsAffectedOrMissing(ctx, r.q, result, "rides", id)
}

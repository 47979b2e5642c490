package repository

import "context"

// TxRunner runs fn with ride and driver repositories bound to a single
// database transaction. The transaction commits only if fn returns nil.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(rides RideRepository, drivers DriverRepository) error) error
}

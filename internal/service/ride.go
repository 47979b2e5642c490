package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"ridefare/internal/domain"
	"ridefare/internal/fare"
	"ridefare/internal/lifecycle"
	"ridefare/internal/metrics"
	"ridefare/internal/payment"
	"ridefare/internal/redis"
	"ridefare/internal/repository"
)

const (
	rideLockTTL      = 10 * time.Second
	driverLockTTL    = 10 * time.Second
	defaultListLimit = 20
	maxListLimit     = 100
)

// errUnchanged lets a change func report that the ride is already in the
// wanted state, so nothing is written.
var errUnchanged = errors.New("ride unchanged")

// RideServiceDeps contains the collaborators of a RideService. TxRunner,
// LockStore, RideCache, Gateway and Notifier are optional.
type RideServiceDeps struct {
	RideRepo    repository.RideRepository
	DriverRepo  repository.DriverRepository
	PaymentRepo repository.PaymentRepository
	TxRunner    repository.TxRunner
	LockStore   redis.LockStoreInterface
	RideCache   redis.RideCacheInterface
	Fares       *FareService
	Gateway     payment.Gateway
	Notifier    *NotificationService
	Log         *slog.Logger
	Now         func() time.Time
}

// RideService drives rides through their lifecycle.
type RideService struct {
	rideRepo    repository.RideRepository
	driverRepo  repository.DriverRepository
	paymentRepo repository.PaymentRepository
	txRunner    repository.TxRunner
	lockStore   redis.LockStoreInterface
	rideCache   redis.RideCacheInterface
	fares       *FareService
	gateway     payment.Gateway
	notifier    *NotificationService
	log         *slog.Logger
	now         func() time.Time
}

// NewRideService creates a new RideService.
func NewRideService(deps RideServiceDeps) *RideService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &RideService{
		rideRepo:    deps.RideRepo,
		driverRepo:  deps.DriverRepo,
		paymentRepo: deps.PaymentRepo,
		txRunner:    deps.TxRunner,
		lockStore:   deps.LockStore,
		rideCache:   deps.RideCache,
		fares:       deps.Fares,
		gateway:     deps.Gateway,
		notifier:    deps.Notifier,
		log:         deps.Log,
		now:         now,
	}
}

// RequestRideRequest contains the parameters for requesting a ride.
type RequestRideRequest struct {
	RiderID     string
	Pickup      domain.Location
	Dropoff     domain.Location
	VehicleTier string
	DistanceKm  float64
	DurationMin float64
}

// CompleteRideRequest carries the measured trip, when the driver app has it.
type CompleteRideRequest struct {
	ActualDistanceKm  *float64
	ActualDurationMin *float64
}

// RequestRide prices the trip at the surge level of the pickup area and
// stores a new ride in the requested state. The fare is fixed from here on.
func (s *RideService) RequestRide(ctx context.Context, req RequestRideRequest) (*domain.Ride, error) {
	if req.RiderID == "" {
		return nil, ErrInvalidRiderID
	}
	if !isValidLocation(req.Pickup) {
		return nil, ErrInvalidPickupLocation
	}
	if !isValidLocation(req.Dropoff) {
		return nil, ErrInvalidDropoffLocation
	}

	quote, err := s.fares.QuoteTier(ctx, QuoteRequest{
		Pickup:      req.Pickup,
		DistanceKm:  req.DistanceKm,
		DurationMin: req.DurationMin,
		VehicleTier: req.VehicleTier,
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ride := &domain.Ride{
		ID:                   uuid.New().String(),
		RiderID:              req.RiderID,
		Pickup:               req.Pickup,
		Dropoff:              req.Dropoff,
		VehicleTier:          quote.VehicleTier,
		EstimatedDistanceKm:  req.DistanceKm,
		EstimatedDurationMin: req.DurationMin,
		Fare:                 quote.Fare,
		Status:               domain.RideStatusRequested,
		PaymentStatus:        domain.PaymentStatusPending,
		RequestedAt:          now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}
	metrics.RecordTransition("ride", string(domain.RideStatusRequested), nil)

	s.log.InfoContext(ctx, "ride requested",
		"ride_id", ride.ID, "vehicle_tier", ride.VehicleTier, "total", ride.Fare.TotalAmount, "surge", ride.Fare.SurgeMultiplier)
	s.notifyStatus(ctx, ride)
	return ride, nil
}

// GetRide returns a ride visible to callerID: its rider, its driver, or any
// driver while the ride is still waiting for one.
func (s *RideService) GetRide(ctx context.Context, callerID, rideID string) (*domain.Ride, error) {
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if ride.RiderID == callerID {
		return ride, nil
	}
	driver, err := s.driverFor(ctx, callerID)
	if err != nil {
		if errors.Is(err, ErrNotADriver) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if ride.DriverID == driver.ID || (ride.Status == domain.RideStatusRequested && ride.VehicleTier == driver.VehicleTier) {
		return ride, nil
	}
	return nil, ErrForbidden
}

// GetPartyRide returns a ride only to its rider or assigned driver. Unlike
// GetRide it does not admit drivers browsing open requests.
func (s *RideService) GetPartyRide(ctx context.Context, callerID, rideID string) (*domain.Ride, error) {
	ride, err := s.load(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeParty(ctx, ride, callerID); err != nil {
		return nil, err
	}
	return ride, nil
}

// ListRides returns the rider's most recent rides.
func (s *RideService) ListRides(ctx context.Context, riderID string, limit int) ([]*domain.Ride, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.rideRepo.ListByRider(ctx, riderID, limit)
}

// AssignDriver assigns the calling driver to a requested ride. The ride
// and driver rows change in one transaction while the driver lock is held,
// so a driver never holds two rides.
func (s *RideService) AssignDriver(ctx context.Context, callerID, rideID string) (*domain.Ride, error) {
	driver, err := s.driverFor(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if driver.Status != domain.DriverStatusOnline {
		return nil, ErrDriverUnavailable
	}

	if s.lockStore != nil {
		acquired, err := s.lockStore.AcquireDriverLock(ctx, driver.ID, driverLockTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrDriverUnavailable
		}
		defer s.release(ctx, "driver", driver.ID, s.lockStore.ReleaseDriverLock)

		// Another assignment may have finished between the first read and the lock.
		driver, err = s.driverRepo.GetByID(ctx, driver.ID)
		if err != nil {
			return nil, err
		}
		if driver.Status != domain.DriverStatusOnline {
			return nil, ErrDriverUnavailable
		}
	}

	_, ride, err := s.transition(ctx, rideID, func(r *domain.Ride) error {
		if err := lifecycle.ValidateTransition(r.Status, domain.RideStatusDriverAssigned); err != nil {
			metrics.RecordTransition("ride", string(domain.RideStatusDriverAssigned), err)
			return err
		}
		if r.VehicleTier != driver.VehicleTier {
			return ErrTierMismatch
		}
		r.DriverID = driver.ID
		return s.apply(r, domain.RideStatusDriverAssigned)
	}, func(ctx context.Context, prev, next *domain.Ride) error {
		return s.runInTx(ctx, func(rides repository.RideRepository, drivers repository.DriverRepository) error {
			if err := rides.UpdateStatus(ctx, next, prev.Status, prev.PaymentStatus); err != nil {
				return err
			}
			err := drivers.ClaimForRide(ctx, driver.ID)
			if errors.Is(err, repository.ErrConflict) {
				return ErrDriverUnavailable
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyStatus(ctx, ride)
	return ride, nil
}

// MarkArrived records that the assigned driver reached the pickup.
func (s *RideService) MarkArrived(ctx context.Context, callerID, rideID string) (*domain.Ride, error) {
	return s.driverStep(ctx, callerID, rideID, domain.RideStatusDriverArrived)
}

// StartRide records that the rider was picked up.
func (s *RideService) StartRide(ctx context.Context, callerID, rideID string) (*domain.Ride, error) {
	return s.driverStep(ctx, callerID, rideID, domain.RideStatusInProgress)
}

func (s *RideService) driverStep(ctx context.Context, callerID, rideID string, next domain.RideStatus) (*domain.Ride, error) {
	driver, err := s.driverFor(ctx, callerID)
	if err != nil {
		return nil, err
	}

	_, ride, err := s.transition(ctx, rideID, func(r *domain.Ride) error {
		if r.DriverID != driver.ID {
			return ErrForbidden
		}
		return s.apply(r, next)
	}, nil)
	if err != nil {
		return nil, err
	}

	s.notifyStatus(ctx, ride)
	return ride, nil
}

// CompleteRide ends the trip. It fails with lifecycle.ErrPaymentNotSettled
// until the ride's payment has succeeded. The driver goes back online in
// the same transaction.
func (s *RideService) CompleteRide(ctx context.Context, callerID, rideID string, req CompleteRideRequest) (*domain.Ride, error) {
	if !validMeasurement(req.ActualDistanceKm) {
		return nil, fmt.Errorf("%w: actual distance must be finite and non-negative", fare.ErrInvalidInput)
	}
	if !validMeasurement(req.ActualDurationMin) {
		return nil, fmt.Errorf("%w: actual duration must be finite and non-negative", fare.ErrInvalidInput)
	}

	driver, err := s.driverFor(ctx, callerID)
	if err != nil {
		return nil, err
	}

	_, ride, err := s.transition(ctx, rideID, func(r *domain.Ride) error {
		if r.DriverID != driver.ID {
			return ErrForbidden
		}
		if err := s.apply(r, domain.RideStatusCompleted); err != nil {
			return err
		}
		r.ActualDistanceKm = req.ActualDistanceKm
		r.ActualDurationMin = req.ActualDurationMin
		return nil
	}, func(ctx context.Context, prev, next *domain.Ride) error {
		return s.runInTx(ctx, func(rides repository.RideRepository, drivers repository.DriverRepository) error {
			if err := rides.UpdateStatus(ctx, next, prev.Status, prev.PaymentStatus); err != nil {
				return err
			}
			return drivers.CompleteRide(ctx, driver.ID)
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "ride completed", "ride_id", ride.ID, "driver_id", ride.DriverID)
	s.notifyStatus(ctx, ride)
	return ride, nil
}

// CancelRide cancels a ride on behalf of its rider or assigned driver. An
// unsettled payment is canceled with it, locally and at the processor, and
// an assigned driver goes back online.
func (s *RideService) CancelRide(ctx context.Context, callerID, rideID, reason string) (*domain.Ride, error) {
	prev, ride, err := s.transition(ctx, rideID, func(r *domain.Ride) error {
		if err := s.authorizeParty(ctx, r, callerID); err != nil {
			return err
		}
		r.CancelReason = reason
		return s.apply(r, domain.RideStatusCanceled)
	}, func(ctx context.Context, prev, next *domain.Ride) error {
		if prev.DriverID == "" {
			return s.rideRepo.UpdateStatus(ctx, next, prev.Status, prev.PaymentStatus)
		}
		return s.runInTx(ctx, func(rides repository.RideRepository, drivers repository.DriverRepository) error {
			if err := rides.UpdateStatus(ctx, next, prev.Status, prev.PaymentStatus); err != nil {
				return err
			}
			return drivers.UpdateStatus(ctx, prev.DriverID, domain.DriverStatusOnline)
		})
	})
	if err != nil {
		return nil, err
	}

	if prev.PaymentStatus != ride.PaymentStatus {
		metrics.RecordTransition("payment", string(ride.PaymentStatus), nil)
		s.cancelPayment(ctx, ride, prev.PaymentStatus)
	}

	s.log.InfoContext(ctx, "ride canceled", "ride_id", ride.ID, "from", prev.Status, "reason", reason)
	s.notifyStatus(ctx, ride)
	return ride, nil
}

// cancelPayment voids the ride's intent after the ride was canceled. The
// ride is already canceled at this point, so failures are logged only.
func (s *RideService) cancelPayment(ctx context.Context, ride *domain.Ride, from domain.PaymentStatus) {
	if ride.PaymentIntentID == "" {
		return
	}
	if s.gateway != nil {
		if err := s.gateway.CancelPaymentIntent(ctx, ride.PaymentIntentID); err != nil {
			s.log.WarnContext(ctx, "cancel payment intent failed", "ride_id", ride.ID, "intent_id", ride.PaymentIntentID, "error", err)
		}
	}
	if s.paymentRepo != nil {
		err := s.paymentRepo.UpdateStatus(ctx, ride.PaymentIntentID, from, domain.PaymentStatusCanceled)
		if err != nil {
			s.log.WarnContext(ctx, "mark payment canceled failed", "ride_id", ride.ID, "intent_id", ride.PaymentIntentID, "error", err)
		}
	}
}

// RateRide stores the rider's 1-5 rating of a completed ride. A ride can
// be rated once.
func (s *RideService) RateRide(ctx context.Context, riderID, rideID string, rating int, review string) (*domain.Ride, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.RiderID != riderID {
		return nil, ErrForbidden
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, ErrRideNotCompleted
	}

	if err := s.rideRepo.SetRating(ctx, rideID, rating, review); err != nil {
		return nil, err
	}
	s.invalidate(ctx, rideID)

	ride.Rating = &rating
	ride.Review = review
	return ride, nil
}

// AttachPaymentIntent links a newly created intent to the ride and moves
// its payment from pending to processing.
func (s *RideService) AttachPaymentIntent(ctx context.Context, rideID, intentID string) (*domain.Ride, error) {
	_, ride, err := s.transition(ctx, rideID, func(r *domain.Ride) error {
		if r.PaymentIntentID != "" && r.PaymentIntentID != intentID {
			return fmt.Errorf("%w: ride already has intent %s", repository.ErrConflict, r.PaymentIntentID)
		}
		if r.PaymentIntentID == intentID && r.PaymentStatus != domain.PaymentStatusPending {
			return errUnchanged
		}
		r.PaymentIntentID = intentID
		// A webhook may already have moved the payment on.
		if r.PaymentStatus != domain.PaymentStatusPending {
			return nil
		}
		return s.applyPayment(r, domain.PaymentStatusProcessing)
	}, nil)
	if err != nil {
		return nil, err
	}
	s.notifyPayment(ctx, ride)
	return ride, nil
}

// ApplyPaymentStatus records the processor's latest status for the ride's
// payment. Reporting the status the ride already has is a no-op, so
// redelivered webhooks are harmless.
func (s *RideService) ApplyPaymentStatus(ctx context.Context, rideID string, status domain.PaymentStatus) (*domain.Ride, error) {
	prev, ride, err := s.transition(ctx, rideID, func(r *domain.Ride) error {
		if r.PaymentStatus == status {
			return errUnchanged
		}
		return s.applyPayment(r, status)
	}, nil)
	if err != nil {
		return nil, err
	}
	if prev.PaymentStatus != ride.PaymentStatus {
		s.notifyPayment(ctx, ride)
	}
	return ride, nil
}

// persistFunc writes next, which was derived from prev.
type persistFunc func(ctx context.Context, prev, next *domain.Ride) error

// transition runs change against a fresh copy of the ride while holding the
// ride lock, then persists it with a compare-and-swap on the previous
// statuses. It returns the ride before and after the change.
func (s *RideService) transition(ctx context.Context, rideID string, change func(*domain.Ride) error, persist persistFunc) (*domain.Ride, *domain.Ride, error) {
	if rideID == "" {
		return nil, nil, ErrInvalidRideID
	}

	unlock, err := s.lockRide(ctx, rideID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	current, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, nil, err
	}

	next := current.Clone()
	if err := change(next); err != nil {
		if errors.Is(err, errUnchanged) {
			return current, current, nil
		}
		return nil, nil, err
	}

	if persist == nil {
		persist = func(ctx context.Context, prev, next *domain.Ride) error {
			return s.rideRepo.UpdateStatus(ctx, next, prev.Status, prev.PaymentStatus)
		}
	}
	if err := persist(ctx, current, next); err != nil {
		return nil, nil, err
	}

	s.invalidate(ctx, rideID)
	return current, next, nil
}

func (s *RideService) apply(ride *domain.Ride, next domain.RideStatus) error {
	err := lifecycle.Apply(ride, next, s.now().UTC())
	metrics.RecordTransition("ride", string(next), err)
	return err
}

func (s *RideService) applyPayment(ride *domain.Ride, next domain.PaymentStatus) error {
	err := lifecycle.ApplyPayment(ride, next)
	metrics.RecordTransition("payment", string(next), err)
	if err != nil {
		return err
	}
	if now := s.now().UTC(); now.After(ride.UpdatedAt) {
		ride.UpdatedAt = now
	}
	return nil
}

func (s *RideService) lockRide(ctx context.Context, rideID string) (func(), error) {
	if s.lockStore == nil {
		return func() {}, nil
	}
	acquired, err := s.lockStore.AcquireRideLock(ctx, rideID, rideLockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrRideBusy
	}
	return func() { s.release(ctx, "ride", rideID, s.lockStore.ReleaseRideLock) }, nil
}

func (s *RideService) release(ctx context.Context, kind, id string, release func(context.Context, string) error) {
	if err := release(context.WithoutCancel(ctx), id); err != nil {
		s.log.WarnContext(ctx, "release lock failed", "kind", kind, "id", id, "error", err)
	}
}

func (s *RideService) runInTx(ctx context.Context, fn func(rides repository.RideRepository, drivers repository.DriverRepository) error) error {
	if s.txRunner == nil {
		return fn(s.rideRepo, s.driverRepo)
	}
	return s.txRunner.RunInTx(ctx, fn)
}

// load reads a ride through the cache.
func (s *RideService) load(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	if s.rideCache != nil {
		cached, err := s.rideCache.GetRide(ctx, rideID)
		if err != nil {
			s.log.DebugContext(ctx, "ride cache read failed", "ride_id", rideID, "error", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if s.rideCache != nil {
		if err := s.rideCache.SetRide(ctx, ride); err != nil {
			s.log.DebugContext(ctx, "ride cache write failed", "ride_id", rideID, "error", err)
		}
	}
	return ride, nil
}

func (s *RideService) invalidate(ctx context.Context, rideID string) {
	if s.rideCache == nil {
		return
	}
	if err := s.rideCache.InvalidateRide(ctx, rideID); err != nil {
		s.log.WarnContext(ctx, "ride cache invalidate failed", "ride_id", rideID, "error", err)
	}
}

// driverFor returns the driver profile owned by userID.
func (s *RideService) driverFor(ctx context.Context, userID string) (*domain.Driver, error) {
	if userID == "" {
		return nil, ErrNotADriver
	}
	driver, err := s.driverRepo.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotADriver
	}
	if err != nil {
		return nil, err
	}
	return driver, nil
}

// validMeasurement accepts an absent value or a finite non-negative one.
func validMeasurement(v *float64) bool {
	return v == nil || (*v >= 0 && !math.IsInf(*v, 0) && !math.IsNaN(*v))
}

// authorizeParty allows the ride's rider and its assigned driver.
func (s *RideService) authorizeParty(ctx context.Context, ride *domain.Ride, callerID string) error {
	if ride.RiderID == callerID {
		return nil
	}
	if ride.DriverID == "" {
		return ErrForbidden
	}
	driver, err := s.driverFor(ctx, callerID)
	if errors.Is(err, ErrNotADriver) {
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if driver.ID != ride.DriverID {
		return ErrForbidden
	}
	return nil
}

func (s *RideService) notifyStatus(ctx context.Context, ride *domain.Ride) {
	if s.notifier != nil {
		s.notifier.NotifyRideStatus(ctx, ride)
	}
}

func (s *RideService) notifyPayment(ctx context.Context, ride *domain.Ride) {
	if s.notifier != nil {
		s.notifier.NotifyPaymentStatus(ctx, ride)
	}
}

func isValidLocation(l domain.Location) bool {
	return isValidLatitude(l.Lat) && isValidLongitude(l.Lng)
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

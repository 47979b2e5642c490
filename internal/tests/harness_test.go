package tests

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ridefare/internal/domain"
	"ridefare/internal/fare"
	"ridefare/internal/logger"
	"ridefare/internal/payment"
	"ridefare/internal/redis"
	"ridefare/internal/service"
)

const (
	testWebhookSecret = "whsec_test"
	riderID           = "rider-1"
)

// testClock hands out strictly increasing times.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

// harness wires the services against in-memory collaborators.
type harness struct {
	rides     *MockRideRepository
	drivers   *MockDriverRepository
	payments  *MockPaymentRepository
	users     *MockUserRepository
	tx        *MockTxRunner
	locks     *MockLockStore
	cache     *MockRideCache
	locations *MockLocationStore
	publisher *MockPublisher
	gateway   *payment.MockGateway

	fares      *service.FareService
	rideSvc    *service.RideService
	paymentSvc *service.PaymentService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	calc, err := fare.New(fare.DefaultConfig())
	if err != nil {
		t.Fatalf("fare.New: %v", err)
	}
	log := logger.Discard()

	h := &harness{
		rides:     NewMockRideRepository(),
		drivers:   NewMockDriverRepository(),
		payments:  NewMockPaymentRepository(),
		users:     NewMockUserRepository(),
		locks:     NewMockLockStore(),
		cache:     NewMockRideCache(),
		locations: NewMockLocationStore(),
		publisher: NewMockPublisher(),
		gateway:   payment.NewMockGateway(testWebhookSecret),
	}
	h.tx = NewMockTxRunner(h.rides, h.drivers)
	h.locations.SetLocations(supplyAround(downtown, 20))

	surge := service.NewSurgeService(h.locations, h.rides, log)
	h.fares = service.NewFareService(calc, surge, log)
	h.rideSvc = service.NewRideService(service.RideServiceDeps{
		RideRepo:    h.rides,
		DriverRepo:  h.drivers,
		PaymentRepo: h.payments,
		TxRunner:    h.tx,
		LockStore:   h.locks,
		RideCache:   h.cache,
		Fares:       h.fares,
		Gateway:     h.gateway,
		Notifier:    service.NewNotificationService(h.publisher, log),
		Log:         log,
		Now:         newTestClock().Now,
	})
	h.paymentSvc = service.NewPaymentService(h.payments, h.users, h.rideSvc, h.gateway, log)
	return h
}

// addDriver stores an online driver profile owned by userID.
func (h *harness) addDriver(id, userID string, tier domain.VehicleTier) {
	h.drivers.AddDriver(&domain.Driver{
		ID:           id,
		UserID:       userID,
		Name:         "Driver " + id,
		Phone:        "+15550100",
		LicensePlate: "ABC123",
		VehicleTier:  tier,
		Status:       domain.DriverStatusOnline,
		Rating:       5.0,
	})
}

// requestRide books a 10 km, 15 minute economy ride downtown. The harness
// seeds enough supply there that a handful of open rides prices without surge.
func (h *harness) requestRide(t *testing.T) *domain.Ride {
	t.Helper()
	ride, err := h.rideSvc.RequestRide(context.Background(), service.RequestRideRequest{
		RiderID:     riderID,
		Pickup:      domain.Location{Lat: 37.7749, Lng: -122.4194},
		Dropoff:     domain.Location{Lat: 37.8044, Lng: -122.2712},
		VehicleTier: "economy",
		DistanceKm:  10,
		DurationMin: 15,
	})
	if err != nil {
		t.Fatalf("RequestRide: %v", err)
	}
	return ride
}

// payRide opens an intent for the ride and settles it at the processor.
func (h *harness) payRide(t *testing.T, rideID string) *domain.Payment {
	t.Helper()
	ctx := context.Background()
	res, err := h.paymentSvc.CreateIntent(ctx, riderID, rideID)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	h.gateway.SetStatus(res.Payment.ID, domain.PaymentStatusSucceeded)
	p, err := h.paymentSvc.Confirm(ctx, riderID, res.Payment.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	return p
}

// driveToInProgress moves a fresh ride through assignment up to in_progress.
func (h *harness) driveToInProgress(t *testing.T, driverUserID, rideID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.rideSvc.AssignDriver(ctx, driverUserID, rideID); err != nil {
		t.Fatalf("AssignDriver: %v", err)
	}
	if _, err := h.rideSvc.MarkArrived(ctx, driverUserID, rideID); err != nil {
		t.Fatalf("MarkArrived: %v", err)
	}
	if _, err := h.rideSvc.StartRide(ctx, driverUserID, rideID); err != nil {
		t.Fatalf("StartRide: %v", err)
	}
}

// supplyAround places n online drivers at loc in the geo index.
func supplyAround(loc domain.Location, n int) []redis.DriverLocation {
	out := make([]redis.DriverLocation, n)
	for i := range out {
		out[i] = redis.DriverLocation{DriverID: fmt.Sprintf("supply-%02d", i), Lat: loc.Lat, Lng: loc.Lng}
	}
	return out
}

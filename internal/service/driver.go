package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ridefare/internal/domain"
	"ridefare/internal/redis"
	"ridefare/internal/repository"
)

// DriverService handles driver operations.
type DriverService struct {
	locationStore redis.LocationStoreInterface
	cacheStore    *redis.CacheStore
	driverRepo    repository.DriverRepository
	log           *slog.Logger
}

// NewDriverService creates a new DriverService. cacheStore may be nil.
func NewDriverService(
	locationStore redis.LocationStoreInterface,
	cacheStore *redis.CacheStore,
	driverRepo repository.DriverRepository,
	log *slog.Logger,
) *DriverService {
	return &DriverService{
		locationStore: locationStore,
		cacheStore:    cacheStore,
		driverRepo:    driverRepo,
		log:           log,
	}
}

// RegisterDriverRequest contains the parameters for driver registration.
type RegisterDriverRequest struct {
	UserID       string
	Name         string
	Phone        string
	LicensePlate string
	VehicleTier  string
}

// UpdateLocationRequest contains the parameters for updating driver location.
type UpdateLocationRequest struct {
	CallerID string
	DriverID string
	Lat      float64
	Lng      float64
}

// Register creates the calling user's driver profile. A user has at most one.
func (s *DriverService) Register(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	if req.UserID == "" {
		return nil, ErrInvalidDriverID
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Phone) == "" || strings.TrimSpace(req.LicensePlate) == "" {
		return nil, ErrInvalidDriverProfile
	}
	tier, err := parseTier(req.VehicleTier)
	if err != nil {
		return nil, err
	}

	// Check if driver already exists
	_, err = s.driverRepo.GetByUserID(ctx, req.UserID)
	if err == nil {
		return nil, ErrDriverAlreadyRegistered
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	driver := &domain.Driver{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		LicensePlate: strings.ToUpper(strings.TrimSpace(req.LicensePlate)),
		VehicleTier:  tier,
		Status:       domain.DriverStatusOffline,
		Rating:       5.0,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.driverRepo.Create(ctx, driver); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "driver registered", "driver_id", driver.ID, "vehicle_tier", driver.VehicleTier)
	return driver, nil
}

// List returns all drivers.
func (s *DriverService) List(ctx context.Context) ([]*domain.Driver, error) {
	return s.driverRepo.GetAll(ctx)
}

// UpdateLocation updates a driver's position in the geo index. An offline
// driver comes online; a driver on a trip stays on it.
func (s *DriverService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) error {
	if req.DriverID == "" {
		return ErrInvalidDriverID
	}

	if !isValidLatitude(req.Lat) || !isValidLongitude(req.Lng) {
		return ErrInvalidLocation
	}

	driver, err := s.owned(ctx, req.CallerID, req.DriverID)
	if err != nil {
		return err
	}

	// Update location in Redis (primary real-time data store)
	if err := s.locationStore.UpdateLocation(ctx, driver.ID, req.Lat, req.Lng); err != nil {
		return err
	}

	if driver.Status == domain.DriverStatusOffline {
		if err := s.driverRepo.UpdateStatus(ctx, driver.ID, domain.DriverStatusOnline); err != nil {
			return err
		}
		driver.Status = domain.DriverStatusOnline
	}

	if s.cacheStore != nil {
		if driver.Status == domain.DriverStatusOnline {
			_ = s.cacheStore.AddAvailableDriver(ctx, driver.ID)
		}
		_ = s.cacheStore.SetDriver(ctx, &redis.CachedDriver{
			ID:          driver.ID,
			Name:        driver.Name,
			Phone:       driver.Phone,
			Status:      string(driver.Status),
			VehicleTier: string(driver.VehicleTier),
		})
	}

	return nil
}

// SetDriverOffline takes a driver out of the geo index. A driver on a trip
// must finish or cancel it first.
func (s *DriverService) SetDriverOffline(ctx context.Context, callerID, driverID string) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	driver, err := s.owned(ctx, callerID, driverID)
	if err != nil {
		return err
	}
	if driver.Status == domain.DriverStatusOnTrip {
		return ErrDriverUnavailable
	}

	if err := s.driverRepo.UpdateStatus(ctx, driverID, domain.DriverStatusOffline); err != nil {
		return err
	}

	// Remove from Redis GEO index
	if err := s.locationStore.RemoveLocation(ctx, driverID); err != nil {
		return err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateDriver(ctx, driverID)
		_ = s.cacheStore.RemoveAvailableDriver(ctx, driverID)
	}

	return nil
}

// owned loads driverID and checks it belongs to callerID.
func (s *DriverService) owned(ctx context.Context, callerID, driverID string) (*domain.Driver, error) {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if driver.UserID != callerID {
		return nil, ErrForbidden
	}
	return driver, nil
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ridefare/internal/domain"
)

// ReceiptService handles receipt generation.
type ReceiptService struct {
	rides    *RideService
	notifier *NotificationService
	now      func() time.Time
}

// NewReceiptService creates a new ReceiptService. notifier may be nil.
func NewReceiptService(rides *RideService, notifier *NotificationService) *ReceiptService {
	return &ReceiptService{
		rides:    rides,
		notifier: notifier,
		now:      time.Now,
	}
}

// GenerateReceipt builds the receipt of a completed ride. Measured distance
// and duration are used when the driver reported them, the estimates
// otherwise. The fare is the one fixed at request time.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, callerID, rideID string) (*domain.Receipt, error) {
	ride, err := s.rides.GetRide(ctx, callerID, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, ErrRideNotCompleted
	}

	distance := ride.EstimatedDistanceKm
	if ride.ActualDistanceKm != nil {
		distance = *ride.ActualDistanceKm
	}
	duration := ride.EstimatedDurationMin
	if ride.ActualDurationMin != nil {
		duration = *ride.ActualDurationMin
	}

	receipt := &domain.Receipt{
		RideID:          ride.ID,
		RiderID:         ride.RiderID,
		DriverID:        ride.DriverID,
		VehicleTier:     ride.VehicleTier,
		Pickup:          ride.Pickup,
		Dropoff:         ride.Dropoff,
		DistanceKm:      distance,
		DurationMin:     duration,
		Fare:            ride.Fare,
		PaymentStatus:   ride.PaymentStatus,
		PaymentIntentID: ride.PaymentIntentID,
		IssuedAt:        s.now().UTC(),
	}
	if ride.PickedUpAt != nil {
		receipt.StartedAt = *ride.PickedUpAt
	}
	if ride.CompletedAt != nil {
		receipt.EndedAt = *ride.CompletedAt
	}

	if s.notifier != nil {
		s.notifier.NotifyReceiptReady(ctx, receipt)
	}
	return receipt, nil
}

// FormatReceipt formats the receipt as plain text for email or print.
func (s *ReceiptService) FormatReceipt(receipt *domain.Receipt) string {
	cur := strings.ToUpper(receipt.Fare.Currency)
	f := receipt.Fare

	var b strings.Builder
	b.WriteString("=====================================\n")
	b.WriteString("            RIDE RECEIPT\n")
	b.WriteString("=====================================\n")
	fmt.Fprintf(&b, "Ride ID: %s\n", receipt.RideID)
	fmt.Fprintf(&b, "Date:    %s\n\n", receipt.EndedAt.Format("Jan 02, 2006 3:04 PM"))

	b.WriteString("TRIP DETAILS\n")
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "Vehicle:  %s\n", receipt.VehicleTier)
	fmt.Fprintf(&b, "Pickup:   %s\n", formatLocation(receipt.Pickup))
	fmt.Fprintf(&b, "Dropoff:  %s\n", formatLocation(receipt.Dropoff))
	fmt.Fprintf(&b, "Duration: %.0f min\n", receipt.DurationMin)
	fmt.Fprintf(&b, "Distance: %.2f km\n\n", receipt.DistanceKm)

	b.WriteString("FARE BREAKDOWN\n")
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "Base fare:        %s %.2f\n", cur, f.BaseFare)
	fmt.Fprintf(&b, "Distance:         %s %.2f\n", cur, f.DistanceFare)
	fmt.Fprintf(&b, "Time:             %s %.2f\n", cur, f.TimeFare)
	if f.SurgeFare != 0 {
		fmt.Fprintf(&b, "Surge (%.2fx):    %s %.2f\n", f.SurgeMultiplier, cur, f.SurgeFare)
	}
	fmt.Fprintf(&b, "Booking fee:      %s %.2f\n", cur, f.BookingFee)
	fmt.Fprintf(&b, "Taxes:            %s %.2f\n", cur, f.Taxes)
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "TOTAL:            %s %.2f\n\n", cur, f.TotalAmount)

	b.WriteString("PAYMENT\n")
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "Status: %s\n", receipt.PaymentStatus)
	if receipt.PaymentIntentID != "" {
		fmt.Fprintf(&b, "Reference: %s\n", receipt.PaymentIntentID)
	}
	b.WriteString("\n=====================================\n")
	b.WriteString("     Thank you for riding with us!\n")
	b.WriteString("=====================================\n")
	return b.String()
}

func formatLocation(l domain.Location) string {
	if l.Address != "" {
		return l.Address
	}
	return fmt.Sprintf("(%.4f, %.4f)", l.Lat, l.Lng)
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ridefare/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationRideRequested  NotificationType = "RIDE_REQUESTED"
	NotificationDriverAssigned NotificationType = "DRIVER_ASSIGNED"
	NotificationDriverArrived  NotificationType = "DRIVER_ARRIVED"
	NotificationTripStarted    NotificationType = "TRIP_STARTED"
	NotificationTripCompleted  NotificationType = "TRIP_COMPLETED"
	NotificationRideCancelled  NotificationType = "RIDE_CANCELLED"
	NotificationPaymentUpdated NotificationType = "PAYMENT_UPDATED"
	NotificationReceiptReady   NotificationType = "RECEIPT_READY"
)

var rideNotifications = map[domain.RideStatus]NotificationType{
	domain.RideStatusRequested:      NotificationRideRequested,
	domain.RideStatusDriverAssigned: NotificationDriverAssigned,
	domain.RideStatusDriverArrived:  NotificationDriverArrived,
	domain.RideStatusInProgress:     NotificationTripStarted,
	domain.RideStatusCompleted:      NotificationTripCompleted,
	domain.RideStatusCanceled:       NotificationRideCancelled,
}

// Notification is the event published when a ride or its payment changes.
type Notification struct {
	Type          NotificationType     `json:"type"`
	RideID        string               `json:"ride_id"`
	RiderID       string               `json:"rider_id"`
	DriverID      string               `json:"driver_id,omitempty"`
	RideStatus    domain.RideStatus    `json:"ride_status"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	Message       string               `json:"message"`
	CreatedAt     time.Time            `json:"created_at"`
}

// EventPublisher delivers notifications to the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, v any) error
}

// NotificationService fans ride events out to the log and, when
// configured, the event bus. Delivery failures never fail the caller.
type NotificationService struct {
	publisher EventPublisher
	log       *slog.Logger
}

// NewNotificationService creates a new NotificationService. publisher may be nil.
func NewNotificationService(publisher EventPublisher, log *slog.Logger) *NotificationService {
	return &NotificationService{publisher: publisher, log: log}
}

// NotifyRideStatus announces the ride's current status.
func (s *NotificationService) NotifyRideStatus(ctx context.Context, ride *domain.Ride) {
	typ, ok := rideNotifications[ride.Status]
	if !ok {
		return
	}
	msg := fmt.Sprintf("Ride is now %s", ride.Status)
	if ride.Status == domain.RideStatusCompleted {
		msg = fmt.Sprintf("Your trip has ended. Total fare: %.2f %s", ride.Fare.TotalAmount, ride.Fare.Currency)
	}
	s.send(ctx, s.build(typ, ride, msg))
}

// NotifyPaymentStatus announces a change in the ride's payment.
func (s *NotificationService) NotifyPaymentStatus(ctx context.Context, ride *domain.Ride) {
	s.send(ctx, s.build(NotificationPaymentUpdated, ride, fmt.Sprintf("Payment is now %s", ride.PaymentStatus)))
}

// NotifyReceiptReady notifies the rider that the receipt is ready.
func (s *NotificationService) NotifyReceiptReady(ctx context.Context, receipt *domain.Receipt) {
	s.send(ctx, Notification{
		Type:          NotificationReceiptReady,
		RideID:        receipt.RideID,
		RiderID:       receipt.RiderID,
		DriverID:      receipt.DriverID,
		RideStatus:    domain.RideStatusCompleted,
		PaymentStatus: receipt.PaymentStatus,
		Message:       fmt.Sprintf("Your receipt for %.2f %s is ready", receipt.Fare.TotalAmount, receipt.Fare.Currency),
		CreatedAt:     time.Now().UTC(),
	})
}

func (s *NotificationService) build(typ NotificationType, ride *domain.Ride, msg string) Notification {
	return Notification{
		Type:          typ,
		RideID:        ride.ID,
		RiderID:       ride.RiderID,
		DriverID:      ride.DriverID,
		RideStatus:    ride.Status,
		PaymentStatus: ride.PaymentStatus,
		Message:       msg,
		CreatedAt:     time.Now().UTC(),
	}
}

func (s *NotificationService) send(ctx context.Context, n Notification) {
	s.log.InfoContext(ctx, "notification",
		"type", n.Type, "ride_id", n.RideID, "ride_status", n.RideStatus, "payment_status", n.PaymentStatus)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, "ride.status."+n.RideID, n); err != nil {
		s.log.WarnContext(ctx, "publish notification failed", "ride_id", n.RideID, "error", err)
	}
}

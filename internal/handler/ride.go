package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ridefare/internal/domain"
	"ridefare/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService    *service.RideService
	receiptService *service.ReceiptService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService, receiptService *service.ReceiptService) *RideHandler {
	return &RideHandler{
		rideService:    rideService,
		receiptService: receiptService,
	}
}

// CreateRideRequest is the HTTP request body for requesting a ride.
type CreateRideRequest struct {
	Pickup      LocationPayload `json:"pickup"`
	Dropoff     LocationPayload `json:"dropoff"`
	VehicleTier string          `json:"vehicle_tier"`
	DistanceKm  float64         `json:"distance_km"`
	DurationMin float64         `json:"duration_min"`
}

// CompleteRideRequest is the optional HTTP request body for completing a ride.
type CompleteRideRequest struct {
	ActualDistanceKm  *float64 `json:"actual_distance_km,omitempty"`
	ActualDurationMin *float64 `json:"actual_duration_min,omitempty"`
}

// CancelRideRequest is the optional HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RateRideRequest is the HTTP request body for rating a ride.
type RateRideRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review,omitempty"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID                   string               `json:"id"`
	RiderID              string               `json:"rider_id"`
	DriverID             string               `json:"driver_id,omitempty"`
	Pickup               LocationPayload      `json:"pickup"`
	Dropoff              LocationPayload      `json:"dropoff"`
	VehicleTier          string               `json:"vehicle_tier"`
	EstimatedDistanceKm  float64              `json:"estimated_distance_km"`
	EstimatedDurationMin float64              `json:"estimated_duration_min"`
	ActualDistanceKm     *float64             `json:"actual_distance_km,omitempty"`
	ActualDurationMin    *float64             `json:"actual_duration_min,omitempty"`
	Fare                 domain.FareBreakdown `json:"fare"`
	Status               string               `json:"status"`
	PaymentStatus        string               `json:"payment_status"`
	PaymentIntentID      string               `json:"payment_intent_id,omitempty"`
	Rating               *int                 `json:"rating,omitempty"`
	Review               string               `json:"review,omitempty"`
	RequestedAt          time.Time            `json:"requested_at"`
	AcceptedAt           *time.Time           `json:"accepted_at,omitempty"`
	PickedUpAt           *time.Time           `json:"picked_up_at,omitempty"`
	CompletedAt          *time.Time           `json:"completed_at,omitempty"`
	CanceledAt           *time.Time           `json:"canceled_at,omitempty"`
	CancelReason         string               `json:"cancel_reason,omitempty"`
}

func toRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:                   r.ID,
		RiderID:              r.RiderID,
		DriverID:             r.DriverID,
		Pickup:               locationPayload(r.Pickup),
		Dropoff:              locationPayload(r.Dropoff),
		VehicleTier:          string(r.VehicleTier),
		EstimatedDistanceKm:  r.EstimatedDistanceKm,
		EstimatedDurationMin: r.EstimatedDurationMin,
		ActualDistanceKm:     r.ActualDistanceKm,
		ActualDurationMin:    r.ActualDurationMin,
		Fare:                 r.Fare,
		Status:               string(r.Status),
		PaymentStatus:        string(r.PaymentStatus),
		PaymentIntentID:      r.PaymentIntentID,
		Rating:               r.Rating,
		Review:               r.Review,
		RequestedAt:          r.RequestedAt,
		AcceptedAt:           r.AcceptedAt,
		PickedUpAt:           r.PickedUpAt,
		CompletedAt:          r.CompletedAt,
		CanceledAt:           r.CanceledAt,
		CancelReason:         r.CancelReason,
	}
}

// ReceiptResponse is the HTTP representation of a receipt.
type ReceiptResponse struct {
	RideID          string               `json:"ride_id"`
	RiderID         string               `json:"rider_id"`
	DriverID        string               `json:"driver_id"`
	VehicleTier     string               `json:"vehicle_tier"`
	Pickup          LocationPayload      `json:"pickup"`
	Dropoff         LocationPayload      `json:"dropoff"`
	DistanceKm      float64              `json:"distance_km"`
	DurationMin     float64              `json:"duration_min"`
	Fare            domain.FareBreakdown `json:"fare"`
	PaymentStatus   string               `json:"payment_status"`
	PaymentIntentID string               `json:"payment_intent_id,omitempty"`
	StartedAt       time.Time            `json:"started_at"`
	EndedAt         time.Time            `json:"ended_at"`
	IssuedAt        time.Time            `json:"issued_at"`
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ride, err := h.rideService.RequestRide(c.Request.Context(), service.RequestRideRequest{
		RiderID:     callerID(c),
		Pickup:      req.Pickup.toDomain(),
		Dropoff:     req.Dropoff.toDomain(),
		VehicleTier: req.VehicleTier,
		DistanceKm:  req.DistanceKm,
		DurationMin: req.DurationMin,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// ListRides handles GET /v1/rides
func (h *RideHandler) ListRides(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rides, err := h.rideService.ListRides(c.Request.Context(), callerID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		response = append(response, toRideResponse(r))
	}
	respondJSON(c, http.StatusOK, gin.H{"rides": response})
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// AssignDriver handles POST /v1/rides/:id/assign
func (h *RideHandler) AssignDriver(c *gin.Context) {
	h.respondRide(c)(h.rideService.AssignDriver(c.Request.Context(), callerID(c), c.Param("id")))
}

// MarkArrived handles POST /v1/rides/:id/arrive
func (h *RideHandler) MarkArrived(c *gin.Context) {
	h.respondRide(c)(h.rideService.MarkArrived(c.Request.Context(), callerID(c), c.Param("id")))
}

// StartRide handles POST /v1/rides/:id/start
func (h *RideHandler) StartRide(c *gin.Context) {
	h.respondRide(c)(h.rideService.StartRide(c.Request.Context(), callerID(c), c.Param("id")))
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	var req CompleteRideRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	h.respondRide(c)(h.rideService.CompleteRide(c.Request.Context(), callerID(c), c.Param("id"), service.CompleteRideRequest{
		ActualDistanceKm:  req.ActualDistanceKm,
		ActualDurationMin: req.ActualDurationMin,
	}))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	h.respondRide(c)(h.rideService.CancelRide(c.Request.Context(), callerID(c), c.Param("id"), req.Reason))
}

// RateRide handles POST /v1/rides/:id/rate
func (h *RideHandler) RateRide(c *gin.Context) {
	var req RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	h.respondRide(c)(h.rideService.RateRide(c.Request.Context(), callerID(c), c.Param("id"), req.Rating, req.Review))
}

// GetReceipt handles GET /v1/rides/:id/receipt. ?format=text returns the
// printable version.
func (h *RideHandler) GetReceipt(c *gin.Context) {
	receipt, err := h.receiptService.GenerateReceipt(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, h.receiptService.FormatReceipt(receipt))
		return
	}

	respondJSON(c, http.StatusOK, ReceiptResponse{
		RideID:          receipt.RideID,
		RiderID:         receipt.RiderID,
		DriverID:        receipt.DriverID,
		VehicleTier:     string(receipt.VehicleTier),
		Pickup:          locationPayload(receipt.Pickup),
		Dropoff:         locationPayload(receipt.Dropoff),
		DistanceKm:      receipt.DistanceKm,
		DurationMin:     receipt.DurationMin,
		Fare:            receipt.Fare,
		PaymentStatus:   string(receipt.PaymentStatus),
		PaymentIntentID: receipt.PaymentIntentID,
		StartedAt:       receipt.StartedAt,
		EndedAt:         receipt.EndedAt,
		IssuedAt:        receipt.IssuedAt,
	})
}

// respondRide writes the outcome of a ride operation.
func (h *RideHandler) respondRide(c *gin.Context) func(*domain.Ride, error) {
	return func(ride *domain.Ride, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		respondJSON(c, http.StatusOK, toRideResponse(ride))
	}
}

// bindOptionalJSON binds the body when there is one.
func bindOptionalJSON(c *gin.Context, v any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	err := c.ShouldBindJSON(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

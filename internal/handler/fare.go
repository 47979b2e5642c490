package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridefare/internal/domain"
	"ridefare/internal/service"
)

// FareHandler serves price lists and estimates.
type FareHandler struct {
	fareService *service.FareService
}

// NewFareHandler creates a new FareHandler.
func NewFareHandler(fareService *service.FareService) *FareHandler {
	return &FareHandler{fareService: fareService}
}

// LocationPayload is a point on the map as sent by clients.
type LocationPayload struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

func (l LocationPayload) toDomain() domain.Location {
	return domain.Location{Lat: l.Lat, Lng: l.Lng, Address: l.Address}
}

func locationPayload(l domain.Location) LocationPayload {
	return LocationPayload{Lat: l.Lat, Lng: l.Lng, Address: l.Address}
}

// EstimateRequest is the HTTP request body for a fare estimate.
type EstimateRequest struct {
	Pickup      LocationPayload `json:"pickup"`
	DistanceKm  float64         `json:"distance_km"`
	DurationMin float64         `json:"duration_min"`
	VehicleTier string          `json:"vehicle_tier,omitempty"`
	SurgeLevel  string          `json:"surge_level,omitempty"`
}

// QuoteResponse is the price of a trip in one tier.
type QuoteResponse struct {
	VehicleTier string               `json:"vehicle_tier"`
	SurgeLevel  string               `json:"surge_level"`
	Fare        domain.FareBreakdown `json:"fare"`
	AmountCents int64                `json:"amount_cents"`
}

// TierResponse describes a vehicle tier and its rates.
type TierResponse struct {
	Tier          string  `json:"tier"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	MinPassengers int     `json:"min_passengers"`
	MaxPassengers int     `json:"max_passengers"`
	ETAMin        int     `json:"eta_min"`
	ETAMax        int     `json:"eta_max"`
	BaseFare      float64 `json:"base_fare"`
	PerKm         float64 `json:"per_km"`
	PerMinute     float64 `json:"per_minute"`
}

// TiersResponse lists the tiers and the flat booking fee.
type TiersResponse struct {
	Tiers      []TierResponse `json:"tiers"`
	BookingFee float64        `json:"booking_fee"`
}

// Tiers handles GET /v1/fares/tiers
func (h *FareHandler) Tiers(c *gin.Context) {
	tiers := h.fareService.Tiers()
	resp := TiersResponse{
		Tiers:      make([]TierResponse, 0, len(tiers)),
		BookingFee: h.fareService.BookingFee(),
	}
	for _, t := range tiers {
		resp.Tiers = append(resp.Tiers, TierResponse{
			Tier:          string(t.Info.Tier),
			Name:          t.Info.Name,
			Description:   t.Info.Description,
			MinPassengers: t.Info.MinPassengers,
			MaxPassengers: t.Info.MaxPassengers,
			ETAMin:        t.Info.ETAMin,
			ETAMax:        t.Info.ETAMax,
			BaseFare:      t.Rates.Base,
			PerKm:         t.Rates.PerKm,
			PerMinute:     t.Rates.PerMinute,
		})
	}
	respondJSON(c, http.StatusOK, resp)
}

// Estimate handles POST /v1/fares/estimate
func (h *FareHandler) Estimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	quotes, err := h.fareService.Estimate(c.Request.Context(), service.QuoteRequest{
		Pickup:      req.Pickup.toDomain(),
		DistanceKm:  req.DistanceKm,
		DurationMin: req.DurationMin,
		VehicleTier: req.VehicleTier,
		SurgeLevel:  req.SurgeLevel,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]QuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		resp = append(resp, QuoteResponse{
			VehicleTier: string(q.VehicleTier),
			SurgeLevel:  string(q.SurgeLevel),
			Fare:        q.Fare,
			AmountCents: q.AmountCents,
		})
	}
	respondJSON(c, http.StatusOK, gin.H{"quotes": resp})
}

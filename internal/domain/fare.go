package domain

// FareBreakdown is the itemised price of a ride, in major currency units.
// It is computed once when the ride is requested and never recomputed.
type FareBreakdown struct {
	BaseFare        float64 `json:"base_fare"`
	DistanceFare    float64 `json:"distance_fare"`
	TimeFare        float64 `json:"time_fare"`
	SurgeFare       float64 `json:"surge_fare"`
	BookingFee      float64 `json:"booking_fee"`
	Taxes           float64 `json:"taxes"`
	Subtotal        float64 `json:"subtotal"`
	TotalAmount     float64 `json:"total_amount"`
	SurgeMultiplier float64 `json:"surge_multiplier"`
	Currency        string  `json:"currency"`
}

package fare_test

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"ridefare/internal/domain"
	"ridefare/internal/fare"
)

func newCalculator(t *testing.T) *fare.Calculator {
	t.Helper()
	calc, err := fare.New(fare.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create calculator: %v", err)
	}
	return calc
}

func assertMoney(t *testing.T, field string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s: expected %.2f, got %v", field, want, got)
	}
}

func TestCalculate_EconomyTrip(t *testing.T) {
	t.Parallel()
	calc := newCalculator(t)

	got, err := calc.Calculate(10, 15, domain.VehicleTierEconomy, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertMoney(t, "base_fare", got.BaseFare, 2.50)
	assertMoney(t, "distance_fare", got.DistanceFare, 12.00)
	assertMoney(t, "time_fare", got.TimeFare, 3.75)
	assertMoney(t, "subtotal", got.Subtotal, 18.25)
	assertMoney(t, "surge_fare", got.SurgeFare, 0)
	assertMoney(t, "booking_fee", got.BookingFee, 1.00)
	assertMoney(t, "taxes", got.Taxes, 1.46)
	assertMoney(t, "total", got.TotalAmount, 20.71)
	if got.Currency != "usd" {
		t.Errorf("expected currency usd, got %q", got.Currency)
	}
	if got.SurgeMultiplier != 1.0 {
		t.Errorf("expected surge multiplier 1.0, got %v", got.SurgeMultiplier)
	}
}

func TestCalculate_SurgeDoublesSubtotal(t *testing.T) {
	t.Parallel()
	calc := newCalculator(t)

	got, err := calc.Calculate(10, 15, domain.VehicleTierEconomy, 2.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertMoney(t, "subtotal", got.Subtotal, 36.50)
	assertMoney(t, "surge_fare", got.SurgeFare, 18.25)
	assertMoney(t, "taxes", got.Taxes, 2.92)
	assertMoney(t, "total", got.TotalAmount, 40.42)
}

func TestCalculate_FloorPricePerTier(t *testing.T) {
	t.Parallel()
	calc := newCalculator(t)

	testCases := []struct {
		tier domain.VehicleTier
		want float64
	}{
		{domain.VehicleTierEconomy, 3.70},
		{domain.VehicleTierComfort, 4.78},
		{domain.VehicleTierPremium, 6.40},
		{domain.VehicleTierSUV, 5.32},
	}

	for _, tc := range testCases {
		t.Run(string(tc.tier), func(t *testing.T) {
			got, err := calc.Calculate(0, 0, tc.tier, 1.0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertMoney(t, "total", got.TotalAmount, tc.want)

			rates, _ := calc.Rates(tc.tier)
			floor := math.Round(rates.Base*1.08*100)/100 + 1.00
			assertMoney(t, "floor", got.TotalAmount, floor)
		})
	}
}

func TestCalculate_TotalNeverBelowBookingFee(t *testing.T) {
	t.Parallel()
	calc := newCalculator(t)

	distances := []float64{0, 0.4, 3, 27.5, 140}
	durations := []float64{0, 1, 12.5, 95}
	surges := []float64{0.5, 1.0, 1.5, 2.5}

	for _, tier := range domain.VehicleTiers {
		for _, d := range distances {
			for _, m := range durations {
				for _, s := range surges {
					got, err := calc.Calculate(d, m, tier, s)
					if err != nil {
						t.Fatalf("unexpected error for %s/%v/%v/%v: %v", tier, d, m, s, err)
					}
					if got.TotalAmount < got.BookingFee {
						t.Errorf("%s/%v/%v/%v: total %v below booking fee %v", tier, d, m, s, got.TotalAmount, got.BookingFee)
					}
					if got.Taxes < 0 || got.Subtotal < 0 || got.DistanceFare < 0 || got.TimeFare < 0 {
						t.Errorf("%s/%v/%v/%v: negative component in %+v", tier, d, m, s, got)
					}
				}
			}
		}
	}
}

func TestCalculate_IsDeterministic(t *testing.T) {
	t.Parallel()
	calc := newCalculator(t)

	first, err := calc.Calculate(7.3, 18.2, domain.VehicleTierComfort, 1.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := calc.Calculate(7.3, 18.2, domain.VehicleTierComfort, 1.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical breakdowns, got %+v and %+v", first, second)
	}
}

func TestCalculate_RejectsInvalidInput(t *testing.T) {
	t.Parallel()
	calc := newCalculator(t)

	testCases := []struct {
		name     string
		distance float64
		duration float64
		tier     domain.VehicleTier
		surge    float64
	}{
		{"negative distance", -1, 10, domain.VehicleTierEconomy, 1.0},
		{"negative duration", 5, -0.5, domain.VehicleTierEconomy, 1.0},
		{"zero surge", 5, 10, domain.VehicleTierEconomy, 0},
		{"negative surge", 5, 10, domain.VehicleTierEconomy, -1.5},
		{"nan distance", math.NaN(), 10, domain.VehicleTierEconomy, 1.0},
		{"nan surge", 5, 10, domain.VehicleTierEconomy, math.NaN()},
		{"unknown tier", 5, 10, domain.VehicleTier("luxury"), 1.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := calc.Calculate(tc.distance, tc.duration, tc.tier, tc.surge)
			if !errors.Is(err, fare.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if got != (domain.FareBreakdown{}) {
				t.Errorf("expected empty breakdown on error, got %+v", got)
			}
		})
	}
}

func TestCalculate_UnknownTierIsInvalidTier(t *testing.T) {
	t.Parallel()
	calc := newCalculator(t)

	_, err := calc.Calculate(1, 1, domain.VehicleTier("luxury"), 1.0)
	if !errors.Is(err, fare.ErrInvalidTier) {
		t.Errorf("expected ErrInvalidTier, got %v", err)
	}
}

func TestNew_RejectsIncompleteConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func(*fare.Config)
	}{
		{"missing tier", func(c *fare.Config) { delete(c.Tiers, domain.VehicleTierSUV) }},
		{"negative rate", func(c *fare.Config) {
			c.Tiers[domain.VehicleTierEconomy] = fare.Rates{Base: -1, PerKm: 1, PerMinute: 1}
		}},
		{"negative booking fee", func(c *fare.Config) { c.BookingFee = -1 }},
		{"tax rate too high", func(c *fare.Config) { c.TaxRate = 1.2 }},
		{"empty currency", func(c *fare.Config) { c.Currency = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := fare.DefaultConfig()
			tc.mutate(&cfg)
			if _, err := fare.New(cfg); !errors.Is(err, fare.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestNew_CopiesTierTable(t *testing.T) {
	t.Parallel()

	cfg := fare.DefaultConfig()
	calc, err := fare.New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Tiers[domain.VehicleTierEconomy] = fare.Rates{Base: 100}

	got, err := calc.Calculate(0, 0, domain.VehicleTierEconomy, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertMoney(t, "base_fare", got.BaseFare, 2.50)
}

func TestCalculate_CustomConfig(t *testing.T) {
	t.Parallel()

	cfg := fare.DefaultConfig()
	cfg.BookingFee = 2.00
	cfg.TaxRate = 0
	cfg.Currency = "eur"
	calc, err := fare.New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := calc.Calculate(10, 15, domain.VehicleTierEconomy, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertMoney(t, "taxes", got.Taxes, 0)
	assertMoney(t, "total", got.TotalAmount, 20.25)
	if got.Currency != "eur" {
		t.Errorf("expected currency eur, got %q", got.Currency)
	}
}

func TestToMinorUnits(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		amount float64
		want   int64
	}{
		{20.71, 2071},
		{40.42, 4042},
		{3.70, 370},
		{99.99, 9999},
		{0, 0},
	}

	for _, tc := range testCases {
		if got := fare.ToMinorUnits(tc.amount); got != tc.want {
			t.Errorf("ToMinorUnits(%v): expected %d, got %d", tc.amount, tc.want, got)
		}
	}
}

func TestSurgeLevels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		want float64
	}{
		{"low", 1.0},
		{"medium", 1.5},
		{"high", 2.0},
		{"peak", 2.5},
	}

	for _, tc := range testCases {
		level, err := fare.ParseSurgeLevel(tc.name)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tc.name, err)
		}
		if got := level.Multiplier(); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}

	if _, err := fare.ParseSurgeLevel("extreme"); !errors.Is(err, fare.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown level, got %v", err)
	}
}

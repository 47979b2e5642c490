package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"ridefare/internal/app"
	"ridefare/internal/auth"
	"ridefare/internal/domain"
	"ridefare/internal/handler"
	"ridefare/internal/logger"
	"ridefare/internal/payment"
	"ridefare/internal/service"
)

// ────────────────────────────────────────────────────────────
// 12. HTTP API
// ────────────────────────────────────────────────────────────

var apiSecret = []byte("api-test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

// apiServer is a router over a harness, without Redis or New Relic.
type apiServer struct {
	*harness
	router *gin.Engine
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	h := newHarness(t)
	log := logger.Discard()
	notifier := service.NewNotificationService(h.publisher, log)

	router := app.NewRouter(app.RouterDeps{
		FareHandler:    handler.NewFareHandler(h.fares),
		RideHandler:    handler.NewRideHandler(h.rideSvc, service.NewReceiptService(h.rideSvc, notifier)),
		DriverHandler:  handler.NewDriverHandler(newDriverService(h)),
		UserHandler:    handler.NewUserHandler(service.NewUserService(h.users, h.gateway, log)),
		PaymentHandler: handler.NewPaymentHandler(h.paymentSvc),
		Verifier:       auth.NewHMACVerifier(apiSecret, ""),
	})
	return &apiServer{harness: h, router: router}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Name:  "User " + userID,
		Email: userID + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(apiSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// do sends a request as userID; an empty userID sends no token.
func (s *apiServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.([]byte); ok {
			buf.Write(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func rideBody() handler.CreateRideRequest {
	return handler.CreateRideRequest{
		Pickup:      handler.LocationPayload{Lat: 37.7749, Lng: -122.4194, Address: "Market St"},
		Dropoff:     handler.LocationPayload{Lat: 37.8044, Lng: -122.2712, Address: "Broadway"},
		VehicleTier: "economy",
		DistanceKm:  10,
		DurationMin: 15,
	}
}

func TestAPI_HealthAndMetricsArePublic(t *testing.T) {
	t.Parallel()
	s := newAPIServer(t)

	if w := s.do(t, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("/health: expected 200, got %d", w.Code)
	}
	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("expected default collectors in /metrics output")
	}
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	t.Parallel()
	s := newAPIServer(t)

	for _, path := range []string{"/v1/rides", "/v1/me", "/v1/fares/tiers"} {
		if w := s.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: expected 401, got %d", path, w.Code)
		}
	}
}

func TestAPI_RideLifecycle(t *testing.T) {
	t.Parallel()
	s := newAPIServer(t)
	s.addDriver("driver-1", "driver-user-1", domain.VehicleTierEconomy)

	w := s.do(t, http.MethodPost, "/v1/rides", riderID, rideBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create ride: expected 201, got %d: %s", w.Code, w.Body)
	}
	ride := decode[handler.RideResponse](t, w)
	if ride.Status != string(domain.RideStatusRequested) || ride.Fare.TotalAmount != 20.71 {
		t.Fatalf("unexpected ride: status %s total %.2f", ride.Status, ride.Fare.TotalAmount)
	}
	base := "/v1/rides/" + ride.ID

	w = s.do(t, http.MethodPost, base+"/payment-intent", riderID, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("payment intent: expected 201, got %d: %s", w.Code, w.Body)
	}
	intent := decode[handler.IntentResponse](t, w)
	if intent.Payment.AmountCents != 2071 || intent.ClientSecret == "" {
		t.Errorf("unexpected intent: %+v", intent)
	}

	for _, step := range []string{"/assign", "/arrive", "/start"} {
		if w := s.do(t, http.MethodPost, base+step, "driver-user-1", nil); w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", step, w.Code, w.Body)
		}
	}

	if w := s.do(t, http.MethodPost, base+"/complete", "driver-user-1", nil); w.Code != http.StatusPaymentRequired {
		t.Fatalf("complete before payment: expected 402, got %d", w.Code)
	}

	event := payment.EventPayload("evt_1", payment.EventIntentSucceeded, intent.Payment.ID)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", bytes.NewReader(event))
	req.Header.Set(handler.SignatureHeader, s.gateway.Sign(event))
	hook := httptest.NewRecorder()
	s.router.ServeHTTP(hook, req)
	if hook.Code != http.StatusOK {
		t.Fatalf("webhook: expected 200, got %d: %s", hook.Code, hook.Body)
	}

	w = s.do(t, http.MethodPost, base+"/complete", "driver-user-1", map[string]float64{
		"actual_distance_km":  12.3,
		"actual_duration_min": 18,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", w.Code, w.Body)
	}
	done := decode[handler.RideResponse](t, w)
	if done.Status != string(domain.RideStatusCompleted) || done.PaymentStatus != string(domain.PaymentStatusSucceeded) {
		t.Errorf("expected completed/succeeded, got %s/%s", done.Status, done.PaymentStatus)
	}

	w = s.do(t, http.MethodGet, base+"/receipt?format=text", riderID, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "RIDE RECEIPT") {
		t.Errorf("text receipt: got %d %q", w.Code, w.Body)
	}
	w = s.do(t, http.MethodGet, base+"/receipt", riderID, nil)
	if receipt := decode[handler.ReceiptResponse](t, w); receipt.DistanceKm != 12.3 {
		t.Errorf("expected measured distance on receipt, got %.2f", receipt.DistanceKm)
	}

	if w := s.do(t, http.MethodPost, base+"/rate", riderID, handler.RateRideRequest{Rating: 5, Review: "smooth"}); w.Code != http.StatusOK {
		t.Errorf("rate: expected 200, got %d: %s", w.Code, w.Body)
	}
}

func TestAPI_ErrorStatuses(t *testing.T) {
	t.Parallel()
	s := newAPIServer(t)
	s.addDriver("driver-1", "driver-user-1", domain.VehicleTierPremium)
	ride := s.requestRide(t)

	negative := rideBody()
	negative.DistanceKm = -1
	badTier := rideBody()
	badTier.VehicleTier = "hovercraft"

	tests := []struct {
		name       string
		method     string
		path       string
		user       string
		body       any
		wantStatus int
	}{
		{"malformed body", http.MethodPost, "/v1/rides", riderID, []byte("{"), http.StatusBadRequest},
		{"negative distance", http.MethodPost, "/v1/rides", riderID, negative, http.StatusBadRequest},
		{"unknown tier", http.MethodPost, "/v1/rides", riderID, badTier, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/v1/rides?limit=x", riderID, nil, http.StatusBadRequest},
		{"missing ride", http.MethodGet, "/v1/rides/nope", riderID, nil, http.StatusNotFound},
		{"stranger reads ride", http.MethodGet, "/v1/rides/" + ride.ID, "stranger", nil, http.StatusForbidden},
		{"non-driver assigns", http.MethodPost, "/v1/rides/" + ride.ID + "/assign", "stranger", nil, http.StatusForbidden},
		{"tier mismatch", http.MethodPost, "/v1/rides/" + ride.ID + "/assign", "driver-user-1", nil, http.StatusConflict},
		{"start before assign", http.MethodPost, "/v1/rides/" + ride.ID + "/start", "driver-user-1", nil, http.StatusForbidden},
		{"receipt before completion", http.MethodGet, "/v1/rides/" + ride.ID + "/receipt", riderID, nil, http.StatusConflict},
		{"rating out of range", http.MethodPost, "/v1/rides/" + ride.ID + "/rate", riderID, handler.RateRideRequest{Rating: 9}, http.StatusBadRequest},
		{"missing payment", http.MethodGet, "/v1/payments/pi_missing", riderID, nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.user, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, w.Code, w.Body)
			}
			if w.Code >= 400 {
				if resp := decode[handler.ErrorResponse](t, w); resp.Error == "" {
					t.Error("expected an error message")
				}
			}
		})
	}
}

func TestAPI_RideIgnoresClientSurge(t *testing.T) {
	t.Parallel()
	s := newAPIServer(t)
	crowd(s.harness, downtown, 1, 3)

	body := []byte(`{
		"pickup": {"lat": 37.7749, "lng": -122.4194},
		"dropoff": {"lat": 37.8044, "lng": -122.2712},
		"vehicle_tier": "economy",
		"distance_km": 10,
		"duration_min": 15,
		"surge_level": "low"
	}`)
	w := s.do(t, http.MethodPost, "/v1/rides", riderID, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create ride: expected 201, got %d: %s", w.Code, w.Body)
	}
	if ride := decode[handler.RideResponse](t, w); ride.Fare.SurgeMultiplier != 2.5 {
		t.Errorf("expected area surge 2.5x, got %.2fx", ride.Fare.SurgeMultiplier)
	}
}

func TestAPI_CancelRide(t *testing.T) {
	t.Parallel()
	s := newAPIServer(t)
	ride := s.requestRide(t)

	w := s.do(t, http.MethodPost, "/v1/rides/"+ride.ID+"/cancel", riderID, handler.CancelRideRequest{Reason: "changed plans"})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", w.Code, w.Body)
	}
	if got := decode[handler.RideResponse](t, w); got.Status != string(domain.RideStatusCanceled) || got.CancelReason != "changed plans" {
		t.Errorf("unexpected canceled ride: %+v", got)
	}

	// No body is fine, but the ride is already terminal.
	if w := s.do(t, http.MethodPost, "/v1/rides/"+ride.ID+"/cancel", riderID, nil); w.Code != http.StatusConflict {
		t.Errorf("second cancel: expected 409, got %d", w.Code)
	}
}

func TestAPI_WebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()
	s := newAPIServer(t)

	event := payment.EventPayload("evt_1", payment.EventIntentSucceeded, "pi_1")
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", bytes.NewReader(event))
	req.Header.Set(handler.SignatureHeader, "deadbeef")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAPI_Fares(t *testing.T) {
	t.Parallel()
	s := newAPIServer(t)

	w := s.do(t, http.MethodGet, "/v1/fares/tiers", riderID, nil)
	tiers := decode[handler.TiersResponse](t, w)
	if len(tiers.Tiers) != len(domain.VehicleTiers) || tiers.BookingFee != 1.00 {
		t.Errorf("unexpected tiers: %+v", tiers)
	}

	w = s.do(t, http.MethodPost, "/v1/fares/estimate", riderID, handler.EstimateRequest{
		Pickup:      handler.LocationPayload{Lat: 37.7749, Lng: -122.4194},
		DistanceKm:  10,
		DurationMin: 15,
		VehicleTier: "economy",
		SurgeLevel:  "low",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("estimate: expected 200, got %d: %s", w.Code, w.Body)
	}
	quotes := decode[struct {
		Quotes []handler.QuoteResponse `json:"quotes"`
	}](t, w)
	if len(quotes.Quotes) != 1 || quotes.Quotes[0].AmountCents != 2071 {
		t.Errorf("unexpected quotes: %+v", quotes.Quotes)
	}
}

func TestAPI_DriverAndUser(t *testing.T) {
	t.Parallel()
	s := newAPIServer(t)

	w := s.do(t, http.MethodPost, "/v1/drivers/register", "driver-user-9", handler.RegisterDriverRequest{
		Name:         "Dana",
		Phone:        "+15550199",
		LicensePlate: "xyz987",
		VehicleTier:  "comfort",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body)
	}
	driver := decode[handler.DriverResponse](t, w)
	if driver.LicensePlate != "XYZ987" || driver.Status != string(domain.DriverStatusOffline) {
		t.Errorf("unexpected driver: %+v", driver)
	}

	loc := handler.UpdateLocationRequest{Lat: 37.78, Lng: -122.41}
	if w := s.do(t, http.MethodPost, "/v1/drivers/"+driver.ID+"/location", "driver-user-9", loc); w.Code != http.StatusNoContent {
		t.Errorf("location: expected 204, got %d: %s", w.Code, w.Body)
	}
	if w := s.do(t, http.MethodPost, "/v1/drivers/"+driver.ID+"/location", "someone-else", loc); w.Code != http.StatusForbidden {
		t.Errorf("foreign location update: expected 403, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/v1/drivers/"+driver.ID+"/offline", "driver-user-9", nil); w.Code != http.StatusNoContent {
		t.Errorf("offline: expected 204, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/v1/me", riderID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", w.Code, w.Body)
	}
	me := decode[handler.UserResponse](t, w)
	if me.ID != riderID || me.Email != riderID+"@example.com" || !me.HasCustomer {
		t.Errorf("unexpected user: %+v", me)
	}
}

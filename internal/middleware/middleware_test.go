package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"ridefare/internal/domain"
)

type stubVerifier struct {
	user *domain.User
	err  error
	got  string
}

func (s *stubVerifier) Verify(token string) (*domain.User, error) {
	s.got = token
	return s.user, s.err
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(v TokenVerifier) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(v), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentUser(c).ID})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		header     string
		verifier   *stubVerifier
		wantStatus int
	}{
		{"missing header", "", &stubVerifier{}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", &stubVerifier{}, http.StatusUnauthorized},
		{"empty token", "Bearer  ", &stubVerifier{}, http.StatusUnauthorized},
		{"rejected token", "Bearer bad", &stubVerifier{err: errors.New("expired")}, http.StatusUnauthorized},
		{"valid token", "Bearer good", &stubVerifier{user: &domain.User{ID: "user-1"}}, http.StatusOK},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			router := newAuthRouter(tc.verifier)

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("expected %d, got %d (%s)", tc.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestAuthMiddleware_PassesTrimmedToken(t *testing.T) {
	t.Parallel()
	v := &stubVerifier{user: &domain.User{ID: "user-1"}}
	router := newAuthRouter(v)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if v.got != "tok-123" {
		t.Errorf("expected verifier to receive tok-123, got %q", v.got)
	}
}

func TestCurrentUser_NilWithoutAuth(t *testing.T) {
	t.Parallel()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if CurrentUser(c) != nil {
		t.Error("expected nil user on a fresh context")
	}
}

func TestCORSMiddleware_ShortCircuitsPreflight(t *testing.T) {
	t.Parallel()
	r := gin.New()
	r.Use(CORSMiddleware())
	r.POST("/v1/rides", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodOptions, "/v1/rides", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected allow-origin header")
	}
}

func TestIdempotencyCacheKey_ScopedByCaller(t *testing.T) {
	t.Parallel()
	a, _ := gin.CreateTestContext(httptest.NewRecorder())
	a.Request = httptest.NewRequest(http.MethodPost, "/v1/rides", nil)
	SetCurrentUser(a, &domain.User{ID: "rider-a"})

	b, _ := gin.CreateTestContext(httptest.NewRecorder())
	b.Request = httptest.NewRequest(http.MethodPost, "/v1/rides", nil)
	SetCurrentUser(b, &domain.User{ID: "rider-b"})

	if idempotencyCacheKey(a, "k1") == idempotencyCacheKey(b, "k1") {
		t.Error("expected different cache keys for different callers")
	}
}

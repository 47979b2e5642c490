package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridefare/internal/auth"
	"ridefare/internal/fare"
	"ridefare/internal/lifecycle"
	"ridefare/internal/middleware"
	"ridefare/internal/payment"
	"ridefare/internal/repository"
	"ridefare/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// badRequest reports a malformed request body or parameter.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

// callerID returns the authenticated user's ID, or "" when the route is
// not behind the auth middleware.
func callerID(c *gin.Context) string {
	if u := middleware.CurrentUser(c); u != nil {
		return u.ID
	}
	return ""
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, payment.ErrIntentNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, fare.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidRiderID),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidPaymentID),
		errors.Is(err, service.ErrInvalidPickupLocation),
		errors.Is(err, service.ErrInvalidDropoffLocation),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrInvalidRefundAmount),
		errors.Is(err, service.ErrInvalidDriverProfile),
		errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusBadRequest

	// Payment must settle first
	case errors.Is(err, lifecycle.ErrPaymentNotSettled):
		return http.StatusPaymentRequired

	// Conflict errors
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, service.ErrRideBusy),
		errors.Is(err, service.ErrDriverUnavailable),
		errors.Is(err, service.ErrTierMismatch),
		errors.Is(err, service.ErrRideNotCompleted),
		errors.Is(err, service.ErrDriverAlreadyRegistered),
		errors.Is(err, service.ErrPaymentNotRefundable):
		return http.StatusConflict

	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized

	// Caller is not a party to the resource
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrNotADriver):
		return http.StatusForbidden

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

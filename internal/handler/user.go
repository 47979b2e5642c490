package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridefare/internal/middleware"
	"ridefare/internal/service"
)

// UserHandler handles HTTP requests for users.
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserResponse is the HTTP response for user data.
type UserResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	HasCustomer bool   `json:"has_payment_customer"`
}

// Me handles GET /v1/me. It refreshes the local record from the token's
// claims on every call.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.userService.Sync(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Phone:       user.Phone,
		AvatarURL:   user.AvatarURL,
		HasCustomer: user.PaymentCustomerID != "",
	})
}

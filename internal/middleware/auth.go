package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridefare/internal/domain"
)

const userContextKey = "currentUser"

// TokenVerifier turns a bearer token into the user it identifies.
type TokenVerifier interface {
	Verify(token string) (*domain.User, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the authenticated user on the context.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		user, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware, or nil.
func CurrentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}

// SetCurrentUser stores user on the context. Used by tests and by routes
// that authenticate by other means.
func SetCurrentUser(c *gin.Context, user *domain.User) {
	c.Set(userContextKey, user)
}

package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// Context keys for caller data
	ContextKeyService = "auth_service"
	ContextKeyClaims  = "auth_claims"
)

// Middleware creates a JWT authentication middleware
func Middleware(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Extract token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "missing authorization header",
			})
			return
		}

		// Check Bearer prefix
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "invalid authorization header format",
			})
			return
		}

		claims, err := jwtManager.ValidateToken(parts[1])
		if err != nil {
			var authErr AuthError
			if !errors.As(err, &authErr) {
				authErr = ErrInvalidToken
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}

		c.Set(ContextKeyService, claims.Service)
		c.Set(ContextKeyClaims, claims)

		c.Next()
	}
}

// RequireScope ensures the authenticated caller holds scope. It is a no-op when
// no claims are present, which happens only when auth is disabled.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.Next()
			return
		}
		if !claims.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   ErrForbidden.Code,
				"message": "scope " + scope + " required",
			})
			return
		}
		c.Next()
	}
}

// GetService extracts the caller's service name from the Gin context
func GetService(c *gin.Context) string {
	return c.GetString(ContextKeyService)
}

// GetClaims extracts the full claims from the Gin context
func GetClaims(c *gin.Context) *ServiceClaims {
	if claims, exists := c.Get(ContextKeyClaims); exists {
		if sc, ok := claims.(*ServiceClaims); ok {
			return sc
		}
	}
	return nil
}

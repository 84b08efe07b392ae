package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"binance-futures-client/internal/binance"
	"binance-futures-client/internal/orders"
)

// writeError maps router and executor errors to HTTP responses
func writeError(c *gin.Context, err error) {
	status, body := errorBody(err)
	c.JSON(status, body)
}

func errorBody(err error) (int, gin.H) {
	var (
		valErr       *orders.LocalValidationError
		migrated     *orders.ConditionalOrderMigratedError
		transportErr *binance.TransportError
		apiErr       *binance.APIError
	)

	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": valErr.Error()}

	case errors.As(err, &migrated):
		return http.StatusConflict, gin.H{
			"error":   "CONDITIONAL_ORDER_MIGRATED",
			"message": migrated.Error(),
			"code":    migrated.Err.Code,
			"hint":    orders.Hint(err),
			"order":   migrated.Request,
		}

	case errors.Is(err, binance.ErrCircuitOpen):
		return http.StatusServiceUnavailable, gin.H{"error": "RATE_LIMITED", "message": err.Error()}

	case errors.Is(err, binance.ErrMissingCredentials):
		return http.StatusServiceUnavailable, gin.H{"error": "NO_CREDENTIALS", "message": err.Error()}

	case errors.As(err, &transportErr):
		return http.StatusBadGateway, gin.H{
			"error":    "UPSTREAM_UNAVAILABLE",
			"message":  transportErr.Error(),
			"attempts": transportErr.Attempts,
		}

	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		body := gin.H{"error": "EXCHANGE_ERROR", "code": apiErr.Code, "msg": apiErr.Message, "message": err.Error()}
		if hint := orders.Hint(err); hint != "" {
			body["hint"] = hint
		}
		return status, body

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, gin.H{"error": "TIMEOUT", "message": err.Error()}
	}

	return http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR", "message": err.Error()}
}

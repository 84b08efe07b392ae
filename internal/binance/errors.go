package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Server error codes the client branches on
const (
	ErrCodeDisconnected           = -1001
	ErrCodeTooManyRequests        = -1003
	ErrCodeTooManyOrders          = -1015
	ErrCodeServiceShuttingDown    = -1016
	ErrCodeUnknownOrder           = -2011 // CANCEL_REJECTED: unknown order sent
	ErrCodeNoSuchOrder            = -2013 // order does not exist
	ErrCodeDuplicateClientOrderID = -4116
	ErrCodeStopOrderTriggering    = -4117
	ErrCodeStopOrderSwitchAlgo    = -4120 // legacy endpoint refuses this order type
)

var (
	// ErrCircuitOpen is returned when the rate limiter blocks a request during a ban
	ErrCircuitOpen = errors.New("rate limit: circuit breaker open, request blocked")

	// ErrMissingCredentials is returned for authenticated calls without a key or secret
	ErrMissingCredentials = errors.New("api key and secret are required for this endpoint")
)

// APIError is a non-2xx response from the exchange
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("binance API error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("binance API error (status %d): %s", e.StatusCode, e.Message)
}

// TransportError is returned once the retry budget is exhausted. Err is the last
// failure seen, either a network error or an *APIError with a retryable status.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// parseAPIError builds an APIError from a response body. The message is taken from
// "msg", "message" or "error" in that order, falling back to the raw body.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Body: string(body)}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err == nil {
		if raw, ok := payload["code"]; ok {
			var code int
			if json.Unmarshal(raw, &code) == nil {
				apiErr.Code = code
			}
		}
		for _, key := range []string{"msg", "message", "error"} {
			var msg string
			if raw, ok := payload[key]; ok && json.Unmarshal(raw, &msg) == nil && msg != "" {
				apiErr.Message = msg
				break
			}
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = "<empty>"
	}
	return apiErr
}

// ErrorCode returns the server error code carried by err, or 0
func ErrorCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// IsNotFound reports whether err means the referenced order does not exist
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusNotFound {
		return true
	}
	return apiErr.Code == ErrCodeUnknownOrder || apiErr.Code == ErrCodeNoSuchOrder
}

// isRetryable checks if a response is transient and should be retried
func isRetryable(statusCode, code int) bool {
	if statusCode == http.StatusTooManyRequests || statusCode >= 500 {
		return true
	}
	switch code {
	case ErrCodeDisconnected, ErrCodeTooManyRequests, ErrCodeTooManyOrders, ErrCodeServiceShuttingDown:
		return true
	}
	return false
}

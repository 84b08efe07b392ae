package orders

import (
	"errors"
	"fmt"

	"binance-futures-client/internal/binance"
)

// ErrNoTestEndpoint is wrapped when a conditional order is sent in test mode; the
// algo endpoint has no test variant.
var ErrNoTestEndpoint = errors.New("algo endpoint has no test variant")

const (
	hintDuplicateClientOrderID = "newClientOrderId is already in use; choose a unique client order id"
	hintStopOrderTriggering    = "stop price would trigger immediately; adjust stopPrice relative to the current mark or last price"
)

// LocalValidationError is raised before any network call
type LocalValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *LocalValidationError) Error() string {
	if e.Field == "" {
		return "invalid order request: " + e.Reason
	}
	return fmt.Sprintf("invalid order request: %s %s", e.Field, e.Reason)
}

func (e *LocalValidationError) Unwrap() error { return e.Err }

// ConditionalOrderMigratedError means the legacy endpoint refused a conditional
// order with -4120 and automatic rerouting is disabled. Request is the payload that
// was refused, ready to resend through the algo endpoint.
type ConditionalOrderMigratedError struct {
	Request binance.Params
	Err     *binance.APIError
}

func (e *ConditionalOrderMigratedError) Error() string {
	return fmt.Sprintf("conditional order type %s must be placed through the algo endpoint: %v",
		e.Request.Get("type"), e.Err)
}

func (e *ConditionalOrderMigratedError) Unwrap() error { return e.Err }

// DuplicateClientOrderIDError wraps a -4116 rejection
type DuplicateClientOrderIDError struct {
	Hint string
	Err  *binance.APIError
}

func (e *DuplicateClientOrderIDError) Error() string {
	return fmt.Sprintf("%v (hint: %s)", e.Err, e.Hint)
}

func (e *DuplicateClientOrderIDError) Unwrap() error { return e.Err }

// StopOrderTriggeringError wraps a -4117 rejection
type StopOrderTriggeringError struct {
	Hint string
	Err  *binance.APIError
}

func (e *StopOrderTriggeringError) Error() string {
	return fmt.Sprintf("%v (hint: %s)", e.Err, e.Hint)
}

func (e *StopOrderTriggeringError) Unwrap() error { return e.Err }

// Hint returns the remediation hint attached to err, or ""
func Hint(err error) string {
	var dup *DuplicateClientOrderIDError
	if errors.As(err, &dup) {
		return dup.Hint
	}
	var trig *StopOrderTriggeringError
	if errors.As(err, &trig) {
		return trig.Hint
	}
	var migrated *ConditionalOrderMigratedError
	if errors.As(err, &migrated) {
		return "resend the order through the algo order endpoint"
	}
	return ""
}

// mapOrderError attaches hints to known rejection codes. Other errors are returned
// unchanged.
func mapOrderError(err error) error {
	var apiErr *binance.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case binance.ErrCodeDuplicateClientOrderID:
		return &DuplicateClientOrderIDError{Hint: hintDuplicateClientOrderID, Err: apiErr}
	case binance.ErrCodeStopOrderTriggering:
		return &StopOrderTriggeringError{Hint: hintStopOrderTriggering, Err: apiErr}
	}
	return err
}

func isSwitchToAlgo(err error) (*binance.APIError, bool) {
	var apiErr *binance.APIError
	if errors.As(err, &apiErr) && apiErr.Code == binance.ErrCodeStopOrderSwitchAlgo {
		return apiErr, true
	}
	return nil, false
}

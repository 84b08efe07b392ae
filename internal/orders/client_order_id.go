package orders

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MaxClientOrderIDLength is the maximum length allowed by Binance
const MaxClientOrderIDLength = 36

// Errors for client order ID operations
var (
	ErrClientOrderIDTooLong = errors.New("client order ID exceeds maximum length of 36 characters")
	ErrInvalidClientOrderID = errors.New("invalid client order ID format")
)

var clientOrderIDPattern = regexp.MustCompile(`^[.A-Z:/a-z0-9_-]{1,36}$`)

// GenerateClientOrderID creates a client order ID of the form
// PREFIX-YYMMDD-xxxxxxxx. The prefix is upper-cased and truncated so the result
// always fits the exchange limit.
func GenerateClientOrderID(prefix string) string {
	dateStr := time.Now().UTC().Format("060102")
	suffix := fmt.Sprintf("-%s-%s", dateStr, generateShortUniqueID())

	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if room := MaxClientOrderIDLength - len(suffix); len(prefix) > room {
		prefix = prefix[:room]
	}
	return prefix + suffix
}

// ValidateClientOrderID checks an ID against the exchange's accepted format
func ValidateClientOrderID(id string) error {
	if len(id) > MaxClientOrderIDLength {
		return fmt.Errorf("%w: ID '%s' is %d characters", ErrClientOrderIDTooLong, id, len(id))
	}
	if !clientOrderIDPattern.MatchString(id) {
		return fmt.Errorf("%w: '%s'", ErrInvalidClientOrderID, id)
	}
	return nil
}

// generateShortUniqueID generates an 8-character hex unique identifier
func generateShortUniqueID() string {
	b := make([]byte, 4) // 4 bytes = 8 hex characters
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based if crypto/rand fails
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xFFFFFFFF)
	}
	return hex.EncodeToString(b)
}

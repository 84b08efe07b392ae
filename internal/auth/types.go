package auth

// Scopes a service token may carry
const (
	ScopeRead  = "read"  // queries, open orders, limiter status
	ScopeTrade = "trade" // placing and cancelling orders
)

// ServiceClaims identifies the caller of the gateway
type ServiceClaims struct {
	Service string   `json:"service"`
	Scopes  []string `json:"scopes"`
}

// HasScope reports whether the claims grant scope. Trade implies read.
func (c *ServiceClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope || (s == ScopeTrade && scope == ScopeRead) {
			return true
		}
	}
	return false
}

// TokenResponse is returned when a token is minted
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Error types for authentication
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

// Predefined auth errors
var (
	ErrInvalidToken = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrUnauthorized = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrForbidden    = AuthError{Code: "FORBIDDEN", Message: "access forbidden"}
)

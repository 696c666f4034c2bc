package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// PKCE integrity errors: the login flow must restart from beginLogin
	// when either of these surfaces.
	ErrStateMismatch   = fmt.Errorf("oauth state mismatch")
	ErrMissingVerifier = fmt.Errorf("missing code verifier")

	// Authentication errors
	ErrTokenExchange    = fmt.Errorf("token exchange failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// ABOUTME: Authorization failure reasons and the AuthError type
// ABOUTME: Maps each reason to the HTTP status used at the route boundary

package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Reason explains why a request was not authorized.
type Reason string

const (
	ReasonMissingToken            Reason = "missing_token"
	ReasonInvalidToken            Reason = "invalid_token"
	ReasonExpiredToken            Reason = "expired_token"
	ReasonVerificationUnreachable Reason = "verification_unreachable"
)

// HTTPStatus is the response status for a rejected request.
func (r Reason) HTTPStatus() int {
	if r == ReasonVerificationUnreachable {
		return http.StatusServiceUnavailable
	}
	return http.StatusUnauthorized
}

// ErrMalformedBearer is a Bearer Authorization header with no usable token.
var ErrMalformedBearer = errors.New("malformed bearer authorization header")

// AuthError is the error form of a negative Decision.
type AuthError struct {
	Reason Reason
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("authentication failed: %s", e.Reason)
	}
	return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ABOUTME: HTTP middleware that gates admin routes on a Guard decision
// ABOUTME: Reads the bearer header first, then the session cookie

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// DefaultCookieName is the session cookie set at login.
const DefaultCookieName = "academy_admin_session"

// errNotBearer marks an Authorization header that uses some other scheme.
var errNotBearer = errors.New("authorization scheme is not bearer")

// extractBearerToken extracts a bearer token from the Authorization header.
// A header using another scheme yields errNotBearer; a bearer header without
// a usable token yields ErrMalformedBearer.
func extractBearerToken(authHeader string) (string, error) {
	const scheme = "Bearer"
	if len(authHeader) < len(scheme) || !strings.EqualFold(authHeader[:len(scheme)], scheme) {
		return "", errNotBearer
	}
	rest := authHeader[len(scheme):]
	if rest == "" || rest[0] != ' ' {
		return "", ErrMalformedBearer
	}
	token := strings.TrimSpace(rest)
	if token == "" {
		return "", ErrMalformedBearer
	}
	return token, nil
}

// ExtractToken returns the session token carried by r: the bearer token when
// the Authorization header uses the Bearer scheme, otherwise the named cookie.
// It returns "" when neither holds a token, and ErrMalformedBearer when a
// bearer header is present but unusable.
func ExtractToken(r *http.Request, cookieName string) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, err := extractBearerToken(h)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, errNotBearer) {
			return "", err
		}
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value, nil
	}
	return "", nil
}

// VerifyRequest runs the guard on the credential carried by r. A malformed
// bearer header is denied as ReasonInvalidToken.
func (g *Guard) VerifyRequest(r *http.Request, cookieName string) Decision {
	token, err := ExtractToken(r, cookieName)
	if err != nil {
		return g.reject(ReasonInvalidToken, err)
	}
	return g.Verify(r.Context(), token)
}

// RequireAdmin creates an HTTP middleware that admits only requests the guard
// authorizes. The Principal is attached to the request context.
func RequireAdmin(g *Guard, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.VerifyRequest(r, cookieName)
			if !d.Authorized {
				WriteDenied(w, d.Reason)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), d.Principal)))
		})
	}
}

// WriteDenied writes the uniform authentication failure body for reason.
func WriteDenied(w http.ResponseWriter, reason Reason) {
	w.Header().Set("Content-Type", "application/json")
	if reason == ReasonVerificationUnreachable {
		w.Header().Set("Retry-After", "5")
	}
	w.WriteHeader(reason.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":  "authentication failed",
		"reason": string(reason),
	})
}

// Package auth decides whether a request may use the admin routes.
//
// # Session Tokens
//
// An admin logs in with username and password (Issuer.Login). The issuer
// checks the bcrypt hash, stores a server-side session row and returns an
// HS256 JWT whose claims name the user ("sub") and the session ("sid"):
//
//	res, err := issuer.Login(ctx, "coach", "secret")
//	// res.Token goes to the client as a bearer token and a cookie
//
// A well-formed token proves nothing on its own. Only the Guard decides.
//
// # Guard
//
// Guard.Verify is the single authority for admin authorization:
//
//	d := guard.Verify(ctx, token)
//	if !d.Authorized {
//	    // d.Reason is one of missing_token, invalid_token,
//	    // expired_token, verification_unreachable
//	}
//
// Verification checks the JWT signature and expiry, then loads the session and
// its user. Revoked sessions and deleted users are rejected even when the JWT
// itself has not expired. A store failure yields verification_unreachable
// rather than an error, so callers can always map the decision to a response.
// Verify never writes.
//
// # HTTP
//
// RequireAdmin wraps admin handlers. It reads the token from the
// Authorization header first and falls back to the session cookie, so both
// bearer and cookie clients work. On success the Principal is attached to the
// request context (PrincipalFromContext); on failure it answers 401 with
// {"error":"authentication failed","reason":...}, or 503 when the session
// store could not be reached.
package auth

// Package client is the caller side of the academy admin API.
//
// # Tokens
//
// The session token is not global state. Each Client is built with a
// TokenProvider that knows where the token lives:
//
//	c := client.New("https://academy.example.com",
//	    client.WithTokenProvider(client.Chain(
//	        client.EnvToken(""),
//	        client.FileToken{Path: path},
//	    )),
//	)
//
// A missing token is not an error. The request goes out without an
// Authorization header and the gateway rejects it.
//
// # Requests
//
// Fetch is the low-level call. It always sends the bearer token (when one
// exists) and the client's cookie jar, so both bearer and cookie sessions
// work against the gateway. Caller headers are merged over a default
// Content-Type of application/json but cannot drop the Authorization header
// unless WithAuthorizationOverride is passed.
//
// CheckAuth calls the verify route and folds every failure, including network
// errors, into AuthResult{Success: false}. The typed helpers (Login, Logout,
// GetSetting, PutSetting) return *APIError for non-2xx responses.
package client

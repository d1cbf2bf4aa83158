// Package server exposes the academy API over HTTP.
//
// # Routes
//
// Public:
//
//   - GET /api/gallery?category=&limit= - Active gallery images, newest first
//   - GET /api/check-google-config - Redacted view of the Google integration settings
//   - POST /api/submit-to-sheets - Relay a form submission to a spreadsheet web app
//   - POST /api/admin/login - Exchange credentials for a session token and cookie
//   - GET /health - Liveness check
//   - GET /health/ready - Database readiness check
//   - GET /metrics - Prometheus metrics (when metrics.enabled)
//
// Admin (bearer token or session cookie, checked by auth.Guard):
//
//   - GET /api/admin/verify - The authenticated admin
//   - POST /api/admin/logout - Revoke the session and clear the cookie
//   - GET /api/admin/settings/{key} - Stored JSON value
//   - PUT /api/admin/settings/{key} - Validate and upsert a JSON value
//   - POST /api/admin/gallery - Add a gallery image
//   - DELETE /api/admin/gallery/{id} - Hide a gallery image
//
// Every error body is JSON: {"error": "..."}. Authentication failures also
// carry a "reason" field.
//
// # Lifecycle
//
//	srv, err := server.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx) // blocks until ctx is canceled, then shuts down
package server

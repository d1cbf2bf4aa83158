// ABOUTME: Route handlers for the public and admin academy API
// ABOUTME: Maps store, settings, auth and proxy errors to JSON responses

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/academy-gateway/internal/auth"
	"github.com/2389/academy-gateway/internal/proxy"
	"github.com/2389/academy-gateway/internal/settings"
	"github.com/2389/academy-gateway/internal/store"
)

const (
	maxRequestBody = 1 << 20
	maxSettingBody = 64 << 10
)

// Public error messages.
const (
	msgGalleryFailed   = "Failed to fetch gallery images"
	msgNoGoogleConfig  = "No Google config found"
	msgInvalidBody     = "Invalid request body"
	msgInvalidLogin    = "Invalid username or password"
	msgInternal        = "internal server error"
	msgSettingNotFound = "Setting not found"
	msgImageNotFound   = "Gallery image not found"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	admin := auth.RequireAdmin(s.guard, s.config.Auth.CookieName)

	mux.HandleFunc("GET /api/gallery", s.handleListGallery)
	mux.HandleFunc("GET /api/check-google-config", s.handleCheckGoogleConfig)
	mux.HandleFunc("POST /api/submit-to-sheets", s.handleSubmitToSheets)
	mux.HandleFunc("POST /api/admin/login", s.handleLogin)

	mux.Handle("GET /api/admin/verify", admin(http.HandlerFunc(s.handleVerify)))
	mux.Handle("POST /api/admin/logout", admin(http.HandlerFunc(s.handleLogout)))
	mux.Handle("GET /api/admin/settings/{key}", admin(http.HandlerFunc(s.handleGetSetting)))
	mux.Handle("PUT /api/admin/settings/{key}", admin(http.HandlerFunc(s.handlePutSetting)))
	mux.Handle("POST /api/admin/gallery", admin(http.HandlerFunc(s.handleCreateGalleryImage)))
	mux.Handle("DELETE /api/admin/gallery/{id}", admin(http.HandlerFunc(s.handleDeleteGalleryImage)))
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// GalleryImageResponse is the JSON shape of a gallery image.
type GalleryImageResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	Category    string    `json:"category"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

func galleryImageResponse(img *store.GalleryImage) GalleryImageResponse {
	return GalleryImageResponse{
		ID:          img.ID,
		Title:       img.Title,
		Description: img.Description,
		ImageURL:    img.ImageURL,
		Category:    img.Category,
		IsActive:    img.IsActive,
		CreatedAt:   img.CreatedAt,
	}
}

// handleListGallery handles GET /api/gallery?category=&limit=.
func (s *Server) handleListGallery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.GalleryFilter{
		Category: q.Get("category"),
		Limit:    store.DefaultGalleryLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	images, err := s.store.ListGalleryImages(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing gallery images", "error", err)
		writeError(w, http.StatusInternalServerError, msgGalleryFailed)
		return
	}

	out := make([]GalleryImageResponse, 0, len(images))
	for _, img := range images {
		out = append(out, galleryImageResponse(img))
	}
	writeJSON(w, http.StatusOK, out)
}

// GoogleConfigCheck is the body of GET /api/check-google-config.
type GoogleConfigCheck struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	HasAPIKey      bool   `json:"has_api_key"`
	APIKeyLength   int    `json:"api_key_length"`
	APIKeyPreview  string `json:"api_key_preview"`
	ReviewsEnabled bool   `json:"reviews_enabled"`
	PlaceID        string `json:"place_id"`
}

// handleCheckGoogleConfig reports whether the Google integration is set up
// without revealing the API key.
func (s *Server) handleCheckGoogleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := settings.Load[settings.GoogleConfig](r.Context(), s.store, settings.GoogleConfigKey)
	if err != nil {
		var decodeErr *settings.ConfigDecodeError
		if errors.Is(err, settings.ErrNotConfigured) || errors.As(err, &decodeErr) {
			if decodeErr != nil {
				s.logger.Warn("stored google config is unreadable", "error", err)
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": msgNoGoogleConfig})
			return
		}
		s.logger.Error("loading google config", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Failed to check Google config"})
		return
	}

	key := settings.Redact(cfg.PlacesAPIKey)
	writeJSON(w, http.StatusOK, GoogleConfigCheck{
		Success:        true,
		HasAPIKey:      key.Present,
		APIKeyLength:   key.Length,
		APIKeyPreview:  key.Preview,
		ReviewsEnabled: cfg.ReviewsEnabled,
		PlaceID:        cfg.PlaceID,
	})
}

// handleSubmitToSheets relays a form submission to a spreadsheet web app.
func (s *Server) handleSubmitToSheets(w http.ResponseWriter, r *http.Request) {
	var sub proxy.Submission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, proxy.MsgMissingFields)
		return
	}

	res, err := s.relay.Submit(r.Context(), sub)
	if err != nil {
		if pe, ok := proxy.AsProxyError(err); ok {
			writeError(w, pe.HTTPStatus(), pe.Msg)
			return
		}
		s.logger.Error("submitting form", "error", err)
		writeError(w, http.StatusInternalServerError, proxy.MsgUpstream)
		return
	}

	writeJSON(w, res.StatusCode, map[string]string{"message": res.Message})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      *auth.Principal `json:"user"`
}

// handleLogin exchanges admin credentials for a session token and cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	res, err := s.issuer.Login(r.Context(), strings.TrimSpace(req.Username), req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, msgInvalidLogin)
		return
	}
	if err != nil {
		s.logger.Error("admin login", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   s.config.Auth.CookieSecure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: res.Token, ExpiresAt: res.ExpiresAt, User: res.Principal})
}

// handleLogout revokes the caller's session and clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if err := s.issuer.Logout(r.Context(), p); err != nil {
		s.logger.Error("admin logout", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.Auth.CookieSecure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleVerify reports the admin behind the request.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": auth.PrincipalFromContext(r.Context())})
}

type settingResponse struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// handleGetSetting returns the stored JSON value for a key.
func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	setting, err := s.store.GetSetting(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgSettingNotFound)
		return
	}
	if err != nil {
		s.logger.Error("reading setting", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	value := json.RawMessage(setting.Value)
	if !json.Valid(value) {
		s.logger.Warn("stored setting is not valid JSON", "key", key)
		value, _ = json.Marshal(setting.Value)
	}
	updated := setting.UpdatedAt
	writeJSON(w, http.StatusOK, settingResponse{Key: setting.Key, Value: value, UpdatedAt: &updated})
}

// handlePutSetting validates and upserts a setting. The body is the value itself.
func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSettingBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	normalized, err := settings.Validate(key, string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.PutSetting(r.Context(), key, normalized); err != nil {
		s.logger.Error("writing setting", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	p := auth.PrincipalFromContext(r.Context())
	s.logger.Info("setting updated", "key", key, "user_id", p.UserID)
	writeJSON(w, http.StatusOK, settingResponse{Key: key, Value: json.RawMessage(normalized)})
}

type createGalleryImageRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Category    string `json:"category"`
}

// handleCreateGalleryImage adds an active image to the gallery.
func (s *Server) handleCreateGalleryImage(w http.ResponseWriter, r *http.Request) {
	var req createGalleryImageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		writeError(w, http.StatusBadRequest, "image_url is required")
		return
	}
	if strings.EqualFold(strings.TrimSpace(req.Category), store.CategoryAll) {
		writeError(w, http.StatusBadRequest, `category "all" is reserved`)
		return
	}

	img := &store.GalleryImage{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		ImageURL:    strings.TrimSpace(req.ImageURL),
		Category:    strings.TrimSpace(req.Category),
		IsActive:    true,
	}
	if err := s.store.CreateGalleryImage(r.Context(), img); err != nil {
		s.logger.Error("creating gallery image", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeJSON(w, http.StatusCreated, galleryImageResponse(img))
}

// handleDeleteGalleryImage soft-deletes an image.
func (s *Server) handleDeleteGalleryImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.store.DeactivateGalleryImage(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgImageNotFound)
		return
	}
	if err != nil {
		s.logger.Error("deactivating gallery image", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Aditya1056/interact-backend/internal/apperr"
	"github.com/Aditya1056/interact-backend/internal/auth"
	"github.com/Aditya1056/interact-backend/internal/crypto"
	"github.com/Aditya1056/interact-backend/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store  store.DataStore
	cipher *crypto.Cipher
	tokens *auth.TokenService
	redis  *redis.Client // optional, nil when Redis is not configured
	logger zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies. The Redis
// client may be nil.
func NewHandler(ds store.DataStore, cipher *crypto.Cipher, tokens *auth.TokenService, rdb *redis.Client, logger zerolog.Logger) *Handler {
	return &Handler{store: ds, cipher: cipher, tokens: tokens, redis: rdb, logger: logger}
}

// envelope is the wire shape of every API response.
type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// JSON sends a success envelope with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, message string, data any) {
	if data == nil {
		data = map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Message: message, Data: data})
}

// Error sends an error envelope, logging internal failures.
func (h *Handler) Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.From(err)
	if appErr.Kind == apperr.KindInternal {
		h.logger.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status())
	json.NewEncoder(w).Encode(envelope{Message: appErr.Message, Data: map[string]any{}})
}

// NotFoundRoute is the JSON fallback for unknown routes.
func (h *Handler) NotFoundRoute(w http.ResponseWriter, r *http.Request) {
	h.Error(w, r, apperr.NotFound("This Page does not exist!"))
}

// decodeBody decodes a JSON request body, surfacing a validation error on
// malformed input.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("Invalid request body!")
	}
	return nil
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

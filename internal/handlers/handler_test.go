package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Aditya1056/interact-backend/internal/api/middleware"
	"github.com/Aditya1056/interact-backend/internal/auth"
	"github.com/Aditya1056/interact-backend/internal/crypto"
	"github.com/Aditya1056/interact-backend/internal/models"
	"github.com/Aditya1056/interact-backend/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, *store.MemoryStore) {
	t.Helper()
	cipher, err := crypto.NewCipher("test-message-secret")
	if err != nil {
		t.Fatal(err)
	}
	tokens := auth.NewTokenService("test-jwt-secret", 12*time.Hour)
	ms := store.NewMemoryStore()
	return NewHandler(ms, cipher, tokens, nil, zerolog.Nop()), ms
}

// createUser seeds a user directly in the store. The password is "secret123"
// unless tests hash their own.
func createUser(t *testing.T, ms *store.MemoryStore, name, username string) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	user := &models.User{
		ID:           crypto.NewUUIDv7(),
		Name:         name,
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: string(hashed),
		Image:        "image-1.jpg",
	}
	if err := ms.CreateUser(context.Background(), user); err != nil {
		t.Fatal(err)
	}
	return user
}

// doRequest invokes a handler directly, simulating the router's auth
// middleware and URL parameters.
func doRequest(t *testing.T, handler http.HandlerFunc, method, target string, caller uuid.UUID, body any, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	ctx := req.Context()
	if caller != uuid.Nil {
		ctx = middleware.WithUserID(ctx, caller)
	}

	routeCtx := chi.NewRouteContext()
	for key, value := range params {
		routeCtx.URLParams.Add(key, value)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)

	rec := httptest.NewRecorder()
	handler(rec, req.WithContext(ctx))
	return rec
}

// decodeEnvelope unpacks a response envelope, returning the message and raw
// data document.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) (string, json.RawMessage) {
	t.Helper()
	var env struct {
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, rec.Body.String())
	}
	return env.Message, env.Data
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, want, rec.Body.String())
	}
}

func assertMessage(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	message, _ := decodeEnvelope(t, rec)
	if message != want {
		t.Fatalf("message = %q, want %q", message, want)
	}
}

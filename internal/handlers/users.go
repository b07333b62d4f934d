package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Aditya1056/interact-backend/internal/apperr"
	"github.com/Aditya1056/interact-backend/internal/api/middleware"
	"github.com/Aditya1056/interact-backend/internal/crypto"
	"github.com/Aditya1056/interact-backend/internal/metrics"
	"github.com/Aditya1056/interact-backend/internal/models"
)

// avatars is the fixed list of selectable profile images, served under
// /images/.
var avatars = []string{
	"image-0.png", "image-1.jpg", "image-2.jpg", "image-3.jpg", "image-4.jpeg",
	"image-5.jpeg", "image-6.jpg", "image-7.jpg", "image-8.jpg", "image-9.jpg",
	"image-10.jpg",
}

// UserInfo is the public projection of a user returned by search and chat
// endpoints.
type UserInfo struct {
	UserID   uuid.UUID `json:"userId"`
	Name     string    `json:"name,omitempty"`
	Username string    `json:"username"`
	Image    string    `json:"userImage"`
	Joined   time.Time `json:"joined,omitempty"`
}

func userInfo(u *models.User) UserInfo {
	return UserInfo{
		UserID:   u.ID,
		Name:     u.Name,
		Username: u.Username,
		Image:    u.Image,
		Joined:   u.CreatedAt,
	}
}

// GetAvatars lists the selectable avatar images.
func (h *Handler) GetAvatars(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, "Avatars fetched successfully!", map[string]any{"avatars": avatars})
}

// CheckUsernameAvailability reports whether a username is still free.
func (h *Handler) CheckUsernameAvailability(w http.ResponseWriter, r *http.Request) {
	searchTerm := r.URL.Query().Get("search")

	user, err := h.store.GetUserByUsername(r.Context(), searchTerm)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if user != nil {
		h.Error(w, r, apperr.Conflict("Username already exists"))
		return
	}

	h.JSON(w, http.StatusOK, "Username available", nil)
}

// SignupRequest represents the signup request body.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Image    string `json:"image"`
}

// Signup creates a new account.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeBody(r, &req); err != nil {
		h.Error(w, r, err)
		return
	}

	name := trimmed(req.Name)
	email := strings.ToLower(trimmed(req.Email))
	username := trimmed(req.Username)
	password := trimmed(req.Password)
	image := trimmed(req.Image)

	// Every validation miss maps to the same message; the response never
	// reveals which field failed.
	if name == "" {
		h.Error(w, r, apperr.Validation("Invalid User Details!"))
		return
	}
	if !strings.Contains(email, "@") || len(email) < 6 {
		h.Error(w, r, apperr.Validation("Invalid User Details!"))
		return
	}
	if len(username) < 3 {
		h.Error(w, r, apperr.Validation("Invalid User Details!"))
		return
	}
	if len(password) < 6 {
		h.Error(w, r, apperr.Validation("Invalid User Details!"))
		return
	}
	if image == "" {
		h.Error(w, r, apperr.Validation("Invalid User Details!"))
		return
	}

	existing, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if existing != nil {
		h.Error(w, r, apperr.Conflict("User Already exists! Try different email!"))
		return
	}

	existing, err = h.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if existing != nil {
		h.Error(w, r, apperr.Conflict("Username already exists! Try different username!"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		h.Error(w, r, err)
		return
	}

	user := &models.User{
		ID:           crypto.NewUUIDv7(),
		Name:         name,
		Email:        email,
		Username:     username,
		PasswordHash: string(hashed),
		Image:        image,
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		h.Error(w, r, err)
		return
	}

	metrics.UsersSignedUp.Inc()

	h.JSON(w, http.StatusCreated, "User Signed up successfully!", map[string]any{"userId": user.ID})
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a user and issues a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		h.Error(w, r, err)
		return
	}

	username := trimmed(req.Username)
	password := trimmed(req.Password)

	user, err := h.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if user == nil {
		h.Error(w, r, apperr.Validation("Invalid Username!"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		h.Error(w, r, apperr.Validation("Invalid Password!"))
		return
	}

	token, _, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.Error(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, "Login successful!", map[string]any{
		"userId":     user.ID,
		"userImage":  user.Image,
		"name":       user.Name,
		"username":   user.Username,
		"joined":     user.CreatedAt,
		"token":      token,
		"expiration": h.tokens.TTL().Milliseconds(),
	})
}

// SearchUsersRequest represents the user search request body. Already
// selected or existing chat members are filtered from the result.
type SearchUsersRequest struct {
	Username      string     `json:"username"`
	SelectedUsers []UserInfo `json:"selectedUsers"`
	ExistingUsers []UserInfo `json:"existingUsers"`
}

// SearchUsers finds other users by username fragment.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.UserIDFromContext(r.Context())

	var req SearchUsersRequest
	if err := decodeBody(r, &req); err != nil {
		h.Error(w, r, err)
		return
	}

	fragment := trimmed(req.Username)

	users, err := h.store.SearchUsersByUsername(r.Context(), fragment, callerID)
	if err != nil {
		h.Error(w, r, err)
		return
	}

	skip := make(map[uuid.UUID]bool, len(req.SelectedUsers)+len(req.ExistingUsers))
	for _, u := range req.SelectedUsers {
		skip[u.UserID] = true
	}
	for _, u := range req.ExistingUsers {
		skip[u.UserID] = true
	}

	results := make([]UserInfo, 0, len(users))
	for i := range users {
		if skip[users[i].ID] {
			continue
		}
		results = append(results, UserInfo{
			UserID:   users[i].ID,
			Username: users[i].Username,
			Image:    users[i].Image,
		})
	}

	if len(results) == 0 {
		h.Error(w, r, apperr.NotFound("No users found or already added!"))
		return
	}

	h.JSON(w, http.StatusOK, "Users fetched successfully!", map[string]any{"users": results})
}

// ChangeAvatarRequest represents the avatar change request body.
type ChangeAvatarRequest struct {
	Image string `json:"image"`
}

// ChangeAvatar updates the caller's avatar image.
func (h *Handler) ChangeAvatar(w http.ResponseWriter, r *http.Request) {
	callerID := middleware.UserIDFromContext(r.Context())

	var req ChangeAvatarRequest
	if err := decodeBody(r, &req); err != nil {
		h.Error(w, r, err)
		return
	}

	image := trimmed(req.Image)
	if image == "" {
		h.Error(w, r, apperr.Validation("Invalid avatar image!"))
		return
	}

	user, err := h.store.GetUserByID(r.Context(), callerID)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if user == nil {
		h.Error(w, r, apperr.NotFound("User not found!"))
		return
	}

	if err := h.store.UpdateUserImage(r.Context(), callerID, image); err != nil {
		h.Error(w, r, err)
		return
	}

	h.JSON(w, http.StatusOK, "Profile avatar changed successfully!", nil)
}

// GetUser fetches a user profile.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		h.Error(w, r, apperr.Validation("Invalid user ID!"))
		return
	}

	user, err := h.store.GetUserByID(r.Context(), userID)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	if user == nil {
		h.Error(w, r, apperr.NotFound("User not found!"))
		return
	}

	h.JSON(w, http.StatusOK, "User fetched successfully!", userInfo(user))
}

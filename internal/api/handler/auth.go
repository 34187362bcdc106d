package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/certops/certbot-ui/internal/api/middleware"
	"github.com/certops/certbot-ui/internal/api/response"
	"github.com/certops/certbot-ui/internal/auth"
	"github.com/certops/certbot-ui/internal/store"
	"github.com/certops/certbot-ui/pkg/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minUsernameLen = 3
	minPasswordLen = 8
)

// AuthHandler serves login, registration, and password management.
type AuthHandler struct {
	store  store.Store
	tokens *auth.TokenManager
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(s store.Store, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{store: s, tokens: tokens}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON", nil)
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same error as a bad password so usernames cannot be probed.
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
			return
		}
		slog.Error("login lookup failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process login", nil)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
		return
	}

	token, err := h.tokens.Generate(user.ID.String(), user.Username)
	if err != nil {
		slog.Error("token generation failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process login", nil)
		return
	}

	slog.Info("user logged in", "username", user.Username)
	response.JSON(w, loginResponse{Token: token, User: user})
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON", nil)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if fe := validateCredentials(req); fe != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid registration request", fe)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("password hashing failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register user", nil)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			response.Error(w, http.StatusConflict, "USERNAME_TAKEN", "Username is already taken", nil)
			return
		}
		slog.Error("user creation failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register user", nil)
		return
	}

	slog.Info("user registered", "username", user.Username)
	response.Created(w, user)
}

// ChangePassword handles POST /api/auth/change-password for the
// authenticated user.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUsername(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Authentication required", nil)
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be valid JSON", nil)
		return
	}
	if len(req.NewPassword) < minPasswordLen {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", fieldErrors{
			"new_password": {"password must be at least 8 characters"},
		})
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		slog.Error("change password lookup failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to change password", nil)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Current password is incorrect", nil)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("password hashing failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to change password", nil)
		return
	}
	if err := h.store.UpdateUserPassword(r.Context(), user.ID, string(hash)); err != nil {
		slog.Error("password update failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to change password", nil)
		return
	}

	slog.Info("password changed", "username", username)
	response.JSON(w, map[string]string{"message": "Password updated"})
}

// Me handles GET /api/auth/me, returning the authenticated identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r)
	username, _ := middleware.GetUsername(r)
	response.JSON(w, map[string]string{"id": userID, "username": username})
}

func validateCredentials(req credentialsRequest) fieldErrors {
	fe := fieldErrors{}
	if len(req.Username) < minUsernameLen {
		fe.add("username", "username must be at least 3 characters")
	}
	if len(req.Password) < minPasswordLen {
		fe.add("password", "password must be at least 8 characters")
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}

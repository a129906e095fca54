package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mzivlin/timecraft/libs/auth"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/model"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

type AuthHandler struct {
	users  *storage.UserRepository
	logger *slog.Logger
	secret string
}

func NewAuthHandler(users *storage.UserRepository, logger *slog.Logger, secret string) *AuthHandler {
	return &AuthHandler{users: users, logger: logger, secret: secret}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, "invalid json body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeValidationError(w, "a valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeValidationError(w, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to hash password")
		return
	}

	user := &model.User{
		ID:           newID("u"),
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if storage.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "conflict", "email already registered")
			return
		}
		h.logger.Error("user create failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{UserID: user.ID, Email: user.Email})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, "invalid json body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		// Same response for unknown email and bad password.
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	now := time.Now().UTC()
	expiresAt := now.Add(tokenTTL)
	token, err := auth.SignHS256(auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		Role:  "user",
		Iat:   now.Unix(),
		Exp:   expiresAt.Unix(),
	}, h.secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to sign token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: formatISO(expiresAt)})
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/inaiurai/whitelist/internal/auth"
	"github.com/inaiurai/whitelist/internal/validation"
)

// AuthHandler serves /api/auth endpoints.
type AuthHandler struct {
	Auth      auth.Service
	Validator *validation.Validator
	Logger    *slog.Logger
}

// --- POST /api/auth/register ---

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, h.Validator, validation.AuthRegister, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	acc, err := h.Auth.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if errors.Is(err, auth.ErrDuplicateEmail) {
		writeMessage(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

// --- POST /api/auth/login ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, h.Validator, validation.AuthLogin, &req); err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	token, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeMessage(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		writeError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/skillcoin/learn-engine/internal/auth"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "store not ready")
		return
	}
	if err := s.users.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "database not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Auth handlers

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Email == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "email and name are required")
		return
	}
	if len(req.Password) < 8 {
		respondError(w, http.StatusBadRequest, "validation_error", "password must be at least 8 characters")
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			respondError(w, http.StatusConflict, "email_taken", "user already exists with this email")
			return
		}
		slog.Error("failed to register user", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to register")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      interface{} `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	session, user, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}
		slog.Error("failed to log in", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to log in")
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r)
	if err := s.auth.Logout(r.Context(), token); err != nil {
		slog.Error("failed to log out", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to log out")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out",
	})
}

// handleMe returns the learner's profile, usage stats and derived skills
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	prof, err := s.profiles.Get(r.Context(), session.UserID)
	if err != nil {
		slog.Error("failed to load profile", "error", err, "user_id", session.UserID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load profile")
		return
	}

	usage, err := s.usage.Get(r.Context(), session.UserID, time.Now())
	if err != nil {
		slog.Error("failed to load usage stats", "error", err, "user_id", session.UserID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load usage stats")
		return
	}

	skills, err := s.tracker.Skills(r.Context(), session.UserID)
	if err != nil {
		slog.Error("failed to derive skills", "error", err, "user_id", session.UserID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to derive skills")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": session.UserID,
		"name":    session.UserName,
		"role":    session.Role,
		"profile": prof,
		"usage":   usage,
		"skills":  skills,
	})
}

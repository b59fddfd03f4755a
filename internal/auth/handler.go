package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/apperror"
)

// Handler exposes HTTP endpoints for signup / login / logout.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// SignupRequest request body for the signup endpoint.
type SignupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid signup payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if _, err := h.svc.Signup(r.Context(), req.Username, req.Email, req.Password, req.ConfirmPassword); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"message": "user registered successfully"})
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	token, user, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if err := h.svc.Logout(r.Context(), token); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// writeError maps the error taxonomy onto the auth routes' status codes:
// client faults are 400, auth faults 401, everything else 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch apperror.KindOf(err) {
	case apperror.KindValidation, apperror.KindConflict, apperror.KindNotFound:
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case apperror.KindAuth:
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	default:
		h.logger.Warnw("auth request failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

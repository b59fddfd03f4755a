package project

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/apperror"
)

// Handler exposes HTTP endpoints for project CRUD and the task board.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// upsertRequest is the body shared by project create/update and task
// create/update.
type upsertRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Stages      []string `json:"stages,omitempty"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid payload"})
		return
	}
	p, err := h.svc.Create(r.Context(), req.Title, req.Description, req.Stages)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":          p.ID,
		"title":       p.Title,
		"description": p.Description,
		"updatedAt":   p.UpdatedAt,
	}})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid payload"})
		return
	}
	p, err := h.svc.Update(r.Context(), r.PathValue("id"), req.Title, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (h *Handler) AddTask(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid payload"})
		return
	}
	t, err := h.svc.AddTask(r.Context(), r.PathValue("id"), req.Title, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTask(r.Context(), r.PathValue("id"), r.PathValue("taskId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, t)
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid payload"})
		return
	}
	if err := h.svc.UpdateTask(r.Context(), r.PathValue("id"), r.PathValue("taskId"), req.Title, req.Description); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTask(r.Context(), r.PathValue("id"), r.PathValue("taskId")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// Reorder handles the bulk board update: the body maps stage keys to
// columns holding the new task order.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	var board Board
	if err := json.NewDecoder(r.Body).Decode(&board); err != nil {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid payload"})
		return
	}
	placements, err := h.svc.Reorder(r.Context(), r.PathValue("id"), board)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, placements)
}

// writeError maps the error taxonomy onto the project routes' status
// codes. Store failures are logged with their cause but surface as a
// generic 500 body.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch apperror.KindOf(err) {
	case apperror.KindValidation, apperror.KindConflict:
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case apperror.KindNotFound:
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case apperror.KindAuth:
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	default:
		h.logger.Warnw("project request failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

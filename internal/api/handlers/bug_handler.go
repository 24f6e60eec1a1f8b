package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"clawqa/internal/engine/bugs"
	"clawqa/internal/pkg/errors"
	"clawqa/internal/pkg/validator"
	"clawqa/internal/platform/models"
	"clawqa/internal/platform/repositories"

	"github.com/rs/zerolog/log"
)

type BugLister interface {
	List(ctx context.Context, filter models.BugFilter) ([]*models.BugReport, error)
}

type BugHandler struct {
	svc  *bugs.Service
	bugs BugLister
}

func NewBugHandler(svc *bugs.Service, bugs BugLister) *BugHandler {
	return &BugHandler{svc: svc, bugs: bugs}
}

func (h *BugHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bugs.CreateBugInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if err := validator.Required("cycle_id", req.CycleID, "title", req.Title, "severity", req.Severity); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	if len(req.DeviceInfo) > 0 && !json.Valid(req.DeviceInfo) {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "device_info must be a JSON object", nil)
		return
	}

	bug, err := h.svc.CreateBug(r.Context(), claimsFrom(r).UserID, req)
	if err != nil {
		if stderrors.Is(err, repositories.ErrNotFound) {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Test cycle not found", nil)
			return
		}
		log.Error().Err(err).Str("cycle_id", req.CycleID).Msg("failed to create bug report")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create bug report", nil)
		return
	}
	writeJSON(w, http.StatusCreated, bug)
}

func (h *BugHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.BugFilter{
		CycleID:   q.Get("cycle_id"),
		Severity:  q.Get("severity"),
		Status:    q.Get("status"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	list, err := h.bugs.List(r.Context(), filter)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list bug reports", nil)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

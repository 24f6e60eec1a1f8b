package handlers

import (
	stderrors "errors"
	"net/http"

	"clawqa/internal/engine/bugs"
	"clawqa/internal/pkg/errors"
	"clawqa/internal/platform/repositories"
)

type CycleHandler struct {
	svc *bugs.Service
}

func NewCycleHandler(svc *bugs.Service) *CycleHandler {
	return &CycleHandler{svc: svc}
}

func (h *CycleHandler) Complete(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.svc.CompleteCycle(r.Context(), param(r, "cycle_id"), claimsFrom(r).UserID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, cycle)
	case stderrors.Is(err, repositories.ErrNotFound):
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Test cycle not found", nil)
	case stderrors.Is(err, bugs.ErrForbidden):
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Only the project owner can complete a cycle", nil)
	default:
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to complete cycle", nil)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"clawqa/internal/pkg/errors"
	"clawqa/internal/platform/auth"
	"clawqa/internal/platform/models"
	"clawqa/internal/platform/repositories"
)

type APIKeyStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	ListByUser(ctx context.Context, userID string) ([]*models.APIKey, error)
	Revoke(ctx context.Context, id, userID string) error
}

type APIKeyHandler struct {
	keys APIKeyStore
}

func NewAPIKeyHandler(keys APIKeyStore) *APIKeyHandler {
	return &APIKeyHandler{keys: keys}
}

func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "name is required", nil)
		return
	}

	rawKey, hash, prefix, err := auth.GenerateAPIKey()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate key", nil)
		return
	}

	apiKey := &models.APIKey{
		UserID:    claims.UserID,
		Name:      req.Name,
		KeyHash:   hash,
		KeyPrefix: prefix,
	}
	if err := h.keys.Create(r.Context(), apiKey); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create key", nil)
		return
	}

	// the raw key is returned only once
	writeJSON(w, http.StatusCreated, struct {
		ID        string `json:"id"`
		Key       string `json:"key"`
		Name      string `json:"name"`
		KeyPrefix string `json:"key_prefix"`
		CreatedAt int64  `json:"created_at"`
	}{
		ID:        apiKey.ID,
		Key:       rawKey,
		Name:      apiKey.Name,
		KeyPrefix: apiKey.KeyPrefix,
		CreatedAt: apiKey.CreatedAt,
	})
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListByUser(r.Context(), claimsFrom(r).UserID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list keys", nil)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	err := h.keys.Revoke(r.Context(), param(r, "key_id"), claimsFrom(r).UserID)
	if err != nil {
		if stderrors.Is(err, repositories.ErrNotFound) {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "API key not found", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to revoke key", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

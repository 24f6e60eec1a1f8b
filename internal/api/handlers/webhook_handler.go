package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"clawqa/internal/engine/webhooks"
	"clawqa/internal/pkg/errors"
	"clawqa/internal/pkg/validator"
	"clawqa/internal/platform/auth"
	"clawqa/internal/platform/models"
	"clawqa/internal/platform/repositories"

	"github.com/rs/zerolog/log"
)

const secretBytes = 32

type WebhookStore interface {
	Create(ctx context.Context, webhook *models.Webhook) error
	GetByID(ctx context.Context, id string) (*models.Webhook, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Webhook, error)
	Update(ctx context.Context, webhook *models.Webhook) error
	Delete(ctx context.Context, id string) error
}

type DeliveryLister interface {
	ListByWebhook(ctx context.Context, webhookID string, limit int) ([]*models.WebhookDelivery, error)
}

type WebhookHandler struct {
	webhooks   WebhookStore
	deliveries DeliveryLister
	executor   *webhooks.Executor
	pageSize   int
}

func NewWebhookHandler(store WebhookStore, deliveries DeliveryLister, executor *webhooks.Executor, pageSize int) *WebhookHandler {
	return &WebhookHandler{webhooks: store, deliveries: deliveries, executor: executor, pageSize: pageSize}
}

// createdWebhook is the only response that carries the signing secret.
type createdWebhook struct {
	*models.Webhook
	Secret string `json:"secret"`
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req struct {
		URL    string   `json:"url"`
		Events []string `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if err := validator.HTTPURL("url", req.URL); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}
	if len(req.Events) == 0 {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "events is required", nil)
		return
	}

	secret, err := auth.GenerateSecret(secretBytes)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to generate secret", nil)
		return
	}

	webhook := &models.Webhook{
		UserID: claims.UserID,
		URL:    req.URL,
		Events: req.Events,
		Secret: secret,
	}
	if err := h.webhooks.Create(r.Context(), webhook); err != nil {
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("failed to create webhook")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create webhook", nil)
		return
	}

	writeJSON(w, http.StatusCreated, createdWebhook{Webhook: webhook, Secret: webhook.Secret})
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.webhooks.ListByUser(r.Context(), claimsFrom(r).UserID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list webhooks", nil)
		return
	}
	if hooks == nil {
		hooks = []*models.Webhook{}
	}
	writeJSON(w, http.StatusOK, hooks)
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req struct {
		URL    *string   `json:"url"`
		Events *[]string `json:"events"`
		Active *bool     `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.URL != nil {
		if err := validator.HTTPURL("url", *req.URL); err != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
			return
		}
		webhook.URL = *req.URL
	}
	if req.Events != nil {
		if len(*req.Events) == 0 {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "events must not be empty", nil)
			return
		}
		webhook.Events = *req.Events
	}
	if req.Active != nil {
		webhook.Active = *req.Active
	}

	if err := h.webhooks.Update(r.Context(), webhook); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to update webhook", nil)
		return
	}
	writeJSON(w, http.StatusOK, webhook)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := h.webhooks.Delete(r.Context(), webhook.ID); err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to delete webhook", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Deliveries lists the newest delivery attempts of a webhook.
func (h *WebhookHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	webhook, ok := h.owned(w, r)
	if !ok {
		return
	}

	deliveries, err := h.deliveries.ListByWebhook(r.Context(), webhook.ID, h.pageSize)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list deliveries", nil)
		return
	}
	writeJSON(w, http.StatusOK, deliveries)
}

// Test sends a signed test.ping to an arbitrary URL and reports the result.
func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL    string `json:"url"`
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if err := validator.HTTPURL("url", req.URL); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	res, err := h.executor.Ping(r.Context(), req.URL, req.Secret)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// owned loads the webhook named in the path. Webhooks of other users are
// reported as not found.
func (h *WebhookHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Webhook, bool) {
	webhook, err := h.webhooks.GetByID(r.Context(), param(r, "webhook_id"))
	if err != nil {
		if stderrors.Is(err, repositories.ErrNotFound) {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Webhook not found", nil)
			return nil, false
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load webhook", nil)
		return nil, false
	}
	if webhook.UserID != claimsFrom(r).UserID {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Webhook not found", nil)
		return nil, false
	}
	return webhook, true
}

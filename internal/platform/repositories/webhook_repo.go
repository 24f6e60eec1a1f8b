package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clawqa/internal/platform/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const webhookColumns = `id, user_id, url, events, secret, active, created_at`

var errMalformedEvents = errors.New("malformed events filter")

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	if webhook.ID == "" {
		webhook.ID = "wh_" + uuid.New().String()
	}
	webhook.CreatedAt = time.Now().Unix()
	webhook.Active = true

	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhooks (id, user_id, url, events, secret, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, webhook.ID, webhook.UserID, webhook.URL, string(eventsJSON), webhook.Secret, webhook.Active, webhook.CreatedAt)
	return err
}

func (r *WebhookRepository) GetByID(ctx context.Context, id string) (*models.Webhook, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE id = ?`, id)
	w, err := scanWebhook(row)
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

func (r *WebhookRepository) ListByUser(ctx context.Context, userID string) ([]*models.Webhook, error) {
	return r.list(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// ListActiveByOwner returns the active subscriptions of ownerID. Rows whose
// event filter cannot be decoded are skipped.
func (r *WebhookRepository) ListActiveByOwner(ctx context.Context, ownerID string) ([]*models.Webhook, error) {
	return r.list(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE user_id = ? AND active = 1`, ownerID)
}

func (r *WebhookRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Webhook, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var webhooks []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			if errors.Is(err, errMalformedEvents) {
				log.Warn().Err(err).Msg("skipping webhook with malformed events filter")
				continue
			}
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

// Update writes url, events and active. The signing secret is immutable.
func (r *WebhookRepository) Update(ctx context.Context, webhook *models.Webhook) error {
	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}

	query := `UPDATE webhooks SET url = ?, events = ?, active = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, webhook.URL, string(eventsJSON), webhook.Active, webhook.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *WebhookRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanWebhook(row scanner) (*models.Webhook, error) {
	var w models.Webhook
	var eventsStr string

	if err := row.Scan(&w.ID, &w.UserID, &w.URL, &eventsStr, &w.Secret, &w.Active, &w.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(eventsStr), &w.Events); err != nil {
		return nil, fmt.Errorf("%w: webhook %s: %v", errMalformedEvents, w.ID, err)
	}
	return &w, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

package repositories

import (
	"context"
	"database/sql"
	"time"

	"clawqa/internal/platform/models"

	"github.com/google/uuid"
)

// DeliveryRepository stores the append-only webhook delivery log. It has
// no update or delete methods.
type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) Create(ctx context.Context, d *models.WebhookDelivery) error {
	if d.ID == "" {
		d.ID = "whd_" + uuid.New().String()
	}
	if d.DeliveredAt == 0 {
		d.DeliveredAt = time.Now().UnixMilli()
	}

	var statusCode sql.NullInt64
	if d.StatusCode != nil {
		statusCode = sql.NullInt64{Int64: int64(*d.StatusCode), Valid: true}
	}

	query := `
		INSERT INTO webhook_deliveries (
			id, webhook_id, event, payload, status_code, response_body,
			success, duration_ms, retry_count, delivered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.WebhookID,
		d.Event,
		d.Payload,
		statusCode,
		d.ResponseBody,
		d.Success,
		d.DurationMs,
		d.RetryCount,
		d.DeliveredAt,
	)
	return err
}

// ListByWebhook returns the newest deliveries first.
func (r *DeliveryRepository) ListByWebhook(ctx context.Context, webhookID string, limit int) ([]*models.WebhookDelivery, error) {
	query := `
		SELECT id, webhook_id, event, payload, status_code, response_body,
		       success, duration_ms, retry_count, delivered_at
		FROM webhook_deliveries
		WHERE webhook_id = ?
		ORDER BY delivered_at DESC, retry_count DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, webhookID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deliveries := []*models.WebhookDelivery{}
	for rows.Next() {
		var d models.WebhookDelivery
		var statusCode sql.NullInt64

		if err := rows.Scan(&d.ID, &d.WebhookID, &d.Event, &d.Payload, &statusCode, &d.ResponseBody,
			&d.Success, &d.DurationMs, &d.RetryCount, &d.DeliveredAt); err != nil {
			return nil, err
		}
		if statusCode.Valid {
			code := int(statusCode.Int64)
			d.StatusCode = &code
		}
		deliveries = append(deliveries, &d)
	}
	return deliveries, rows.Err()
}

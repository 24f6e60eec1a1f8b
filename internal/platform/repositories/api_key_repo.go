package repositories

import (
	"context"
	"database/sql"
	"time"

	"clawqa/internal/platform/models"

	"github.com/google/uuid"
)

type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	if key.ID == "" {
		key.ID = "key_" + uuid.New().String()
	}
	key.CreatedAt = time.Now().Unix()

	query := `
		INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt)
	return err
}

// GetByHash returns revoked keys too; callers check RevokedAt.
func (r *APIKeyRepository) GetByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	query := `SELECT id, user_id, name, key_prefix, last_used_at, created_at, revoked_at FROM api_keys WHERE key_hash = ?`
	k, err := scanAPIKey(r.db.QueryRowContext(ctx, query, hash))
	if err != nil {
		return nil, notFound(err)
	}
	k.KeyHash = hash
	return k, nil
}

func (r *APIKeyRepository) ListByUser(ctx context.Context, userID string) ([]*models.APIKey, error) {
	query := `
		SELECT id, user_id, name, key_prefix, last_used_at, created_at, revoked_at
		FROM api_keys WHERE user_id = ? AND revoked_at IS NULL ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []*models.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke marks the key revoked. Keys owned by another user are reported as
// not found.
func (r *APIKeyRepository) Revoke(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET revoked_at = ? WHERE id = ? AND user_id = ? AND revoked_at IS NULL`,
		time.Now().Unix(), id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}

func scanAPIKey(row scanner) (*models.APIKey, error) {
	var k models.APIKey
	var lastUsedAt, revokedAt sql.NullInt64

	if err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &lastUsedAt, &k.CreatedAt, &revokedAt); err != nil {
		return nil, err
	}
	if lastUsedAt.Valid {
		k.LastUsedAt = &lastUsedAt.Int64
	}
	if revokedAt.Valid {
		k.RevokedAt = &revokedAt.Int64
	}
	return &k, nil
}

// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/bagofwords/mcpgateway/internal/tenant"
)

// APIKeyRepository implements tenant.APIKeyRepository: long-lived
// bow_-prefixed credentials for non-browser MCP clients (spec §6
// ApiKeyService).
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new API key repository.
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create inserts a new API key row.
func (r *APIKeyRepository) Create(ctx context.Context, key *tenant.APIKey) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO api_keys (id, tenant_id, user_id, name, key_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, key.ID, key.TenantID, key.UserID, key.Name, key.KeyHash, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// GetLiveByHash retrieves a non-tombstoned key by its hash.
func (r *APIKeyRepository) GetLiveByHash(ctx context.Context, keyHash string) (*tenant.APIKey, error) {
	var key tenant.APIKey
	var deletedAt sql.NullTime
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, tenant_id, user_id, name, key_hash, created_at, deleted_at
		FROM api_keys WHERE key_hash = $1 AND deleted_at IS NULL
	`, keyHash).Scan(&key.ID, &key.TenantID, &key.UserID, &key.Name, &key.KeyHash, &key.CreatedAt, &deletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, tenant.ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	if deletedAt.Valid {
		key.DeletedAt = &deletedAt.Time
	}
	return &key, nil
}

// ListByTenant returns a tenant's live API keys.
func (r *APIKeyRepository) ListByTenant(ctx context.Context, tenantID string) ([]*tenant.APIKey, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, tenant_id, user_id, name, key_hash, created_at, deleted_at
		FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*tenant.APIKey
	for rows.Next() {
		var key tenant.APIKey
		var deletedAt sql.NullTime
		if err := rows.Scan(&key.ID, &key.TenantID, &key.UserID, &key.Name, &key.KeyHash, &key.CreatedAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		if deletedAt.Valid {
			key.DeletedAt = &deletedAt.Time
		}
		keys = append(keys, &key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return keys, nil
}

// Delete tombstones a key scoped to its owning tenant.
func (r *APIKeyRepository) Delete(ctx context.Context, id, tenantID string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE api_keys SET deleted_at = $3 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, id, tenantID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrAPIKeyNotFound
	}
	return nil
}

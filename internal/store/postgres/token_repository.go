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
	"github.com/bagofwords/mcpgateway/internal/oauth2"
)

// AccessTokenRepository implements oauth2.AccessTokenRepository over the
// merged access+refresh token table (spec §3/§4.4): one row per grant,
// with nullable refresh_token_hash/refresh_expires_at columns rather
// than a paired second table.
type AccessTokenRepository struct {
	db *DB
}

// NewAccessTokenRepository creates a new access token repository.
func NewAccessTokenRepository(db *DB) *AccessTokenRepository {
	return &AccessTokenRepository{db: db}
}

// Create inserts a newly-minted access token row, optionally carrying a
// paired refresh token.
func (r *AccessTokenRepository) Create(token *oauth2.AccessTokenRecord) error {
	ctx := context.Background()

	var refreshHash sql.NullString
	if token.RefreshTokenHash != nil {
		refreshHash = sql.NullString{String: *token.RefreshTokenHash, Valid: true}
	}
	var refreshExpiresAt sql.NullTime
	if token.RefreshExpiresAt != nil {
		refreshExpiresAt = sql.NullTime{Time: *token.RefreshExpiresAt, Valid: true}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO oauth_access_tokens (
			id, token_hash, client_id, user_id, organization_id, scope,
			expires_at, refresh_token_hash, refresh_expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		token.ID, token.TokenHash, token.ClientID, token.UserID, token.OrganizationID, token.Scope,
		token.ExpiresAt, refreshHash, refreshExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}
	return nil
}

// GetLiveByTokenHash retrieves a non-tombstoned access token by its hash.
func (r *AccessTokenRepository) GetLiveByTokenHash(tokenHash string) (*oauth2.AccessTokenRecord, error) {
	ctx := context.Background()
	row := r.db.pool.QueryRow(ctx, `
		SELECT id, token_hash, client_id, user_id, organization_id, scope,
			expires_at, refresh_token_hash, refresh_expires_at, created_at, deleted_at
		FROM oauth_access_tokens
		WHERE token_hash = $1 AND deleted_at IS NULL
	`, tokenHash)
	token, err := scanAccessTokenRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, oauth2.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	return token, nil
}

// ConsumeLiveByRefreshHash atomically loads and tombstones the record
// addressed by its refresh token hash, scoped to clientID — the
// concurrency primitive spec §5 requires for single-use refresh grants.
func (r *AccessTokenRepository) ConsumeLiveByRefreshHash(refreshTokenHash, clientID string) (*oauth2.AccessTokenRecord, error) {
	ctx := context.Background()
	row := r.db.pool.QueryRow(ctx, `
		UPDATE oauth_access_tokens SET deleted_at = $3
		WHERE refresh_token_hash = $1 AND client_id = $2 AND deleted_at IS NULL
			AND refresh_expires_at > $3
		RETURNING id, token_hash, client_id, user_id, organization_id, scope,
			expires_at, refresh_token_hash, refresh_expires_at, created_at, $3
	`, refreshTokenHash, clientID, time.Now())

	var token oauth2.AccessTokenRecord
	var refreshHash sql.NullString
	var refreshExpiresAt sql.NullTime
	var deletedAt time.Time
	if err := row.Scan(
		&token.ID, &token.TokenHash, &token.ClientID, &token.UserID, &token.OrganizationID, &token.Scope,
		&token.ExpiresAt, &refreshHash, &refreshExpiresAt, &token.CreatedAt, &deletedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, oauth2.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}
	if refreshHash.Valid {
		token.RefreshTokenHash = &refreshHash.String
	}
	if refreshExpiresAt.Valid {
		token.RefreshExpiresAt = &refreshExpiresAt.Time
	}
	token.DeletedAt = &deletedAt
	return &token, nil
}

func scanAccessTokenRow(row rowScanner) (*oauth2.AccessTokenRecord, error) {
	var token oauth2.AccessTokenRecord
	var refreshHash sql.NullString
	var refreshExpiresAt sql.NullTime
	var deletedAt sql.NullTime
	if err := row.Scan(
		&token.ID, &token.TokenHash, &token.ClientID, &token.UserID, &token.OrganizationID, &token.Scope,
		&token.ExpiresAt, &refreshHash, &refreshExpiresAt, &token.CreatedAt, &deletedAt,
	); err != nil {
		return nil, err
	}
	if refreshHash.Valid {
		token.RefreshTokenHash = &refreshHash.String
	}
	if refreshExpiresAt.Valid {
		token.RefreshExpiresAt = &refreshExpiresAt.Time
	}
	if deletedAt.Valid {
		token.DeletedAt = &deletedAt.Time
	}
	return &token, nil
}

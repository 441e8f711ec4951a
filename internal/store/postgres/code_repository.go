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
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/bagofwords/mcpgateway/internal/oauth2"
)

// AuthorizationCodeRepository implements oauth2.AuthorizationCodeRepository.
type AuthorizationCodeRepository struct {
	db *DB
}

// NewAuthorizationCodeRepository creates a new authorization code repository.
func NewAuthorizationCodeRepository(db *DB) *AuthorizationCodeRepository {
	return &AuthorizationCodeRepository{db: db}
}

// Create inserts a freshly-issued authorization code.
func (r *AuthorizationCodeRepository) Create(code *oauth2.AuthorizationCode) error {
	ctx := context.Background()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO oauth_authorization_codes (
			id, code, client_id, user_id, organization_id,
			redirect_uri, scope, code_challenge, code_challenge_method,
			expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		code.ID, code.Code, code.ClientID, code.UserID, code.OrganizationID,
		code.RedirectURI, code.Scope, code.CodeChallenge, code.CodeChallengeMethod,
		code.ExpiresAt, code.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create authorization code: %w", err)
	}
	return nil
}

// ConsumeLive atomically tombstones a live (not yet consumed) code and
// returns its prior row in a single statement — the concurrency
// primitive spec §5 requires for single-use enforcement. An
// already-expired code is tombstoned too: expiry still must be recorded
// as a side effect of the failed exchange (spec §4.3/§8), so the
// caller, not this WHERE clause, is responsible for rejecting it via
// AuthorizationCode.IsExpired().
func (r *AuthorizationCodeRepository) ConsumeLive(codeStr string) (*oauth2.AuthorizationCode, error) {
	ctx := context.Background()
	now := time.Now()

	var code oauth2.AuthorizationCode
	var deletedAt time.Time
	err := r.db.pool.QueryRow(ctx, `
		UPDATE oauth_authorization_codes SET deleted_at = $2
		WHERE code = $1 AND deleted_at IS NULL
		RETURNING id, code, client_id, user_id, organization_id,
			redirect_uri, scope, code_challenge, code_challenge_method,
			expires_at, created_at, deleted_at
	`, codeStr, now).Scan(
		&code.ID, &code.Code, &code.ClientID, &code.UserID, &code.OrganizationID,
		&code.RedirectURI, &code.Scope, &code.CodeChallenge, &code.CodeChallengeMethod,
		&code.ExpiresAt, &code.CreatedAt, &deletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, oauth2.ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}
	code.DeletedAt = &deletedAt
	return &code, nil
}

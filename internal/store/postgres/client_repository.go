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

// ClientRepository implements oauth2.ClientRepository over Postgres,
// storing redirect URIs and scopes as text arrays.
type ClientRepository struct {
	db *DB
}

// NewClientRepository creates a new client repository.
func NewClientRepository(db *DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create inserts a new OAuth client row.
func (r *ClientRepository) Create(client *oauth2.Client) error {
	ctx := context.Background()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO oauth_clients (
			id, organization_id, client_id, client_secret_hash, name,
			redirect_uris, scopes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		client.ID, client.OrganizationID, client.ClientID, client.ClientSecretHash, client.Name,
		client.RedirectURIs, client.Scopes, client.CreatedAt, client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetByClientID retrieves a live client by its public client_id.
func (r *ClientRepository) GetByClientID(clientID string) (*oauth2.Client, error) {
	return r.scanOne(context.Background(), `
		SELECT id, organization_id, client_id, client_secret_hash, name,
			redirect_uris, scopes, created_at, updated_at, deleted_at
		FROM oauth_clients
		WHERE client_id = $1 AND deleted_at IS NULL
	`, clientID)
}

// ListByOrganization returns all live clients belonging to organizationID.
func (r *ClientRepository) ListByOrganization(organizationID string) ([]*oauth2.Client, error) {
	ctx := context.Background()
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, organization_id, client_id, client_secret_hash, name,
			redirect_uris, scopes, created_at, updated_at, deleted_at
		FROM oauth_clients
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []*oauth2.Client
	for rows.Next() {
		client, err := scanClientRow(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return clients, nil
}

// Update persists mutable client fields (name, redirect URIs, scopes).
func (r *ClientRepository) Update(client *oauth2.Client) error {
	ctx := context.Background()
	result, err := r.db.pool.Exec(ctx, `
		UPDATE oauth_clients SET
			name = $2, redirect_uris = $3, scopes = $4, client_secret_hash = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
	`, client.ID, client.Name, client.RedirectURIs, client.Scopes, client.ClientSecretHash, client.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	if result.RowsAffected() == 0 {
		return oauth2.ErrClientNotFound
	}
	return nil
}

// Delete tombstones a client scoped to its owning organization. Keyed off
// the public client_id, not the internal id — that's the only identifier
// callers outside this package ever hold (URL params, list/register
// responses).
func (r *ClientRepository) Delete(clientID, organizationID string) error {
	ctx := context.Background()
	result, err := r.db.pool.Exec(ctx, `
		UPDATE oauth_clients SET deleted_at = $3
		WHERE client_id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`, clientID, organizationID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if result.RowsAffected() == 0 {
		return oauth2.ErrClientNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClientRow(row rowScanner) (*oauth2.Client, error) {
	var client oauth2.Client
	var deletedAt sql.NullTime
	if err := row.Scan(
		&client.ID, &client.OrganizationID, &client.ClientID, &client.ClientSecretHash, &client.Name,
		&client.RedirectURIs, &client.Scopes, &client.CreatedAt, &client.UpdatedAt, &deletedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}
	if deletedAt.Valid {
		client.DeletedAt = &deletedAt.Time
	}
	return &client, nil
}

func (r *ClientRepository) scanOne(ctx context.Context, query string, args ...any) (*oauth2.Client, error) {
	row := r.db.pool.QueryRow(ctx, query, args...)
	var client oauth2.Client
	var deletedAt sql.NullTime
	err := row.Scan(
		&client.ID, &client.OrganizationID, &client.ClientID, &client.ClientSecretHash, &client.Name,
		&client.RedirectURIs, &client.Scopes, &client.CreatedAt, &client.UpdatedAt, &deletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, oauth2.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if deletedAt.Valid {
		client.DeletedAt = &deletedAt.Time
	}
	return &client, nil
}

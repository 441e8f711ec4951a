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

package tenant

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bagofwords/mcpgateway/internal/id"
)

// apiKeyPrefix marks a credential as a tenant-issued API key rather than an
// OAuth bow_oauth_ bearer — the auth dispatcher (spec §4.9) routes on it.
const apiKeyPrefix = "bow_"

// ErrAPIKeyNotFound is returned when a key hash has no live match.
var ErrAPIKeyNotFound = errors.New("api key not found")

// APIKey is a long-lived, tenant-scoped credential used by non-browser MCP
// clients (Claude Code, Cursor) in place of the OAuth bearer flow. It fills
// the spec §6 ApiKeyService external collaborator role.
type APIKey struct {
	ID        string
	TenantID  string
	UserID    string
	Name      string
	KeyHash   string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// IsLive reports whether the key is usable.
func (k *APIKey) IsLive() bool {
	return k.DeletedAt == nil
}

// APIKeyRepository stores tenant API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *APIKey) error
	GetLiveByHash(ctx context.Context, keyHash string) (*APIKey, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*APIKey, error)
	Delete(ctx context.Context, id, tenantID string) error
}

// hashAPIKey returns the lowercase hex SHA-256 digest of an API key's
// plaintext, mirroring internal/oauth2's hashToken without importing it —
// the two packages deliberately don't share a credential-hashing helper
// since they guard unrelated credential kinds.
func hashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func generateAPIKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(buf)
}

// CreateAPIKey issues a new API key for userID under tenantID, returning
// the plaintext exactly once.
func (s *Service) CreateAPIKey(ctx context.Context, tenantID, userID, name string) (key *APIKey, plaintext string, err error) {
	plaintext = generateAPIKey()
	key = &APIKey{
		ID:        id.NewUUIDv7(),
		TenantID:  tenantID,
		UserID:    userID,
		Name:      name,
		KeyHash:   hashAPIKey(plaintext),
		CreatedAt: time.Now(),
	}
	if err := s.apiKeys.Create(ctx, key); err != nil {
		return nil, "", err
	}
	return key, plaintext, nil
}

// ListAPIKeys returns a tenant's live API keys, never the plaintext.
func (s *Service) ListAPIKeys(ctx context.Context, tenantID string) ([]*APIKey, error) {
	return s.apiKeys.ListByTenant(ctx, tenantID)
}

// RevokeAPIKey tombstones a key.
func (s *Service) RevokeAPIKey(ctx context.Context, id, tenantID string) error {
	return s.apiKeys.Delete(ctx, id, tenantID)
}

// GetUserByAPIKey resolves the user ID bound to a live API key. Implements
// spec §6's `ApiKeyService.get_user_by_api_key`.
func (s *Service) GetUserByAPIKey(ctx context.Context, token string) (string, error) {
	key, err := s.apiKeys.GetLiveByHash(ctx, hashAPIKey(token))
	if err != nil || !key.IsLive() {
		return "", ErrAPIKeyNotFound
	}
	return key.UserID, nil
}

// GetTenantByAPIKey resolves the tenant ID bound to a live API key.
// Implements spec §6's `ApiKeyService.get_organization_by_api_key`.
func (s *Service) GetTenantByAPIKey(ctx context.Context, token string) (string, error) {
	key, err := s.apiKeys.GetLiveByHash(ctx, hashAPIKey(token))
	if err != nil || !key.IsLive() {
		return "", ErrAPIKeyNotFound
	}
	return key.TenantID, nil
}

// IsAPIKey reports whether token carries the tenant API-key prefix and is
// not an OAuth access token (spec §4.9 step 2/3b prefix routing).
func IsAPIKey(token string) bool {
	return len(token) > len(apiKeyPrefix) && token[:len(apiKeyPrefix)] == apiKeyPrefix && !isOAuthBearer(token)
}

const oauthBearerPrefix = "bow_oauth_"

func isOAuthBearer(token string) bool {
	return len(token) >= len(oauthBearerPrefix) && token[:len(oauthBearerPrefix)] == oauthBearerPrefix
}

// secureCompareHash is unused directly (repositories filter by exact hash
// lookup) but kept for parity with oauth2's constant-time comparison
// posture should a future repository implementation compare in-process.
func secureCompareHash(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

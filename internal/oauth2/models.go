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

// Package oauth2 implements the MCP authorization server: a narrow OAuth
// 2.1 Authorization Code (+PKCE S256) and Refresh Token grant provider.
// It deliberately does not implement arbitrary OAuth flows, dynamic
// client registration, or OIDC ID token issuance.
package oauth2

import (
	"errors"
	"time"
)

// Domain errors. Exchange/refresh failures are translated to the single
// generic protocol error invalid_grant at the service boundary — these
// are for internal repository signaling only.
var (
	ErrClientNotFound = errors.New("oauth2: client not found")
	ErrCodeNotFound   = errors.New("oauth2: authorization code not found")
	ErrTokenNotFound  = errors.New("oauth2: token record not found")
)

// DefaultScope is applied to clients and codes when no scope is supplied.
const DefaultScope = "mcp"

// DefaultRedirectURIs is the allowlist used when a client is created
// without an explicit redirect_uris list (spec §6).
var DefaultRedirectURIs = []string{
	"https://claude.ai/api/mcp/auth_callback",
	"https://claude.com/api/mcp/auth_callback",
	"http://localhost:6274/oauth/callback",
	"http://localhost:6274/oauth/callback/debug",
}

// Client is a registered OAuth client belonging to an organization.
type Client struct {
	ID               string
	OrganizationID   string
	ClientID         string // bow_client_... — public identifier
	ClientSecretHash string // hex SHA-256 of the bow_secret_... value
	Name             string
	RedirectURIs     []string
	Scopes           []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeletedAt        *time.Time
}

// IsDeleted reports whether the client has been tombstoned.
func (c *Client) IsDeleted() bool {
	return c.DeletedAt != nil
}

// ValidateRedirectURI reports whether uri is an exact, registered match.
func (c *Client) ValidateRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// PublicInfo is the subset of a Client safe to return to a caller that
// only knows the client_id (never includes the secret hash).
type PublicInfo struct {
	ClientID     string   `json:"client_id"`
	Name         string   `json:"name"`
	RedirectURIs []string `json:"redirect_uris"`
	Scopes       []string `json:"scopes"`
}

// AuthorizationCode is a short-lived, single-use code issued at the end
// of the authorize step (spec §3). State machine: ISSUED -> CONSUMED (on
// successful exchange) or EXPIRED (discovered lazily at exchange time);
// both terminal states are represented by DeletedAt being set.
type AuthorizationCode struct {
	ID                  string
	Code                string
	ClientID             string // client_id, not the internal Client.ID
	UserID               string
	OrganizationID       string
	RedirectURI          string
	Scope                string
	CodeChallenge        string // base64url, no padding, S256 digest
	CodeChallengeMethod  string // always "S256"
	ExpiresAt            time.Time
	CreatedAt            time.Time
	DeletedAt            *time.Time
}

// IsExpired reports whether the code has passed its expiry instant.
func (c *AuthorizationCode) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// IsLive reports whether the code is still usable: not tombstoned and
// not expired.
func (c *AuthorizationCode) IsLive() bool {
	return c.DeletedAt == nil && !c.IsExpired()
}

// AccessTokenRecord is the single merged row backing both the access
// token and (optionally) its paired refresh token, matching the
// original_source schema (one table, nullable refresh columns) rather
// than the teacher's split AccessToken/RefreshToken design.
type AccessTokenRecord struct {
	ID                string
	TokenHash         string // hex SHA-256 of the bow_oauth_... value
	ClientID          string
	UserID            string
	OrganizationID    string
	Scope             string
	ExpiresAt         time.Time
	RefreshTokenHash  *string // hex SHA-256 of the bow_rt_... value, nullable
	RefreshExpiresAt  *time.Time
	CreatedAt         time.Time
	DeletedAt         *time.Time
}

// IsExpired reports whether the access token has passed its expiry.
func (t *AccessTokenRecord) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsLive reports whether the access token is usable right now.
func (t *AccessTokenRecord) IsLive() bool {
	return t.DeletedAt == nil && !t.IsExpired()
}

// RefreshIsExpired reports whether the paired refresh token, if any, has
// passed its expiry instant.
func (t *AccessTokenRecord) RefreshIsExpired() bool {
	if t.RefreshExpiresAt == nil {
		return true
	}
	return time.Now().After(*t.RefreshExpiresAt)
}

// ClientRepository persists OAuth clients.
type ClientRepository interface {
	Create(client *Client) error
	GetByClientID(clientID string) (*Client, error)
	ListByOrganization(organizationID string) ([]*Client, error)
	Update(client *Client) error
	// Delete tombstones the client (sets deleted_at); never a hard delete.
	// Keyed off the public client_id, not the internal id.
	Delete(clientID, organizationID string) error
}

// AuthorizationCodeRepository persists authorization codes.
type AuthorizationCodeRepository interface {
	Create(code *AuthorizationCode) error
	// ConsumeLive atomically loads the code and tombstones it in one
	// statement, returning ErrCodeNotFound if no live row exists
	// (already consumed, or never existed). This is the concurrency
	// primitive spec §5 requires for single-use enforcement.
	ConsumeLive(code string) (*AuthorizationCode, error)
}

// AccessTokenRepository persists the merged access/refresh token rows.
type AccessTokenRepository interface {
	Create(token *AccessTokenRecord) error
	GetLiveByTokenHash(tokenHash string) (*AccessTokenRecord, error)
	// ConsumeLiveByRefreshHash atomically loads and tombstones the
	// record addressed by its refresh token hash, scoped to clientID.
	ConsumeLiveByRefreshHash(refreshTokenHash, clientID string) (*AccessTokenRecord, error)
}

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

package oauth2

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bagofwords/mcpgateway/internal/audit"
	"github.com/bagofwords/mcpgateway/internal/identity"
	"github.com/bagofwords/mcpgateway/internal/tenant"
)

const (
	authCodeLifetime     = 5 * time.Minute
	accessTokenLifetime  = 1 * time.Hour
	refreshTokenLifetime = 30 * 24 * time.Hour
)

// UserExistenceChecker confirms a bearer token's user id still resolves
// to a live user (spec §4.5). Narrowed to the single lookup ValidateBearer
// needs from identity.UserRepository.
type UserExistenceChecker interface {
	GetByID(id string) (*identity.User, error)
}

// OrganizationExistenceChecker confirms a bearer token's organization id
// still resolves to a live tenant (spec §4.5). Narrowed to the single
// lookup ValidateBearer needs from tenant.Repository.
type OrganizationExistenceChecker interface {
	GetByID(ctx context.Context, id string) (*tenant.Tenant, error)
}

// Service implements the MCP authorization server's domain logic: client
// registry, authorization-code issuance/exchange, and token refresh.
type Service struct {
	clients ClientRepository
	codes   AuthorizationCodeRepository
	tokens  AccessTokenRepository
	audit   audit.Logger
	users   UserExistenceChecker
	orgs    OrganizationExistenceChecker
}

// NewService constructs the OAuth service over its three stores plus the
// user/organization existence checkers ValidateBearer needs (spec §4.5).
func NewService(clients ClientRepository, codes AuthorizationCodeRepository, tokens AccessTokenRepository, auditLogger audit.Logger, users UserExistenceChecker, orgs OrganizationExistenceChecker) *Service {
	return &Service{clients: clients, codes: codes, tokens: tokens, audit: auditLogger, users: users, orgs: orgs}
}

// AuthorizeRequest is the parsed form of a POST /api/oauth/authorize
// consent submission.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	State               string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// TokenRequest is the parsed form of a POST /api/oauth/token submission.
type TokenRequest struct {
	GrantType    string
	Code         string
	CodeVerifier string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// TokenResponse is the wire shape of a successful token response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// CreateClient registers a new OAuth client for an organization. If
// redirectURIs is empty, the default allowlist (spec §6) is used. If
// scopes is empty, DefaultScope is used.
func (s *Service) CreateClient(ctx context.Context, organizationID, name string, redirectURIs, scopes []string) (client *Client, clientSecret string, err error) {
	if len(redirectURIs) == 0 {
		redirectURIs = append([]string(nil), DefaultRedirectURIs...)
	}
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}

	clientSecret = generateToken(PrefixClientSecret)
	client = &Client{
		ID:               uuid.NewString(),
		OrganizationID:   organizationID,
		ClientID:         generateToken(PrefixClientID),
		ClientSecretHash: hashToken(clientSecret),
		Name:             name,
		RedirectURIs:     redirectURIs,
		Scopes:           scopes,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	if err := s.clients.Create(client); err != nil {
		return nil, "", NewError(ErrServerError, "failed to persist client")
	}

	s.audit.Log(ctx, audit.Event{
		Type:     audit.TypeClientCreated,
		TenantID: organizationID,
		Resource: audit.ResourceClient,
		Metadata: map[string]any{"client_id": client.ClientID},
	})

	return client, clientSecret, nil
}

// ListClients returns all non-deleted clients for an organization.
func (s *Service) ListClients(ctx context.Context, organizationID string) ([]*Client, error) {
	return s.clients.ListByOrganization(organizationID)
}

// GetPublicInfo returns the redacted, client-facing view of a client.
func (s *Service) GetPublicInfo(ctx context.Context, clientID string) (*PublicInfo, error) {
	client, err := s.clients.GetByClientID(clientID)
	if err != nil || client.IsDeleted() {
		return nil, NewError(ErrNotFound, "client not found")
	}
	return &PublicInfo{
		ClientID:     client.ClientID,
		Name:         client.Name,
		RedirectURIs: client.RedirectURIs,
		Scopes:       client.Scopes,
	}, nil
}

// DeleteClient tombstones a client owned by organizationID. clientID is
// the public client_id (the only identifier the HTTP layer ever has on
// hand). Outstanding access tokens are left untouched (spec §9 Open
// Question (a) does not apply here, but the same "no cascading
// revocation" posture holds).
func (s *Service) DeleteClient(ctx context.Context, clientID, organizationID string) error {
	if err := s.clients.Delete(clientID, organizationID); err != nil {
		return NewError(ErrNotFound, "client not found")
	}
	s.audit.Log(ctx, audit.Event{
		Type:     audit.TypeClientDeleted,
		TenantID: organizationID,
		Resource: audit.ResourceClient,
		Metadata: map[string]any{"client_id": clientID},
	})
	return nil
}

// RotateClientSecret issues a new client secret. Per spec §9 Open
// Question (a), this never revokes outstanding access tokens — only
// the stored secret hash changes.
func (s *Service) RotateClientSecret(ctx context.Context, clientID, organizationID string) (string, error) {
	client, err := s.clients.GetByClientID(clientID)
	if err != nil || client.IsDeleted() || client.OrganizationID != organizationID {
		return "", NewError(ErrNotFound, "client not found")
	}

	newSecret := generateToken(PrefixClientSecret)
	client.ClientSecretHash = hashToken(newSecret)
	client.UpdatedAt = time.Now()
	if err := s.clients.Update(client); err != nil {
		return "", NewError(ErrServerError, "failed to rotate client secret")
	}

	s.audit.Log(ctx, audit.Event{
		Type:     audit.TypeSecretRotated,
		TenantID: organizationID,
		Resource: audit.ResourceClient,
		Metadata: map[string]any{"client_id": clientID},
	})

	return newSecret, nil
}

// ValidateClient resolves a client_id to a live Client, optionally
// checking the supplied secret if clientSecret is non-empty.
func (s *Service) ValidateClient(clientID, clientSecret string) (*Client, error) {
	client, err := s.clients.GetByClientID(clientID)
	if err != nil || client.IsDeleted() {
		return nil, NewError(ErrInvalidClient, "invalid client")
	}
	if clientSecret != "" && !secureCompare(hashToken(clientSecret), client.ClientSecretHash) {
		return nil, NewError(ErrInvalidClient, "invalid client")
	}
	return client, nil
}

// ValidateRedirectURI checks uri against client's registered allowlist.
func (s *Service) ValidateRedirectURI(client *Client, uri string) bool {
	return client.ValidateRedirectURI(uri)
}

// CreateAuthorizationCode mints a single-use code for an authenticated
// (user, organization) pair after consent.
func (s *Service) CreateAuthorizationCode(ctx context.Context, req *AuthorizeRequest, userID, organizationID string) (*AuthorizationCode, error) {
	scope := req.Scope
	if scope == "" {
		scope = DefaultScope
	}

	code := &AuthorizationCode{
		ID:                  uuid.NewString(),
		Code:                generateToken(""),
		ClientID:            req.ClientID,
		UserID:              userID,
		OrganizationID:      organizationID,
		RedirectURI:         req.RedirectURI,
		Scope:               scope,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		ExpiresAt:           time.Now().Add(authCodeLifetime),
		CreatedAt:           time.Now(),
	}

	if err := s.codes.Create(code); err != nil {
		return nil, NewError(ErrServerError, "failed to persist authorization code")
	}

	return code, nil
}

// ExchangeCode implements spec §4.3's ordered exchange validation:
// client -> live code -> not expired (else tombstone + fail) -> PKCE ->
// redirect_uri match -> tombstone + mint tokens. Every failure path
// returns the single generic invalid_grant error; no branch leaks which
// check failed.
func (s *Service) ExchangeCode(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	client, err := s.ValidateClient(req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, NewError(ErrInvalidGrant, "invalid client")
	}

	code, err := s.codes.ConsumeLive(req.Code)
	if err != nil {
		return nil, NewError(ErrInvalidGrant, "invalid or expired authorization code")
	}

	if code.IsExpired() {
		// ConsumeLive tombstones on exchange regardless of expiry, so the
		// side effect is recorded even on this failure path; expiry
		// itself is only checked here.
		return nil, NewError(ErrInvalidGrant, "invalid or expired authorization code")
	}

	if code.ClientID != client.ClientID {
		return nil, NewError(ErrInvalidGrant, "invalid or expired authorization code")
	}

	if !verifyPKCES256(code.CodeChallenge, req.CodeVerifier) {
		return nil, NewError(ErrInvalidGrant, "invalid or expired authorization code")
	}

	if code.RedirectURI != req.RedirectURI {
		return nil, NewError(ErrInvalidGrant, "invalid or expired authorization code")
	}

	return s.mintTokens(ctx, client, code.UserID, code.OrganizationID, code.Scope)
}

// RefreshAccessToken implements spec §4.4's refresh grant: validate
// client -> find live record by refresh hash -> check refresh expiry ->
// tombstone -> mint new access+refresh tied to the same identity/scope.
func (s *Service) RefreshAccessToken(ctx context.Context, req *TokenRequest) (*TokenResponse, error) {
	client, err := s.ValidateClient(req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, NewError(ErrInvalidGrant, "invalid refresh token")
	}

	record, err := s.tokens.ConsumeLiveByRefreshHash(hashToken(req.RefreshToken), client.ClientID)
	if err != nil {
		return nil, NewError(ErrInvalidGrant, "invalid refresh token")
	}

	if record.RefreshIsExpired() {
		return nil, NewError(ErrInvalidGrant, "invalid refresh token")
	}

	return s.mintTokens(ctx, client, record.UserID, record.OrganizationID, record.Scope)
}

// mintTokens issues a fresh access+refresh pair for (client, user, org,
// scope) and persists the merged record.
func (s *Service) mintTokens(ctx context.Context, client *Client, userID, organizationID, scope string) (*TokenResponse, error) {
	rawAccess := generateToken(PrefixAccessToken)
	rawRefresh := generateToken(PrefixRefreshToken)
	refreshHash := hashToken(rawRefresh)
	refreshExpiresAt := time.Now().Add(refreshTokenLifetime)

	record := &AccessTokenRecord{
		ID:               uuid.NewString(),
		TokenHash:        hashToken(rawAccess),
		ClientID:         client.ClientID,
		UserID:           userID,
		OrganizationID:   organizationID,
		Scope:            scope,
		ExpiresAt:        time.Now().Add(accessTokenLifetime),
		RefreshTokenHash: &refreshHash,
		RefreshExpiresAt: &refreshExpiresAt,
		CreatedAt:        time.Now(),
	}

	if err := s.tokens.Create(record); err != nil {
		return nil, NewError(ErrServerError, "failed to issue token")
	}

	s.audit.Log(ctx, audit.Event{
		Type:     audit.TypeTokenIssued,
		TenantID: organizationID,
		ActorID:  userID,
		Resource: audit.ResourceToken,
		Metadata: map[string]any{"client_id": client.ClientID, "scope": scope},
	})

	return &TokenResponse{
		AccessToken:  rawAccess,
		TokenType:    "Bearer",
		ExpiresIn:    int(accessTokenLifetime.Seconds()),
		RefreshToken: rawRefresh,
		Scope:        scope,
	}, nil
}

// BearerPrincipal is the (user, organization) pair resolved from a
// validated bow_oauth_ bearer token.
type BearerPrincipal struct {
	UserID         string
	OrganizationID string
	ClientID       string
	Scope          string
}

// ValidateBearer implements spec §4.5: reject unless the bow_oauth_
// prefix is present, look up by hash, require the record be live, then
// load the referenced user and organization and require both still
// exist — a token surviving the deletion of its user or organization
// must not authenticate.
func (s *Service) ValidateBearer(ctx context.Context, token string) (*BearerPrincipal, error) {
	if len(token) <= len(PrefixAccessToken) || token[:len(PrefixAccessToken)] != PrefixAccessToken {
		return nil, NewError(ErrUnauthenticated, "not authenticated")
	}

	record, err := s.tokens.GetLiveByTokenHash(hashToken(token))
	if err != nil || !record.IsLive() {
		return nil, NewError(ErrUnauthenticated, "not authenticated")
	}

	if _, err := s.users.GetByID(record.UserID); err != nil {
		return nil, NewError(ErrUnauthenticated, "not authenticated")
	}
	if _, err := s.orgs.GetByID(ctx, record.OrganizationID); err != nil {
		return nil, NewError(ErrUnauthenticated, "not authenticated")
	}

	return &BearerPrincipal{
		UserID:         record.UserID,
		OrganizationID: record.OrganizationID,
		ClientID:       record.ClientID,
		Scope:          record.Scope,
	}, nil
}

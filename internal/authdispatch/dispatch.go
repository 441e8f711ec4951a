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

// Package authdispatch implements the MCP gateway's precedence-ordered
// authentication (spec §4.9): session bearer, then API key, then OAuth
// access token, each tried in order with the first success winning.
package authdispatch

import (
	"context"
	"errors"
	"strings"
)

// ErrUnauthenticated is returned when no scheme resolves a principal.
var ErrUnauthenticated = errors.New("not authenticated")

const (
	apiKeyPrefix  = "bow_"
	oauthBearerPrefix = "bow_oauth_"
)

// Principal is the (user, tenant) pair every successful scheme resolves
// to — the Go port's stand-in for the spec's (user, organization) pair.
type Principal struct {
	UserID   string
	TenantID string
}

// SessionResolver resolves a first-party browser session token to the
// user who owns it and their active tenant. Opaque to this package — the
// control-plane session-cookie login system lives in internal/session.
type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionToken string) (*Principal, error)
}

// APIKeyResolver resolves a bow_-prefixed (non-OAuth) API key, fulfilling
// spec §6's ApiKeyService collaborator.
type APIKeyResolver interface {
	ResolveAPIKey(ctx context.Context, apiKey string) (*Principal, error)
}

// BearerResolver resolves a bow_oauth_-prefixed OAuth access token
// (internal/oauth2.Service.ValidateBearer).
type BearerResolver interface {
	ResolveBearer(ctx context.Context, token string) (*Principal, error)
}

// Request is the transport-neutral view of the credentials an inbound MCP
// call may carry. The HTTP layer extracts these from the cookie jar,
// X-API-Key header, and Authorization header before calling Authenticate.
type Request struct {
	SessionToken        string
	APIKeyHeader        string
	AuthorizationHeader string
}

// Dispatcher tries each authentication scheme in spec §4.9's precedence
// order and returns the first principal resolved.
type Dispatcher struct {
	sessions SessionResolver
	apiKeys  APIKeyResolver
	bearer   BearerResolver
}

// New constructs a Dispatcher over its three credential resolvers.
func New(sessions SessionResolver, apiKeys APIKeyResolver, bearer BearerResolver) *Dispatcher {
	return &Dispatcher{sessions: sessions, apiKeys: apiKeys, bearer: bearer}
}

// Authenticate resolves req to a Principal or ErrUnauthenticated.
func (d *Dispatcher) Authenticate(ctx context.Context, req Request) (*Principal, error) {
	// 1. Session bearer (first-party human session).
	if req.SessionToken != "" {
		if p, err := d.sessions.ResolveSession(ctx, req.SessionToken); err == nil {
			return p, nil
		}
	}

	// 2. API key via dedicated header.
	if isAPIKey(req.APIKeyHeader) {
		if p, err := d.apiKeys.ResolveAPIKey(ctx, req.APIKeyHeader); err == nil {
			return p, nil
		}
	}

	// 3. Authorization: Bearer <token>, routed by prefix.
	if token, ok := strings.CutPrefix(req.AuthorizationHeader, "Bearer "); ok {
		if strings.HasPrefix(token, oauthBearerPrefix) {
			if p, err := d.bearer.ResolveBearer(ctx, token); err == nil {
				return p, nil
			}
		} else if isAPIKey(token) {
			if p, err := d.apiKeys.ResolveAPIKey(ctx, token); err == nil {
				return p, nil
			}
		}
	}

	return nil, ErrUnauthenticated
}

// isAPIKey reports whether token carries the tenant API-key prefix and is
// not an OAuth access token.
func isAPIKey(token string) bool {
	return strings.HasPrefix(token, apiKeyPrefix) && !strings.HasPrefix(token, oauthBearerPrefix)
}

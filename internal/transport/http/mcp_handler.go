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

package http

import (
	"context"
	"io"
	"net/http"

	"github.com/bagofwords/mcpgateway/internal/authdispatch"
	"github.com/bagofwords/mcpgateway/internal/mcp"
	"github.com/bagofwords/mcpgateway/internal/oauth2"
	"github.com/bagofwords/mcpgateway/internal/session"
	"github.com/bagofwords/mcpgateway/internal/tenant"
)

// SessionResolverAdapter bridges the authdispatch.SessionResolver seam to
// the session service, translating a live session into an auth principal.
// It is constructed independently of Handler so the composition root can
// wire a Dispatcher before the Handler itself exists.
type SessionResolverAdapter struct{ Sessions *session.Service }

func (a SessionResolverAdapter) ResolveSession(ctx context.Context, sessionToken string) (*authdispatch.Principal, error) {
	sess, err := a.Sessions.Get(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	return &authdispatch.Principal{UserID: sess.UserID, TenantID: sess.TenantID}, nil
}

// APIKeyResolverAdapter bridges the authdispatch.APIKeyResolver seam to
// the tenant service's bow_-prefixed API key lookups (spec §6
// ApiKeyService).
type APIKeyResolverAdapter struct{ Tenants *tenant.Service }

func (a APIKeyResolverAdapter) ResolveAPIKey(ctx context.Context, apiKey string) (*authdispatch.Principal, error) {
	userID, err := a.Tenants.GetUserByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	tenantID, err := a.Tenants.GetTenantByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &authdispatch.Principal{UserID: userID, TenantID: tenantID}, nil
}

// BearerResolverAdapter bridges the authdispatch.BearerResolver seam to
// the OAuth2 service's bow_oauth_ access token validation.
type BearerResolverAdapter struct{ OAuth2 *oauth2.Service }

func (a BearerResolverAdapter) ResolveBearer(ctx context.Context, token string) (*authdispatch.Principal, error) {
	principal, err := a.OAuth2.ValidateBearer(ctx, token)
	if err != nil {
		return nil, err
	}
	return &authdispatch.Principal{UserID: principal.UserID, TenantID: principal.OrganizationID}, nil
}

// mcpAuthRequest extracts the three credential channels the dispatcher
// considers, in precedence order (spec §4.9): session cookie, X-API-Key
// header, Authorization header.
func (h *Handler) mcpAuthRequest(r *http.Request) authdispatch.Request {
	return authdispatch.Request{
		SessionToken:        h.getSessionFromCookie(r),
		APIKeyHeader:        r.Header.Get("X-API-Key"),
		AuthorizationHeader: r.Header.Get("Authorization"),
	}
}

// unauthenticatedMCP writes the 401 challenge response the spec requires
// on total authentication failure, pointing the client at protected
// resource discovery (RFC 9728).
func (h *Handler) unauthenticatedMCP(w http.ResponseWriter, r *http.Request) {
	resourceMetadataURL := h.baseURL(r) + "/.well-known/oauth-protected-resource"
	w.Header().Set("WWW-Authenticate", `Bearer resource_metadata="`+resourceMetadataURL+`"`)
	respondError(w, http.StatusUnauthorized, "not authenticated")
}

// authenticateMCP runs the precedence-ordered dispatcher and, on success,
// checks the organization's mcp_enabled feature flag (spec §4.9). It
// writes the appropriate error response itself and reports ok=false when
// the caller should stop processing.
func (h *Handler) authenticateMCP(w http.ResponseWriter, r *http.Request) (userID, tenantID string, ok bool) {
	principal, err := h.authDispatcher.Authenticate(r.Context(), h.mcpAuthRequest(r))
	if err != nil {
		h.unauthenticatedMCP(w, r)
		return "", "", false
	}

	enabled, err := h.tenantService.IsMCPEnabled(r.Context(), principal.TenantID)
	if err != nil || !enabled {
		respondError(w, http.StatusForbidden, "MCP is not enabled for this organization")
		return "", "", false
	}

	return principal.UserID, principal.TenantID, true
}

// MCPServerInfo handles GET /api/mcp: a static handshake payload for
// clients that probe the endpoint before issuing JSON-RPC requests.
//
// @Summary MCP server info
// @Tags MCP
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/mcp [get]
func (h *Handler) MCPServerInfo(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.authenticateMCP(w, r); !ok {
		return
	}
	w.Header().Set("MCP-Protocol-Version", mcp.ProtocolVersion)
	respondJSON(w, http.StatusOK, h.mcpGateway.ServerInfo())
}

// MCPInvoke handles POST /api/mcp: the JSON-RPC 2.0 entry point for
// initialize, tools/list, and tools/call (spec §4.10).
//
// @Summary MCP JSON-RPC invoke
// @Tags MCP
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/mcp [post]
func (h *Handler) MCPInvoke(w http.ResponseWriter, r *http.Request) {
	userID, tenantID, ok := h.authenticateMCP(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		body = nil
	}

	resp := h.mcpGateway.HandleRaw(r.Context(), body, userID, tenantID)

	w.Header().Set("MCP-Protocol-Version", mcp.ProtocolVersion)
	respondJSON(w, http.StatusOK, resp)
}

// MCPListToolsDebug handles GET /api/mcp/tools: a plain REST listing of
// registered tools, for debugging clients that don't speak JSON-RPC.
//
// @Summary List MCP tools (debug)
// @Tags MCP
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/mcp/tools [get]
func (h *Handler) MCPListToolsDebug(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.authenticateMCP(w, r); !ok {
		return
	}
	w.Header().Set("MCP-Protocol-Version", mcp.ProtocolVersion)
	respondJSON(w, http.StatusOK, map[string]any{"tools": h.mcpGateway.ListTools()})
}

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
	"net/http"
	"strings"

	"github.com/bagofwords/mcpgateway/internal/config"
)

// baseURL derives "<base>" per spec §4.6/§9: the configured public URL,
// unless it is empty or the development placeholder, in which case it
// falls back to the incoming request's scheme + host.
func (h *Handler) baseURL(r *http.Request) string {
	if h.publicBaseURL != "" && h.publicBaseURL != config.PlaceholderPublicBaseURL {
		return strings.TrimRight(h.publicBaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// ProtectedResourceMetadata implements RFC 9728.
//
// @Summary OAuth protected resource metadata
// @Tags OAuth2
// @Produce json
// @Success 200 {object} map[string]any
// @Router /.well-known/oauth-protected-resource [get]
func (h *Handler) ProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	base := h.baseURL(r)
	respondJSON(w, http.StatusOK, map[string]any{
		"resource":              base + "/api/mcp",
		"authorization_servers": []string{base},
		"scopes_supported":      []string{"mcp", "claudeai"},
	})
}

// AuthorizationServerMetadata implements RFC 8414.
//
// @Summary OAuth authorization server metadata
// @Tags OAuth2
// @Produce json
// @Success 200 {object} map[string]any
// @Router /.well-known/oauth-authorization-server [get]
func (h *Handler) AuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	base := h.baseURL(r)
	respondJSON(w, http.StatusOK, map[string]any{
		"issuer":                                 base,
		"authorization_endpoint":                 base + "/authorize",
		"token_endpoint":                         base + "/api/oauth/token",
		"response_types_supported":               []string{"code"},
		"grant_types_supported":                  []string{"authorization_code", "refresh_token"},
		"code_challenge_methods_supported":       []string{"S256"},
		"token_endpoint_auth_methods_supported":  []string{"client_secret_post", "none"},
		"scopes_supported":                       []string{"mcp", "claudeai"},
	})
}

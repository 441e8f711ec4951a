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
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/bagofwords/mcpgateway/internal/authz"
)

// RegisterClientRequest is the body of POST .../oauth2/clients (spec §4.2).
type RegisterClientRequest struct {
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}

// RegisterClientResponse is the client-facing, secret-free view of a
// client, except immediately after creation where ClientSecret is the
// one and only time the plaintext secret is exposed.
type RegisterClientResponse struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Name         string   `json:"name"`
	RedirectURIs []string `json:"redirect_uris"`
	Scopes       []string `json:"scopes"`
}

// RegisterClient registers a new MCP OAuth client for the organization.
// Requires tenant-admin client-management permission.
//
// @Summary Register OAuth client
// @Description Register a new MCP OAuth client for the tenant
// @Tags OAuth2
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param tenantID path string true "Tenant ID"
// @Param request body RegisterClientRequest true "Client data"
// @Success 201 {object} RegisterClientResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /tenants/{tenantID}/oauth2/clients [post]
func (h *Handler) RegisterClient(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())

	userID := GetUserID(r.Context())
	allowed, err := h.authzService.HasPermission(r.Context(), userID, authz.ScopeTenant, &tenantID, authz.PermTenantManageClients)
	if err != nil || !allowed {
		respondError(w, http.StatusForbidden, "client management access required")
		return
	}

	var req RegisterClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	client, secret, err := h.oauth2Service.CreateClient(r.Context(), tenantID, req.ClientName, req.RedirectURIs, req.Scopes)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to register client")
		return
	}

	respondJSON(w, http.StatusCreated, RegisterClientResponse{
		ClientID:     client.ClientID,
		ClientSecret: secret,
		Name:         client.Name,
		RedirectURIs: client.RedirectURIs,
		Scopes:       client.Scopes,
	})
}

// ListClients lists the organization's registered OAuth clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())

	userID := GetUserID(r.Context())
	allowed, err := h.authzService.HasPermission(r.Context(), userID, authz.ScopeTenant, &tenantID, authz.PermTenantManageClients)
	if err != nil || !allowed {
		respondError(w, http.StatusForbidden, "client management access required")
		return
	}

	clients, err := h.oauth2Service.ListClients(r.Context(), tenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list clients")
		return
	}

	out := make([]RegisterClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, RegisterClientResponse{
			ClientID:     c.ClientID,
			Name:         c.Name,
			RedirectURIs: c.RedirectURIs,
			Scopes:       c.Scopes,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"clients": out,
		"total":   len(out),
	})
}

// GetClient returns the public (secret-free) view of a client.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	info, err := h.oauth2Service.GetPublicInfo(r.Context(), clientID)
	if err != nil {
		respondError(w, http.StatusNotFound, "client not found")
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// DeleteClient tombstones an OAuth client. Outstanding tokens survive
// (spec §9, Open Question (a)) — this only stops future authorize/token
// calls for it.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())
	clientID := chi.URLParam(r, "clientID")

	userID := GetUserID(r.Context())
	allowed, err := h.authzService.HasPermission(r.Context(), userID, authz.ScopeTenant, &tenantID, authz.PermTenantManageClients)
	if err != nil || !allowed {
		respondError(w, http.StatusForbidden, "client management access required")
		return
	}

	if err := h.oauth2Service.DeleteClient(r.Context(), clientID, tenantID); err != nil {
		respondError(w, http.StatusNotFound, "client not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RegenerateClientSecret rotates a client's secret without affecting its
// already-issued tokens (spec §9, Open Question (a)).
func (h *Handler) RegenerateClientSecret(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())
	clientID := chi.URLParam(r, "clientID")

	userID := GetUserID(r.Context())
	allowed, err := h.authzService.HasPermission(r.Context(), userID, authz.ScopeTenant, &tenantID, authz.PermTenantManageClients)
	if err != nil || !allowed {
		respondError(w, http.StatusForbidden, "client management access required")
		return
	}

	newSecret, err := h.oauth2Service.RotateClientSecret(r.Context(), clientID, tenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "client not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"client_secret": newSecret,
	})
}

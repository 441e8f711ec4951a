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
	"net/url"
	"strings"

	"github.com/bagofwords/mcpgateway/internal/oauth2"
)

// AuthorizeRedirect is the human-facing GET /authorize endpoint (spec
// §4.7). It never touches the database; it only forwards the request's
// query parameters to the consent UI, which authenticates the user and
// POSTs to /api/oauth/authorize on approval.
//
// @Summary OAuth 2.1 authorize redirect
// @Description Redirects to the consent UI, preserving the authorize request
// @Tags OAuth2
// @Produce html
// @Param client_id query string true "Client ID"
// @Param redirect_uri query string true "Redirect URI"
// @Param response_type query string true "Must be 'code'"
// @Param scope query string false "Scope"
// @Param state query string false "Opaque client state"
// @Param code_challenge query string false "PKCE challenge"
// @Param code_challenge_method query string false "PKCE method (S256)"
// @Success 302 {string} string "Redirect to consent UI"
// @Router /authorize [get]
func (h *Handler) AuthorizeRedirect(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	responseType := query.Get("response_type")
	if responseType == "" {
		responseType = "code"
	}
	if responseType != "code" {
		respondJSON(w, http.StatusBadRequest, oauth2.NewError(oauth2.ErrUnsupportedResponseType, "response_type must be code"))
		return
	}

	scope := query.Get("scope")
	if scope == "" {
		scope = oauth2.DefaultScope
	}

	params := url.Values{
		"client_id":     {query.Get("client_id")},
		"redirect_uri":  {query.Get("redirect_uri")},
		"response_type": {responseType},
		"scope":         {scope},
	}
	if state := query.Get("state"); state != "" {
		params.Set("state", state)
	}
	if challenge := query.Get("code_challenge"); challenge != "" {
		params.Set("code_challenge", challenge)
	}
	if method := query.Get("code_challenge_method"); method != "" {
		params.Set("code_challenge_method", method)
	}

	consentURL := h.baseURL(r) + "/authorize?" + params.Encode()
	http.Redirect(w, r, consentURL, http.StatusFound)
}

// authorizeApproveRequest is the JSON body the consent UI POSTs after the
// user approves the request (spec §4.7).
type authorizeApproveRequest struct {
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	State               string `json:"state"`
	Scope               string `json:"scope"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
}

// AuthorizeApprove is the authenticated POST /api/oauth/authorize endpoint
// called by the consent UI once the user approves. It mints a single-use
// authorization code and returns the redirect URL the UI should navigate
// the browser to.
//
// @Summary Approve an OAuth 2.1 authorization request
// @Tags OAuth2
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body authorizeApproveRequest true "Approved authorize request"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /api/oauth/authorize [post]
func (h *Handler) AuthorizeApprove(w http.ResponseWriter, r *http.Request) {
	var body authorizeApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.ClientID == "" || body.RedirectURI == "" || body.CodeChallenge == "" {
		respondError(w, http.StatusBadRequest, "missing required parameters")
		return
	}

	method := body.CodeChallengeMethod
	if method == "" {
		method = "S256"
	}
	if method != "S256" {
		respondError(w, http.StatusBadRequest, "only S256 code_challenge_method is supported")
		return
	}

	client, err := h.oauth2Service.ValidateClient(body.ClientID, "")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid client_id")
		return
	}

	if !h.oauth2Service.ValidateRedirectURI(client, body.RedirectURI) {
		respondError(w, http.StatusBadRequest, "invalid redirect_uri")
		return
	}

	userID := GetUserID(r.Context())
	tenantID := GetTenantID(r.Context())

	code, err := h.oauth2Service.CreateAuthorizationCode(r.Context(), &oauth2.AuthorizeRequest{
		ClientID:            body.ClientID,
		RedirectURI:         body.RedirectURI,
		State:               body.State,
		Scope:               body.Scope,
		CodeChallenge:       body.CodeChallenge,
		CodeChallengeMethod: method,
	}, userID, tenantID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create authorization code")
		return
	}

	callback := body.RedirectURI
	separator := "?"
	if strings.Contains(callback, "?") {
		separator = "&"
	}
	callback += separator + "code=" + url.QueryEscape(code.Code)
	if body.State != "" {
		callback += "&state=" + url.QueryEscape(body.State)
	}

	respondJSON(w, http.StatusOK, map[string]string{"redirect_url": callback})
}

// Token is the POST /api/oauth/token endpoint (spec §4.8). It dispatches
// on grant_type to the authorization_code exchange or the refresh_token
// grant; every other grant_type is rejected as unsupported.
//
// @Summary OAuth 2.1 token endpoint
// @Tags OAuth2
// @Accept x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "authorization_code or refresh_token"
// @Param code formData string false "Authorization code"
// @Param redirect_uri formData string false "Redirect URI"
// @Param client_id formData string true "Client ID"
// @Param client_secret formData string false "Client secret"
// @Param code_verifier formData string false "PKCE verifier"
// @Param refresh_token formData string false "Refresh token"
// @Success 200 {object} oauth2.TokenResponse
// @Failure 400 {object} oauth2.Error
// @Router /api/oauth/token [post]
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.respondOAuthError(w, oauth2.NewError(oauth2.ErrInvalidRequest, "invalid request"))
		return
	}

	req := &oauth2.TokenRequest{
		GrantType:    r.Form.Get("grant_type"),
		Code:         r.Form.Get("code"),
		CodeVerifier: r.Form.Get("code_verifier"),
		RedirectURI:  r.Form.Get("redirect_uri"),
		ClientID:     r.Form.Get("client_id"),
		ClientSecret: r.Form.Get("client_secret"),
		RefreshToken: r.Form.Get("refresh_token"),
	}

	switch req.GrantType {
	case "authorization_code":
		if req.Code == "" || req.CodeVerifier == "" || req.RedirectURI == "" {
			h.respondOAuthError(w, oauth2.NewError(oauth2.ErrInvalidRequest, "missing code, code_verifier, or redirect_uri"))
			return
		}

		resp, err := h.oauth2Service.ExchangeCode(r.Context(), req)
		if err != nil {
			h.respondOAuthError(w, err)
			return
		}
		h.respondToken(w, resp)

	case "refresh_token":
		if req.RefreshToken == "" {
			h.respondOAuthError(w, oauth2.NewError(oauth2.ErrInvalidRequest, "missing refresh_token"))
			return
		}

		resp, err := h.oauth2Service.RefreshAccessToken(r.Context(), req)
		if err != nil {
			h.respondOAuthError(w, err)
			return
		}
		h.respondToken(w, resp)

	default:
		h.respondOAuthError(w, oauth2.NewError(oauth2.ErrUnsupportedGrantType, "unsupported grant_type"))
	}
}

func (h *Handler) respondToken(w http.ResponseWriter, resp *oauth2.TokenResponse) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	respondJSON(w, http.StatusOK, resp)
}

// respondOAuthError serializes a protocol error into an HTTP response
// per spec §7: invalid_client maps to 401, server_error to 500, every
// other oauth2.Error code to 400.
func (h *Handler) respondOAuthError(w http.ResponseWriter, err error) {
	oauthErr, ok := err.(*oauth2.Error)
	if !ok {
		respondJSON(w, http.StatusInternalServerError, oauth2.NewError(oauth2.ErrServerError, "internal server error"))
		return
	}

	status := http.StatusBadRequest
	switch oauthErr.Code {
	case oauth2.ErrInvalidClient, oauth2.ErrUnauthenticated:
		status = http.StatusUnauthorized
	case oauth2.ErrServerError:
		status = http.StatusInternalServerError
	case oauth2.ErrNotFound:
		status = http.StatusNotFound
	}
	respondJSON(w, status, oauthErr)
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/bagofwords/mcpgateway/internal/audit"
	"github.com/bagofwords/mcpgateway/internal/identity"
	"github.com/bagofwords/mcpgateway/internal/oauth2"
	"github.com/bagofwords/mcpgateway/internal/oidc"
	"github.com/bagofwords/mcpgateway/internal/session"
	"github.com/bagofwords/mcpgateway/internal/tenant"
)

const (
	protocolTestVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	protocolTestChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func TestProtocol_Discovery(t *testing.T) {
	// Setup OIDC service
	issuer := "https://auth.opentrusty.org"
	oidcService, _ := oidc.NewService(issuer)

	h := &Handler{
		oidcService: oidcService,
		auditLogger: audit.NewSlogLogger(),
	}

	// Create request
	req := httptest.NewRequest("GET", "/.well-known/openid-configuration", nil)
	w := httptest.NewRecorder()

	// Execute
	h.Discovery(w, req)

	// Verify
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	var meta oidc.DiscoveryMetadata
	if err := json.Unmarshal(w.Body.Bytes(), &meta); err != nil {
		t.Fatalf("failed to unmarshal discovery metadata: %v", err)
	}

	if meta.Issuer != issuer {
		t.Errorf("expected issuer %s, got %s", issuer, meta.Issuer)
	}
}

func TestProtocol_JWKS(t *testing.T) {
	oidcService, _ := oidc.NewService("http://localhost")
	h := &Handler{
		oidcService: oidcService,
	}

	req := httptest.NewRequest("GET", "/jwks.json", nil)
	w := httptest.NewRecorder()

	h.JWKS(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var jwks oidc.JWKS
	if err := json.Unmarshal(w.Body.Bytes(), &jwks); err != nil {
		t.Fatalf("failed to unmarshal JWKS: %v", err)
	}

	if len(jwks.Keys) == 0 {
		t.Error("expected at least one key in JWKS")
	}
}

func TestProtocol_Token_BadRequest(t *testing.T) {
	h := &Handler{
		auditLogger: audit.NewSlogLogger(),
	}

	// Request without any parameters: unsupported_grant_type, no oauth2Service touched.
	req := httptest.NewRequest("POST", "/api/oauth/token", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	h.Token(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// Mocks for Protocol Testing, against the merged access+refresh token
// design (spec §3/§4.4).

type stubClientRepo struct {
	clients map[string]*oauth2.Client
}

func (m *stubClientRepo) Create(c *oauth2.Client) error { m.clients[c.ClientID] = c; return nil }
func (m *stubClientRepo) GetByClientID(clientID string) (*oauth2.Client, error) {
	if c, ok := m.clients[clientID]; ok {
		return c, nil
	}
	return nil, oauth2.ErrClientNotFound
}
func (m *stubClientRepo) ListByOrganization(organizationID string) ([]*oauth2.Client, error) {
	var out []*oauth2.Client
	for _, c := range m.clients {
		if c.OrganizationID == organizationID {
			out = append(out, c)
		}
	}
	return out, nil
}
func (m *stubClientRepo) Update(c *oauth2.Client) error { m.clients[c.ClientID] = c; return nil }
func (m *stubClientRepo) Delete(clientID, organizationID string) error {
	for _, c := range m.clients {
		if c.ClientID == clientID && c.OrganizationID == organizationID {
			now := time.Now()
			c.DeletedAt = &now
			return nil
		}
	}
	return oauth2.ErrClientNotFound
}

type stubCodeRepo struct {
	codes map[string]*oauth2.AuthorizationCode
}

func (m *stubCodeRepo) Create(c *oauth2.AuthorizationCode) error { m.codes[c.Code] = c; return nil }
func (m *stubCodeRepo) ConsumeLive(code string) (*oauth2.AuthorizationCode, error) {
	c, ok := m.codes[code]
	if !ok || c.DeletedAt != nil {
		return nil, oauth2.ErrCodeNotFound
	}
	now := time.Now()
	c.DeletedAt = &now
	return c, nil
}

type stubTokenRepo struct {
	byHash        map[string]*oauth2.AccessTokenRecord
	byRefreshHash map[string]*oauth2.AccessTokenRecord
}

func newStubTokenRepo() *stubTokenRepo {
	return &stubTokenRepo{
		byHash:        map[string]*oauth2.AccessTokenRecord{},
		byRefreshHash: map[string]*oauth2.AccessTokenRecord{},
	}
}
func (m *stubTokenRepo) Create(t *oauth2.AccessTokenRecord) error {
	m.byHash[t.TokenHash] = t
	if t.RefreshTokenHash != nil {
		m.byRefreshHash[*t.RefreshTokenHash] = t
	}
	return nil
}
func (m *stubTokenRepo) GetLiveByTokenHash(tokenHash string) (*oauth2.AccessTokenRecord, error) {
	t, ok := m.byHash[tokenHash]
	if !ok {
		return nil, oauth2.ErrTokenNotFound
	}
	return t, nil
}
func (m *stubTokenRepo) ConsumeLiveByRefreshHash(refreshTokenHash, clientID string) (*oauth2.AccessTokenRecord, error) {
	t, ok := m.byRefreshHash[refreshTokenHash]
	if !ok || !t.IsLive() || t.ClientID != clientID {
		return nil, oauth2.ErrTokenNotFound
	}
	now := time.Now()
	t.DeletedAt = &now
	return t, nil
}

// stubUserExistence and stubOrgExistence back oauth2.ValidateBearer's
// existence checks (spec §4.5) in tests that never exercise it.

type stubUserExistence struct {
	users map[string]*identity.User
}

func (m *stubUserExistence) GetByID(id string) (*identity.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, identity.ErrUserNotFound
}

type stubOrgExistence struct {
	orgs map[string]*tenant.Tenant
}

func (m *stubOrgExistence) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	if o, ok := m.orgs[id]; ok {
		return o, nil
	}
	return nil, tenant.ErrTenantNotFound
}

type stubSessionRepo struct {
	sessions map[string]*session.Session
}

func (m *stubSessionRepo) Create(s *session.Session) error { m.sessions[s.ID] = s; return nil }
func (m *stubSessionRepo) Get(id string) (*session.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, session.ErrSessionNotFound
}
func (m *stubSessionRepo) Update(s *session.Session) error { return nil }
func (m *stubSessionRepo) Delete(id string) error          { delete(m.sessions, id); return nil }
func (m *stubSessionRepo) DeleteExpired() error            { return nil }
func (m *stubSessionRepo) DeleteByUserID(uid string) error { return nil }

// TestProtocol_HappyPath_Flow exercises the back-channel half of the
// Authorization Code + PKCE flow: a pre-approved code exchanged at
// POST /api/oauth/token yields a bow_oauth_ access token and bow_rt_
// refresh token (spec §4.3/§4.4).
func TestProtocol_HappyPath_Flow(t *testing.T) {
	clientRepo := &stubClientRepo{clients: map[string]*oauth2.Client{}}
	codeRepo := &stubCodeRepo{codes: map[string]*oauth2.AuthorizationCode{}}
	tokenRepo := newStubTokenRepo()
	userRepo := &stubUserExistence{users: map[string]*identity.User{"user-1": {ID: "user-1"}}}
	orgRepo := &stubOrgExistence{orgs: map[string]*tenant.Tenant{"org-1": {ID: "org-1"}}}
	oauth2Svc := oauth2.NewService(clientRepo, codeRepo, tokenRepo, audit.NewSlogLogger(), userRepo, orgRepo)

	ctx := context.Background()

	client, _, err := oauth2Svc.CreateClient(ctx, "org-1", "Test Client", []string{"https://app.com/cb"}, nil)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	code, err := oauth2Svc.CreateAuthorizationCode(ctx, &oauth2.AuthorizeRequest{
		ClientID:            client.ClientID,
		RedirectURI:         "https://app.com/cb",
		Scope:               "mcp",
		State:               "state-1",
		CodeChallenge:       protocolTestChallenge,
		CodeChallengeMethod: "S256",
	}, "user-1", "org-1")
	if err != nil {
		t.Fatalf("failed to create code: %v", err)
	}

	h := &Handler{
		oauth2Service: oauth2Svc,
		auditLogger:   audit.NewSlogLogger(),
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", client.ClientID)
	form.Set("code", code.Code)
	form.Set("redirect_uri", "https://app.com/cb")
	form.Set("code_verifier", protocolTestVerifier)

	req := httptest.NewRequest("POST", "/api/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	h.Token(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d body: %s", w.Code, w.Body.String())
	}

	var resp oauth2.TokenResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse json: %v", err)
	}

	if !strings.HasPrefix(resp.AccessToken, oauth2.PrefixAccessToken) {
		t.Errorf("expected access_token prefix %s, got %s", oauth2.PrefixAccessToken, resp.AccessToken)
	}
	if !strings.HasPrefix(resp.RefreshToken, oauth2.PrefixRefreshToken) {
		t.Errorf("expected refresh_token prefix %s, got %s", oauth2.PrefixRefreshToken, resp.RefreshToken)
	}
	if resp.ExpiresIn != 3600 {
		t.Errorf("expected expires_in 3600, got %d", resp.ExpiresIn)
	}

	// Re-exchanging the same code must fail: single-use enforcement.
	req2 := httptest.NewRequest("POST", "/api/oauth/token", strings.NewReader(form.Encode()))
	req2.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w2 := httptest.NewRecorder()
	h.Token(w2, req2)
	if w2.Code != http.StatusBadRequest {
		t.Errorf("expected second exchange to fail with 400, got %d", w2.Code)
	}
}

func TestProtocol_CrossTenant_Negative(t *testing.T) {
	// Setup Session Service
	sessRepo := &stubSessionRepo{sessions: make(map[string]*session.Session)}
	sessSvc := session.NewService(sessRepo, 24*time.Hour, 1*time.Hour)

	// Create Session for Tenant A
	ctx := context.Background()
	sess, _ := sessSvc.Create(ctx, "tenant-A", "user-A", "127.0.0.1", "test-agent")

	h := NewHandler(nil, sessSvc, nil, nil, nil, nil, audit.NewSlogLogger(), SessionConfig{CookieName: "session_id"}, "", nil, nil)

	// Create Router with Middleware
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(TenantMiddleware) // Parses X-Tenant-ID
		r.Use(h.AuthMiddleware) // Checks Session vs Tenant
		r.Get("/protected", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// Request with a spoofed X-Tenant-ID header on an authenticated route:
	// AuthMiddleware rejects this outright, regardless of the session's
	// own tenant (tenant context must come from the session alone).
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("X-Tenant-ID", "tenant-B")
	req.AddCookie(&http.Cookie{Name: "session_id", Value: sess.ID})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 Bad Request for spoofed tenant header, got %d", w.Code)
	}
}

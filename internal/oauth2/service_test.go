package oauth2

import (
	"context"
	"testing"
	"time"

	"github.com/bagofwords/mcpgateway/internal/audit"
)

const (
	testVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

type MockClientRepo struct {
	byClientID map[string]*Client
}

func newMockClientRepo() *MockClientRepo {
	return &MockClientRepo{byClientID: map[string]*Client{}}
}

func (m *MockClientRepo) Create(c *Client) error {
	m.byClientID[c.ClientID] = c
	return nil
}
func (m *MockClientRepo) GetByClientID(clientID string) (*Client, error) {
	c, ok := m.byClientID[clientID]
	if !ok {
		return nil, ErrClientNotFound
	}
	return c, nil
}
func (m *MockClientRepo) ListByOrganization(organizationID string) ([]*Client, error) {
	var out []*Client
	for _, c := range m.byClientID {
		if c.OrganizationID == organizationID && !c.IsDeleted() {
			out = append(out, c)
		}
	}
	return out, nil
}
func (m *MockClientRepo) Update(c *Client) error {
	m.byClientID[c.ClientID] = c
	return nil
}
func (m *MockClientRepo) Delete(id, organizationID string) error {
	for _, c := range m.byClientID {
		if c.ID == id && c.OrganizationID == organizationID {
			now := time.Now()
			c.DeletedAt = &now
			return nil
		}
	}
	return ErrClientNotFound
}

type MockCodeRepo struct {
	byCode map[string]*AuthorizationCode
}

func newMockCodeRepo() *MockCodeRepo {
	return &MockCodeRepo{byCode: map[string]*AuthorizationCode{}}
}

func (m *MockCodeRepo) Create(c *AuthorizationCode) error {
	m.byCode[c.Code] = c
	return nil
}
func (m *MockCodeRepo) ConsumeLive(code string) (*AuthorizationCode, error) {
	c, ok := m.byCode[code]
	if !ok || c.DeletedAt != nil {
		return nil, ErrCodeNotFound
	}
	now := time.Now()
	c.DeletedAt = &now
	return c, nil
}

type MockAccessRepo struct {
	byHash        map[string]*AccessTokenRecord
	byRefreshHash map[string]*AccessTokenRecord
}

func newMockAccessRepo() *MockAccessRepo {
	return &MockAccessRepo{byHash: map[string]*AccessTokenRecord{}, byRefreshHash: map[string]*AccessTokenRecord{}}
}

func (m *MockAccessRepo) Create(t *AccessTokenRecord) error {
	m.byHash[t.TokenHash] = t
	if t.RefreshTokenHash != nil {
		m.byRefreshHash[*t.RefreshTokenHash] = t
	}
	return nil
}
func (m *MockAccessRepo) GetLiveByTokenHash(tokenHash string) (*AccessTokenRecord, error) {
	t, ok := m.byHash[tokenHash]
	if !ok || !t.IsLive() {
		return nil, ErrTokenNotFound
	}
	return t, nil
}
func (m *MockAccessRepo) ConsumeLiveByRefreshHash(refreshTokenHash, clientID string) (*AccessTokenRecord, error) {
	t, ok := m.byRefreshHash[refreshTokenHash]
	if !ok || t.DeletedAt != nil || t.ClientID != clientID {
		return nil, ErrTokenNotFound
	}
	now := time.Now()
	t.DeletedAt = &now
	return t, nil
}

func newTestService() (*Service, *MockClientRepo, *MockCodeRepo, *MockAccessRepo) {
	clients := newMockClientRepo()
	codes := newMockCodeRepo()
	tokens := newMockAccessRepo()
	return NewService(clients, codes, tokens, audit.NewSlogLogger()), clients, codes, tokens
}

func TestCreateClient_DefaultsApplied(t *testing.T) {
	svc, _, _, _ := newTestService()
	client, secret, err := svc.CreateClient(context.Background(), "org-1", "test client", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret == "" {
		t.Fatalf("expected non-empty secret")
	}
	if len(client.RedirectURIs) != len(DefaultRedirectURIs) {
		t.Fatalf("expected default redirect URIs, got %v", client.RedirectURIs)
	}
	if len(client.Scopes) != 1 || client.Scopes[0] != DefaultScope {
		t.Fatalf("expected default scope, got %v", client.Scopes)
	}
}

func TestExchangeCode_GoldenPKCEVector(t *testing.T) {
	svc, clients, codes, _ := newTestService()
	client, _, _ := svc.CreateClient(context.Background(), "org-1", "c", []string{"https://claude.ai/api/mcp/auth_callback"}, nil)
	_ = clients

	code := &AuthorizationCode{
		ID:                  "code-1",
		Code:                "raw-code",
		ClientID:            client.ClientID,
		UserID:              "user-1",
		OrganizationID:      "org-1",
		RedirectURI:         "https://claude.ai/api/mcp/auth_callback",
		Scope:               DefaultScope,
		CodeChallenge:       testChallenge,
		CodeChallengeMethod: "S256",
		ExpiresAt:           time.Now().Add(5 * time.Minute),
		CreatedAt:           time.Now(),
	}
	_ = codes.Create(code)

	resp, err := svc.ExchangeCode(context.Background(), &TokenRequest{
		GrantType:    "authorization_code",
		Code:         "raw-code",
		CodeVerifier: testVerifier,
		RedirectURI:  "https://claude.ai/api/mcp/auth_callback",
		ClientID:     client.ClientID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("expected both tokens to be issued")
	}
}

func TestExchangeCode_PKCEMismatchFails(t *testing.T) {
	svc, _, codes, _ := newTestService()
	client, _, _ := svc.CreateClient(context.Background(), "org-1", "c", []string{"https://claude.ai/api/mcp/auth_callback"}, nil)

	code := &AuthorizationCode{
		Code:                "raw-code",
		ClientID:            client.ClientID,
		UserID:              "user-1",
		OrganizationID:      "org-1",
		RedirectURI:         "https://claude.ai/api/mcp/auth_callback",
		CodeChallenge:       testChallenge,
		CodeChallengeMethod: "S256",
		ExpiresAt:           time.Now().Add(5 * time.Minute),
	}
	_ = codes.Create(code)

	_, err := svc.ExchangeCode(context.Background(), &TokenRequest{
		Code:         "raw-code",
		CodeVerifier: "totally-wrong-verifier",
		RedirectURI:  "https://claude.ai/api/mcp/auth_callback",
		ClientID:     client.ClientID,
	})
	oe, ok := err.(*Error)
	if !ok || oe.Code != ErrInvalidGrant {
		t.Fatalf("expected invalid_grant, got %v", err)
	}
}

func TestExchangeCode_SingleUseEnforced(t *testing.T) {
	svc, _, codes, _ := newTestService()
	client, _, _ := svc.CreateClient(context.Background(), "org-1", "c", []string{"https://claude.ai/api/mcp/auth_callback"}, nil)

	code := &AuthorizationCode{
		Code:                "raw-code",
		ClientID:            client.ClientID,
		UserID:              "user-1",
		OrganizationID:      "org-1",
		RedirectURI:         "https://claude.ai/api/mcp/auth_callback",
		CodeChallenge:       testChallenge,
		CodeChallengeMethod: "S256",
		ExpiresAt:           time.Now().Add(5 * time.Minute),
	}
	_ = codes.Create(code)

	req := &TokenRequest{
		Code:         "raw-code",
		CodeVerifier: testVerifier,
		RedirectURI:  "https://claude.ai/api/mcp/auth_callback",
		ClientID:     client.ClientID,
	}

	if _, err := svc.ExchangeCode(context.Background(), req); err != nil {
		t.Fatalf("first exchange should succeed: %v", err)
	}
	if _, err := svc.ExchangeCode(context.Background(), req); err == nil {
		t.Fatalf("second exchange of the same code should fail")
	}
}

func TestExchangeCode_BadRedirectURIFails(t *testing.T) {
	svc, _, codes, _ := newTestService()
	client, _, _ := svc.CreateClient(context.Background(), "org-1", "c", []string{"https://claude.ai/api/mcp/auth_callback"}, nil)

	code := &AuthorizationCode{
		Code:                "raw-code",
		ClientID:            client.ClientID,
		RedirectURI:         "https://claude.ai/api/mcp/auth_callback",
		CodeChallenge:       testChallenge,
		CodeChallengeMethod: "S256",
		ExpiresAt:           time.Now().Add(5 * time.Minute),
	}
	_ = codes.Create(code)

	_, err := svc.ExchangeCode(context.Background(), &TokenRequest{
		Code:         "raw-code",
		CodeVerifier: testVerifier,
		RedirectURI:  "https://evil.example/callback",
		ClientID:     client.ClientID,
	})
	if err == nil {
		t.Fatalf("expected redirect_uri mismatch to fail")
	}
}

func TestExchangeCode_ExpiryBoundary(t *testing.T) {
	svc, _, codes, _ := newTestService()
	client, _, _ := svc.CreateClient(context.Background(), "org-1", "c", []string{"https://claude.ai/api/mcp/auth_callback"}, nil)

	// Expires 1 second in the future: still live.
	liveCode := &AuthorizationCode{
		Code:                "live-code",
		ClientID:            client.ClientID,
		RedirectURI:         "https://claude.ai/api/mcp/auth_callback",
		CodeChallenge:       testChallenge,
		CodeChallengeMethod: "S256",
		ExpiresAt:           time.Now().Add(1 * time.Second),
	}
	_ = codes.Create(liveCode)
	if _, err := svc.ExchangeCode(context.Background(), &TokenRequest{
		Code: "live-code", CodeVerifier: testVerifier,
		RedirectURI: "https://claude.ai/api/mcp/auth_callback", ClientID: client.ClientID,
	}); err != nil {
		t.Fatalf("code expiring in the future should still exchange: %v", err)
	}

	// Expired 1 second in the past: dead.
	deadCode := &AuthorizationCode{
		Code:                "dead-code",
		ClientID:            client.ClientID,
		RedirectURI:         "https://claude.ai/api/mcp/auth_callback",
		CodeChallenge:       testChallenge,
		CodeChallengeMethod: "S256",
		ExpiresAt:           time.Now().Add(-1 * time.Second),
	}
	_ = codes.Create(deadCode)
	if _, err := svc.ExchangeCode(context.Background(), &TokenRequest{
		Code: "dead-code", CodeVerifier: testVerifier,
		RedirectURI: "https://claude.ai/api/mcp/auth_callback", ClientID: client.ClientID,
	}); err == nil {
		t.Fatalf("expired code should not exchange")
	}
}

func TestRefreshAccessToken_RotatesAndRejectsReuse(t *testing.T) {
	svc, _, codes, _ := newTestService()
	client, _, _ := svc.CreateClient(context.Background(), "org-1", "c", []string{"https://claude.ai/api/mcp/auth_callback"}, nil)

	code := &AuthorizationCode{
		Code:                "raw-code",
		ClientID:            client.ClientID,
		UserID:              "user-1",
		OrganizationID:      "org-1",
		RedirectURI:         "https://claude.ai/api/mcp/auth_callback",
		CodeChallenge:       testChallenge,
		CodeChallengeMethod: "S256",
		ExpiresAt:           time.Now().Add(5 * time.Minute),
	}
	_ = codes.Create(code)

	first, err := svc.ExchangeCode(context.Background(), &TokenRequest{
		Code: "raw-code", CodeVerifier: testVerifier,
		RedirectURI: "https://claude.ai/api/mcp/auth_callback", ClientID: client.ClientID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refreshed, err := svc.RefreshAccessToken(context.Background(), &TokenRequest{
		RefreshToken: first.RefreshToken, ClientID: client.ClientID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refreshed.AccessToken == first.AccessToken {
		t.Fatalf("expected a newly minted access token")
	}

	// Old refresh token must not be reusable.
	if _, err := svc.RefreshAccessToken(context.Background(), &TokenRequest{
		RefreshToken: first.RefreshToken, ClientID: client.ClientID,
	}); err == nil {
		t.Fatalf("expected reuse of a rotated refresh token to fail")
	}
}

func TestValidateBearer_RejectsNonPrefixedToken(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.ValidateBearer(context.Background(), "not-a-bow-token"); err == nil {
		t.Fatalf("expected unauthenticated error for non-prefixed token")
	}
}

func TestValidateBearer_Success(t *testing.T) {
	svc, _, codes, _ := newTestService()
	client, _, _ := svc.CreateClient(context.Background(), "org-1", "c", []string{"https://claude.ai/api/mcp/auth_callback"}, nil)

	code := &AuthorizationCode{
		Code:                "raw-code",
		ClientID:            client.ClientID,
		UserID:              "user-1",
		OrganizationID:      "org-1",
		RedirectURI:         "https://claude.ai/api/mcp/auth_callback",
		CodeChallenge:       testChallenge,
		CodeChallengeMethod: "S256",
		ExpiresAt:           time.Now().Add(5 * time.Minute),
	}
	_ = codes.Create(code)

	resp, err := svc.ExchangeCode(context.Background(), &TokenRequest{
		Code: "raw-code", CodeVerifier: testVerifier,
		RedirectURI: "https://claude.ai/api/mcp/auth_callback", ClientID: client.ClientID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	principal, err := svc.ValidateBearer(context.Background(), resp.AccessToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if principal.UserID != "user-1" || principal.OrganizationID != "org-1" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

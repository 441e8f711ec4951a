package authdispatch

import (
	"context"
	"errors"
	"testing"
)

type mockSessionResolver struct {
	principal *Principal
	err       error
}

func (m *mockSessionResolver) ResolveSession(ctx context.Context, token string) (*Principal, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.principal, nil
}

type mockAPIKeyResolver struct {
	principal *Principal
	err       error
}

func (m *mockAPIKeyResolver) ResolveAPIKey(ctx context.Context, key string) (*Principal, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.principal, nil
}

type mockBearerResolver struct {
	principal *Principal
	err       error
}

func (m *mockBearerResolver) ResolveBearer(ctx context.Context, token string) (*Principal, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.principal, nil
}

var errNoMatch = errors.New("no match")

func TestAuthenticate_SessionTakesPrecedence(t *testing.T) {
	d := New(
		&mockSessionResolver{principal: &Principal{UserID: "u1", TenantID: "t1"}},
		&mockAPIKeyResolver{principal: &Principal{UserID: "u2", TenantID: "t2"}},
		&mockBearerResolver{principal: &Principal{UserID: "u3", TenantID: "t3"}},
	)

	p, err := d.Authenticate(context.Background(), Request{
		SessionToken:        "sess_abc",
		APIKeyHeader:        "bow_somekey",
		AuthorizationHeader: "Bearer bow_oauth_token",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UserID != "u1" || p.TenantID != "t1" {
		t.Fatalf("expected session principal, got %+v", p)
	}
}

func TestAuthenticate_FallsBackToAPIKeyHeader(t *testing.T) {
	d := New(
		&mockSessionResolver{err: errNoMatch},
		&mockAPIKeyResolver{principal: &Principal{UserID: "u2", TenantID: "t2"}},
		&mockBearerResolver{principal: &Principal{UserID: "u3", TenantID: "t3"}},
	)

	p, err := d.Authenticate(context.Background(), Request{
		APIKeyHeader: "bow_somekey",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UserID != "u2" {
		t.Fatalf("expected api key principal, got %+v", p)
	}
}

func TestAuthenticate_IgnoresOAuthPrefixedAPIKeyHeader(t *testing.T) {
	d := New(
		&mockSessionResolver{err: errNoMatch},
		&mockAPIKeyResolver{principal: &Principal{UserID: "u2", TenantID: "t2"}},
		&mockBearerResolver{principal: &Principal{UserID: "u3", TenantID: "t3"}},
	)

	p, err := d.Authenticate(context.Background(), Request{
		APIKeyHeader:        "bow_oauth_shouldnotmatch",
		AuthorizationHeader: "Bearer bow_oauth_token",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UserID != "u3" {
		t.Fatalf("expected bearer principal (api key header should be skipped), got %+v", p)
	}
}

func TestAuthenticate_BearerRoutesByPrefix(t *testing.T) {
	d := New(
		&mockSessionResolver{err: errNoMatch},
		&mockAPIKeyResolver{principal: &Principal{UserID: "u2", TenantID: "t2"}},
		&mockBearerResolver{principal: &Principal{UserID: "u3", TenantID: "t3"}},
	)

	p, err := d.Authenticate(context.Background(), Request{
		AuthorizationHeader: "Bearer bow_apikeyvalue",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UserID != "u2" {
		t.Fatalf("expected api key principal via bearer header, got %+v", p)
	}
}

func TestAuthenticate_NoCredentialsFails(t *testing.T) {
	d := New(
		&mockSessionResolver{err: errNoMatch},
		&mockAPIKeyResolver{err: errNoMatch},
		&mockBearerResolver{err: errNoMatch},
	)

	_, err := d.Authenticate(context.Background(), Request{})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

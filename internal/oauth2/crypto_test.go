package oauth2

import "testing"

func TestVerifyPKCES256_GoldenVector(t *testing.T) {
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	const challenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

	if !verifyPKCES256(challenge, verifier) {
		t.Fatalf("golden PKCE vector did not verify")
	}
}

func TestVerifyPKCES256_Mismatch(t *testing.T) {
	if verifyPKCES256("E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", "wrong-verifier") {
		t.Fatalf("mismatched verifier unexpectedly verified")
	}
}

func TestVerifyPKCES256_EmptyInputsRejected(t *testing.T) {
	const challenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

	if verifyPKCES256("", verifier) {
		t.Fatalf("empty code_challenge unexpectedly verified")
	}
	if verifyPKCES256(challenge, "") {
		t.Fatalf("empty code_verifier unexpectedly verified")
	}
	if verifyPKCES256("", "") {
		t.Fatalf("empty challenge and verifier unexpectedly verified")
	}
}

func TestHashToken_Hex(t *testing.T) {
	h := hashToken("bow_oauth_abc")
	if len(h) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars: %q", len(h), h)
	}
	for _, r := range h {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			t.Fatalf("hash is not lowercase hex: %q", h)
		}
	}
}

func TestGenerateToken_Prefix(t *testing.T) {
	tok := generateToken(PrefixAccessToken)
	if len(tok) <= len(PrefixAccessToken) {
		t.Fatalf("token too short: %q", tok)
	}
	if tok[:len(PrefixAccessToken)] != PrefixAccessToken {
		t.Fatalf("token missing prefix: %q", tok)
	}
}

func TestSecureCompare(t *testing.T) {
	if !secureCompare("abc", "abc") {
		t.Fatalf("expected equal strings to compare equal")
	}
	if secureCompare("abc", "abd") {
		t.Fatalf("expected different strings to compare unequal")
	}
}

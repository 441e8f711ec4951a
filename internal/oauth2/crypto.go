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
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// Token prefixes (spec §6).
const (
	PrefixClientID     = "bow_client_"
	PrefixClientSecret = "bow_secret_"
	PrefixAccessToken  = "bow_oauth_"
	PrefixRefreshToken = "bow_rt_"
)

// generateToken returns a CSPRNG-backed token with the given prefix. The
// random component is 32 bytes (256 bits) of OS entropy, base64url
// encoded without padding, per spec §4.1/§9.
func generateToken(prefix string) string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("oauth2: failed to read CSPRNG: " + err.Error())
	}
	return prefix + base64.RawURLEncoding.EncodeToString(b)
}

// hashToken returns the lowercase hex SHA-256 digest of value, the
// storage form for all bearer secrets (spec §3/§4.1).
func hashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// secureCompare performs a constant-time comparison of two secrets.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// verifyPKCES256 checks a PKCE code_verifier against a stored S256
// code_challenge (RFC 7636 §4.6). The challenge is base64url, no
// padding, of the SHA-256 digest of the verifier. Comparison is
// constant-time.
func verifyPKCES256(codeChallenge, codeVerifier string) bool {
	if codeChallenge == "" || codeVerifier == "" {
		return false
	}
	sum := sha256.Sum256([]byte(codeVerifier))
	computed := base64.RawURLEncoding.EncodeToString(sum[:])
	return secureCompare(codeChallenge, computed)
}

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

import "fmt"

// Error represents a protocol-level OAuth error surfaced to the client.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	State       string `json:"state,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("oauth error: %s (%s)", e.Code, e.Description)
}

// Error codes. invalid_grant is deliberately generic: exchange/refresh
// failures never distinguish "expired" from "already used" from "not
// found" to the caller (spec: no oracle).
const (
	ErrUnsupportedResponseType = "unsupported_response_type"
	ErrInvalidRequest          = "invalid_request"
	ErrInvalidGrant            = "invalid_grant"
	ErrUnsupportedGrantType    = "unsupported_grant_type"
	ErrInvalidClient           = "invalid_client"
	ErrUnauthenticated         = "unauthenticated"
	ErrForbidden               = "forbidden"
	ErrNotFound                = "not_found"
	ErrServerError             = "server_error"
)

// NewError creates a new protocol error.
func NewError(code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// WithState attaches a state parameter to the error.
func (e *Error) WithState(state string) *Error {
	e.State = state
	return e
}

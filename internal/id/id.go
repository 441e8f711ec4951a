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

// Package id centralizes entity identifier generation so storage layers get
// time-sortable primary keys without every package reaching for its own
// uuid import.
package id

import "github.com/google/uuid"

// NewUUIDv7 returns a new time-ordered UUIDv7 string. It falls back to a
// random UUIDv4 if the v7 generator fails (entropy exhaustion), which
// uuid.NewString already does internally for Must-style callers, but we
// guard explicitly here since identity and tenant records must never fail
// to obtain an ID.
func NewUUIDv7() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return v7.String()
}

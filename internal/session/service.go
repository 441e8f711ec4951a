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

package session

import (
	"context"
	"time"

	"github.com/bagofwords/mcpgateway/internal/id"
)

// Service manages first-party browser sessions backing the consent UI and
// the control-plane API. It is distinct from the opaque bow_ OAuth tokens
// minted by internal/oauth2 — a Service session authenticates a human in a
// browser, never an MCP client.
type Service struct {
	repo        Repository
	lifetime    time.Duration
	idleTimeout time.Duration
}

// NewService creates a new session service.
func NewService(repo Repository, lifetime, idleTimeout time.Duration) *Service {
	return &Service{repo: repo, lifetime: lifetime, idleTimeout: idleTimeout}
}

// Create starts a new session for an authenticated user.
func (s *Service) Create(ctx context.Context, tenantID, userID, ipAddress, userAgent string) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:         id.NewUUIDv7(),
		TenantID:   tenantID,
		UserID:     userID,
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		ExpiresAt:  now.Add(s.lifetime),
		CreatedAt:  now,
		LastSeenAt: now,
	}

	if err := s.repo.Create(sess); err != nil {
		return nil, err
	}

	return sess, nil
}

// Get retrieves a live session by ID, rejecting expired or idle ones.
func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.repo.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if sess.IsExpired() {
		return nil, ErrSessionExpired
	}
	if sess.IsIdle(s.idleTimeout) {
		return nil, ErrSessionExpired
	}

	return sess, nil
}

// Refresh updates the session's last-seen timestamp.
func (s *Service) Refresh(ctx context.Context, sessionID string) error {
	sess, err := s.repo.Get(sessionID)
	if err != nil {
		return err
	}
	sess.LastSeenAt = time.Now()
	return s.repo.Update(sess)
}

// Destroy ends a session.
func (s *Service) Destroy(ctx context.Context, sessionID string) error {
	return s.repo.Delete(sessionID)
}

// DestroyAllForUser ends every session belonging to a user, used on password
// change and account lockout.
func (s *Service) DestroyAllForUser(ctx context.Context, userID string) error {
	return s.repo.DeleteByUserID(userID)
}

// CleanupExpired removes expired sessions; intended to run on a periodic
// ticker from the composition root.
func (s *Service) CleanupExpired(ctx context.Context) error {
	return s.repo.DeleteExpired()
}

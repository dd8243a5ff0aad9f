package gamesession

import (
	"time"

	"github.com/kidsafe/access-management/internal"
)

// Session is the weak credential handed to the companion client after the
// PIN challenge. The token is opaque; every piece of state lives server-side
// and is looked up by exact token match.
type Session struct {
	ID         int64      `json:"id"`
	Token      string     `json:"token"`
	ChildID    int64      `json:"child_id"`
	UserID     int64      `json:"user_id"`
	ExpiresAt  time.Time  `json:"expires_at"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

var (
	ErrSessionInvalid  = internal.NewConflictError("session is expired or terminated", internal.ErrCodeSessionInvalid)
	ErrSessionInactive = internal.NewConflictError("session is terminated", internal.ErrCodeSessionInactive)
)

// NewSession mints a fresh session bound to one child and the adult who
// passed the PIN challenge. The issuer performs no PIN check itself; callers
// gate issuance.
func NewSession(token string, childID, userID int64, now time.Time, ttl time.Duration) *Session {
	return &Session{
		Token:     token,
		ChildID:   childID,
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		IsActive:  true,
		CreatedAt: now,
	}
}

func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *Session) IsValid(now time.Time) bool {
	return s.IsActive && !s.IsExpired(now)
}

// Touch records client activity on a valid session.
func (s *Session) Touch(now time.Time) error {
	if !s.IsValid(now) {
		return ErrSessionInvalid
	}
	s.LastUsedAt = &now
	return nil
}

// Extend resets expiry to a full window from now. The reset is absolute, not
// additive: repeated extension can never push expiry further than one window
// past the most recent call.
func (s *Session) Extend(now time.Time, ttl time.Duration) error {
	if !s.IsActive {
		return ErrSessionInactive
	}
	s.ExpiresAt = now.Add(ttl)
	return nil
}

// Terminate deactivates the session. Idempotent; terminating a dead session
// is not an error.
func (s *Session) Terminate() {
	s.IsActive = false
}

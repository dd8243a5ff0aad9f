package gamesession

import (
	"time"

	"github.com/kidsafe/access-management/internal"
)

// IssueSessionDTO carries the PIN challenge answer for session issuance.
type IssueSessionDTO struct {
	Pin string `json:"pin"`
}

func (d IssueSessionDTO) Validate() error {
	if d.Pin == "" {
		return internal.NewValidationError("pin is required", internal.ErrCodeInvalidPin)
	}
	return nil
}

type ValidateSessionDTO struct {
	Token string `json:"token"`
}

func (d ValidateSessionDTO) Validate() error {
	if d.Token == "" {
		return internal.NewValidationError("token is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

// SessionView is the transport shape. The token appears only in the issuance
// response; listings omit it so a MANAGE-holder cannot read another user's
// live credential.
type SessionView struct {
	ID         int64      `json:"id"`
	ChildID    int64      `json:"child_id"`
	UserID     int64      `json:"user_id"`
	ExpiresAt  time.Time  `json:"expires_at"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type IssuedSessionView struct {
	SessionView
	Token string `json:"token"`
}

func (s *Session) ToView() SessionView {
	return SessionView{
		ID:         s.ID,
		ChildID:    s.ChildID,
		UserID:     s.UserID,
		ExpiresAt:  s.ExpiresAt,
		IsActive:   s.IsActive,
		LastUsedAt: s.LastUsedAt,
		CreatedAt:  s.CreatedAt,
	}
}

func (s *Session) ToIssuedView() IssuedSessionView {
	return IssuedSessionView{
		SessionView: s.ToView(),
		Token:       s.Token,
	}
}

package gamesession

import (
	"context"
	"log/slog"
	"time"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/auth"
	"github.com/kidsafe/access-management/internal/authorization"
	"github.com/kidsafe/access-management/internal/core/events"
)

type Repository interface {
	Create(s *Session) error
	GetByToken(token string) (*Session, error)
	GetByID(id int64) (*Session, error)
	Update(s *Session) error
	ListActiveForChild(childID int64) ([]*Session, error)
	DeactivateExpired(now time.Time) (int64, error)
	DeleteExpiredBefore(cutoff time.Time) (int64, error)
	TerminateSessionsForChild(childID int64) (int64, error)
}

// PinVerifier is the knowledge-factor check preceding issuance. A false
// answer is a normal outcome, not an error.
type PinVerifier interface {
	VerifyPin(childID int64, rawPin string) (bool, error)
}

// AccessChecker gates issuance on the adult's PLAY_GAME permission.
type AccessChecker interface {
	HasPermission(childID, userID int64, p authorization.Permission) (bool, error)
}

type Service struct {
	repo     Repository
	pins     PinVerifier
	access   AccessChecker
	eventBus *events.EventBus
	logger   *slog.Logger
	ttl      time.Duration
}

func NewService(repo Repository, pins PinVerifier, access AccessChecker, eventBus *events.EventBus, logger *slog.Logger, ttl time.Duration) *Service {
	return &Service{
		repo:     repo,
		pins:     pins,
		access:   access,
		eventBus: eventBus,
		logger:   logger,
		ttl:      ttl,
	}
}

// Issue mints a session after the permission check and PIN challenge both
// pass. A PIN mismatch is reported as a generic authentication failure; the
// client learns nothing about which factor was rejected.
func (s *Service) Issue(ctx context.Context, childID, userID int64, rawPin string) (*Session, error) {
	allowed, err := s.access.HasPermission(childID, userID, authorization.PermissionPlayGame)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, internal.ErrInsufficientPermission
	}

	ok, err := s.pins.VerifyPin(childID, rawPin)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Warn("pin challenge failed", "child_id", childID, "user_id", userID)
		return nil, internal.ErrPinMismatch
	}

	token, err := auth.GenerateRandomToken()
	if err != nil {
		return nil, internal.NewInternalError("failed to generate session token", err)
	}

	session := NewSession(token, childID, userID, time.Now(), s.ttl)
	if err := s.repo.Create(session); err != nil {
		return nil, internal.NewInternalError("failed to save session", err)
	}

	s.eventBus.Publish(ctx, events.NewSessionIssuedEvent(childID, userID, session.ExpiresAt))
	return session, nil
}

// Validate resolves a token to its session. Missing, expired, and terminated
// tokens all fail the same way.
func (s *Service) Validate(token string) (*Session, error) {
	session, err := s.repo.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if !session.IsValid(time.Now()) {
		return nil, internal.ErrInvalidToken
	}
	return session, nil
}

// Heartbeat records client activity against a valid session.
func (s *Service) Heartbeat(token string) (*Session, error) {
	session, err := s.repo.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if err := session.Touch(time.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(session); err != nil {
		return nil, internal.NewInternalError("failed to update session", err)
	}
	return session, nil
}

// Extend resets the session's expiry to a full window from now.
func (s *Service) Extend(sessionID int64) (*Session, error) {
	session, err := s.repo.GetByID(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.Extend(time.Now(), s.ttl); err != nil {
		return nil, err
	}
	if err := s.repo.Update(session); err != nil {
		return nil, internal.NewInternalError("failed to update session", err)
	}
	return session, nil
}

// Terminate deactivates the session. Terminating twice succeeds both times.
func (s *Service) Terminate(ctx context.Context, sessionID int64) error {
	session, err := s.repo.GetByID(sessionID)
	if err != nil {
		return err
	}

	wasActive := session.IsActive
	session.Terminate()
	if err := s.repo.Update(session); err != nil {
		return internal.NewInternalError("failed to update session", err)
	}

	if wasActive {
		s.eventBus.Publish(ctx, events.NewSessionEndedEvent(session.ChildID, session.ID))
	}
	return nil
}

func (s *Service) GetSession(sessionID int64) (*Session, error) {
	return s.repo.GetByID(sessionID)
}

func (s *Service) ListActiveForChild(childID int64) ([]*Session, error) {
	return s.repo.ListActiveForChild(childID)
}

// DeactivateExpiredSessions flips active flags on sessions past expiry.
func (s *Service) DeactivateExpiredSessions() (int64, error) {
	n, err := s.repo.DeactivateExpired(time.Now())
	if err != nil {
		return 0, internal.NewInternalError("failed to deactivate expired sessions", err)
	}
	if n > 0 {
		s.logger.Info("deactivated expired game sessions", "count", n)
	}
	return n, nil
}

// PurgeExpiredSessions hard-deletes rows whose expiry is older than the
// cutoff; the predicate is the policy, the caller owns the trigger.
func (s *Service) PurgeExpiredSessions(cutoff time.Time) (int64, error) {
	n, err := s.repo.DeleteExpiredBefore(cutoff)
	if err != nil {
		return 0, internal.NewInternalError("failed to purge expired sessions", err)
	}
	if n > 0 {
		s.logger.Info("purged expired game sessions", "count", n)
	}
	return n, nil
}

package child

import (
	"context"
	"log/slog"
	"time"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/authorization"
)

type Repository interface {
	Create(c *Child) error
	GetByID(id int64) (*Child, error)
	Update(c *Child) error
	SoftDelete(id int64, at time.Time) error
	ListForUser(userID int64) ([]*Child, error)
}

// PrimaryGranter creates the creator's primary grant when a child is added.
type PrimaryGranter interface {
	AddGrant(ctx context.Context, childID int64, dto authorization.AddGrantDTO, grantedBy int64) (*authorization.Grant, error)
}

// GrantDeactivator and SessionTerminator carry the soft-delete cascade:
// a deleted child keeps its rows but loses every active grant and session.
type GrantDeactivator interface {
	DeactivateGrantsForChild(childID int64) (int64, error)
}

type SessionTerminator interface {
	TerminateSessionsForChild(childID int64) (int64, error)
}

type Service struct {
	repo     Repository
	granter  PrimaryGranter
	grants   GrantDeactivator
	sessions SessionTerminator
	hasher   PinHasher
	logger   *slog.Logger
}

func NewService(repo Repository, granter PrimaryGranter, grants GrantDeactivator, sessions SessionTerminator, hasher PinHasher, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		granter:  granter,
		grants:   grants,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger,
	}
}

// CreateChild registers the child and makes the creator its primary guardian.
func (s *Service) CreateChild(ctx context.Context, dto CreateChildDTO, creatorID int64) (*Child, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	c := &Child{
		Name:        dto.Name,
		BirthDate:   dto.BirthDate,
		AvatarEmoji: dto.AvatarEmoji,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Create(c); err != nil {
		return nil, internal.NewInternalError("failed to create child", err)
	}

	_, err := s.granter.AddGrant(ctx, c.ID, authorization.AddGrantDTO{
		UserID:    creatorID,
		IsPrimary: true,
	}, creatorID)
	if err != nil {
		s.logger.Error("failed to create primary grant for new child",
			"child_id", c.ID, "user_id", creatorID, "error", err)
		return nil, err
	}

	return c, nil
}

func (s *Service) GetChild(childID int64) (*Child, error) {
	return s.repo.GetByID(childID)
}

func (s *Service) UpdateChild(childID int64, dto UpdateChildDTO) (*Child, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	c, err := s.repo.GetByID(childID)
	if err != nil {
		return nil, err
	}

	if dto.Name != "" {
		c.Name = dto.Name
	}
	if dto.BirthDate != nil {
		c.BirthDate = dto.BirthDate
	}
	if dto.AvatarEmoji != "" {
		c.AvatarEmoji = dto.AvatarEmoji
	}

	if err := s.repo.Update(c); err != nil {
		return nil, internal.NewInternalError("failed to update child", err)
	}
	return c, nil
}

// ListChildrenForUser returns every child the user holds an active grant for.
func (s *Service) ListChildrenForUser(userID int64) ([]*Child, error) {
	return s.repo.ListForUser(userID)
}

// DeleteChild soft-deletes the child and cascades: every active grant is
// deactivated and every game session terminated. The row itself stays.
func (s *Service) DeleteChild(ctx context.Context, childID int64) error {
	if _, err := s.repo.GetByID(childID); err != nil {
		return err
	}

	if err := s.repo.SoftDelete(childID, time.Now()); err != nil {
		return internal.NewInternalError("failed to delete child", err)
	}

	grants, err := s.grants.DeactivateGrantsForChild(childID)
	if err != nil {
		return internal.NewInternalError("failed to deactivate grants", err)
	}
	sessions, err := s.sessions.TerminateSessionsForChild(childID)
	if err != nil {
		return internal.NewInternalError("failed to terminate sessions", err)
	}

	s.logger.Info("child deleted",
		"child_id", childID,
		"grants_deactivated", grants,
		"sessions_terminated", sessions)
	return nil
}

func (s *Service) SetPin(childID int64, dto SetPinDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	c, err := s.repo.GetByID(childID)
	if err != nil {
		return err
	}
	if err := c.SetPin(dto.Pin, s.hasher); err != nil {
		return err
	}
	if err := s.repo.Update(c); err != nil {
		return internal.NewInternalError("failed to store pin", err)
	}
	return nil
}

// VerifyPin answers the knowledge-factor check. False is an answer, not an
// error; errors are reserved for a missing child or storage failure.
func (s *Service) VerifyPin(childID int64, rawPin string) (bool, error) {
	c, err := s.repo.GetByID(childID)
	if err != nil {
		return false, err
	}
	return c.VerifyPin(rawPin, s.hasher), nil
}

func (s *Service) EnablePin(childID int64) error {
	c, err := s.repo.GetByID(childID)
	if err != nil {
		return err
	}
	if err := c.EnablePin(); err != nil {
		return err
	}
	if err := s.repo.Update(c); err != nil {
		return internal.NewInternalError("failed to enable pin", err)
	}
	return nil
}

func (s *Service) DisablePin(childID int64) error {
	c, err := s.repo.GetByID(childID)
	if err != nil {
		return err
	}
	c.DisablePin()
	if err := s.repo.Update(c); err != nil {
		return internal.NewInternalError("failed to disable pin", err)
	}
	return nil
}

func (s *Service) RemovePin(childID int64) error {
	c, err := s.repo.GetByID(childID)
	if err != nil {
		return err
	}
	c.RemovePin()
	if err := s.repo.Update(c); err != nil {
		return internal.NewInternalError("failed to remove pin", err)
	}
	return nil
}

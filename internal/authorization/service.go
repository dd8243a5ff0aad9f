package authorization

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/core/events"
)

type Repository interface {
	ChildExists(childID int64) error
	LoadGrants(childID int64) ([]*Grant, error)
	GetUserRoles(userID int64) ([]string, error)
	CreateGrant(g *Grant) error
	DeleteGrant(grantID int64) error
	SaveGrants(grants []*Grant) error
}

// childLocks serializes grant mutations per child. The aggregate's
// check-then-act is unsafe under concurrent writers, so every mutation for a
// child runs under that child's mutex for its full duration.
type childLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newChildLocks() *childLocks {
	return &childLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *childLocks) acquire(childID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[childID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[childID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

type Service struct {
	repo     Repository
	eventBus *events.EventBus
	logger   *slog.Logger
	locks    *childLocks
}

func NewService(repo Repository, eventBus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
		locks:    newChildLocks(),
	}
}

// AddGrant inserts a grant for a child after the aggregate accepts it.
func (s *Service) AddGrant(ctx context.Context, childID int64, dto AddGrantDTO, grantedBy int64) (*Grant, error) {
	perms, err := dto.Validate()
	if err != nil {
		return nil, err
	}

	unlock := s.locks.acquire(childID)
	defer unlock()

	if err := s.repo.ChildExists(childID); err != nil {
		return nil, err
	}

	roles, err := s.repo.GetUserRoles(dto.UserID)
	if err != nil {
		return nil, err
	}

	grants, err := s.repo.LoadGrants(childID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load grants", err)
	}

	agg := NewAggregate(childID, grants)
	grant := &Grant{
		UserID:      dto.UserID,
		Permissions: perms,
		IsPrimary:   dto.IsPrimary,
		GrantedBy:   grantedBy,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	if err := agg.AddGrant(grant, roles); err != nil {
		return nil, err
	}

	if err := s.repo.CreateGrant(grant); err != nil {
		return nil, internal.NewInternalError("failed to save grant", err)
	}

	s.eventBus.Publish(ctx, events.NewGrantAddedEvent(childID, grant.UserID, grantedBy, grant.IsPrimary))
	return grant, nil
}

// RemoveGrant deletes a non-primary grant from the child's set.
func (s *Service) RemoveGrant(ctx context.Context, childID, grantID int64) error {
	unlock := s.locks.acquire(childID)
	defer unlock()

	grants, err := s.repo.LoadGrants(childID)
	if err != nil {
		return internal.NewInternalError("failed to load grants", err)
	}

	agg := NewAggregate(childID, grants)
	var target *Grant
	for _, g := range grants {
		if g.ID == grantID {
			target = g
			break
		}
	}
	if target == nil {
		return internal.ErrGrantNotFound
	}

	if err := agg.RemoveGrant(target); err != nil {
		return err
	}

	if err := s.repo.DeleteGrant(grantID); err != nil {
		return internal.NewInternalError("failed to delete grant", err)
	}

	s.eventBus.Publish(ctx, events.NewGrantRemovedEvent(childID, target.UserID))
	return nil
}

// TransferPrimary moves primary guardianship to another active grant holder.
func (s *Service) TransferPrimary(ctx context.Context, childID, newUserID int64) error {
	unlock := s.locks.acquire(childID)
	defer unlock()

	roles, err := s.repo.GetUserRoles(newUserID)
	if err != nil {
		return err
	}

	grants, err := s.repo.LoadGrants(childID)
	if err != nil {
		return internal.NewInternalError("failed to load grants", err)
	}

	agg := NewAggregate(childID, grants)
	if err := agg.TransferPrimary(newUserID, roles); err != nil {
		return err
	}

	if err := s.repo.SaveGrants(agg.Grants()); err != nil {
		return internal.NewInternalError("failed to save grants", err)
	}

	s.eventBus.Publish(ctx, events.NewPrimaryTransferredEvent(childID, newUserID))
	return nil
}

// HasPermission answers a single permission check against the child's grants.
func (s *Service) HasPermission(childID, userID int64, p Permission) (bool, error) {
	grants, err := s.repo.LoadGrants(childID)
	if err != nil {
		return false, internal.NewInternalError("failed to load grants", err)
	}
	return NewAggregate(childID, grants).HasPermission(userID, p), nil
}

func (s *Service) CanAccess(childID, userID int64) (bool, error) {
	grants, err := s.repo.LoadGrants(childID)
	if err != nil {
		return false, internal.NewInternalError("failed to load grants", err)
	}
	return NewAggregate(childID, grants).CanAccess(userID), nil
}

func (s *Service) IsPrimaryParent(childID, userID int64) (bool, error) {
	grants, err := s.repo.LoadGrants(childID)
	if err != nil {
		return false, internal.NewInternalError("failed to load grants", err)
	}
	return NewAggregate(childID, grants).IsPrimaryParent(userID), nil
}

// ListGrants returns a child's authorized-user list.
func (s *Service) ListGrants(childID int64) ([]*Grant, error) {
	if err := s.repo.ChildExists(childID); err != nil {
		return nil, err
	}
	grants, err := s.repo.LoadGrants(childID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load grants", err)
	}
	return grants, nil
}

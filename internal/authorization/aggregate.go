package authorization

import (
	"github.com/kidsafe/access-management/internal"
)

// Aggregate is one child's complete grant set, loaded and mutated as a single
// unit. The single-primary invariant is a set-level property: counting active
// primaries and then inserting cannot be split across independent row writes,
// so every mutation goes through this type while the caller holds the child's
// exclusive lock.
type Aggregate struct {
	ChildID int64
	grants  []*Grant
}

func NewAggregate(childID int64, grants []*Grant) *Aggregate {
	return &Aggregate{
		ChildID: childID,
		grants:  grants,
	}
}

// Grants returns the aggregate's current grant set.
func (a *Aggregate) Grants() []*Grant {
	return a.grants
}

// AddGrant inserts a new grant. A primary grant is refused when an active
// primary already exists, or when the grantee does not hold the parent role.
func (a *Aggregate) AddGrant(g *Grant, granteeRoles []string) error {
	if g == nil {
		return ErrNilGrant
	}

	for _, existing := range a.grants {
		if existing.UserID == g.UserID {
			return ErrDuplicateGrant
		}
	}

	if g.IsPrimary {
		if a.activePrimary() != nil {
			return ErrPrimaryExists
		}
		if !hasParentRole(granteeRoles) {
			return ErrRoleMismatch
		}
	}

	// Owning-side write: the grant stores the child's id.
	g.ChildID = a.ChildID
	a.grants = append(a.grants, g)
	return nil
}

// RemoveGrant removes a grant. Nil is a no-op. The active primary can never
// be removed, only transferred.
func (a *Aggregate) RemoveGrant(g *Grant) error {
	if g == nil {
		return nil
	}
	if g.IsPrimary && g.IsActive {
		return ErrPrimaryNotRemovable
	}

	for i, existing := range a.grants {
		if existing.ID == g.ID {
			a.grants = append(a.grants[:i], a.grants[i+1:]...)
			return nil
		}
	}
	return nil
}

// TransferPrimary demotes every currently-primary active grant and promotes
// the target. The promoted grant's stored permission set is expanded to the
// full set so listings reflect what permission checks already short-circuit
// to via the primary flag.
func (a *Aggregate) TransferPrimary(newUserID int64, granteeRoles []string) error {
	target := a.ActiveGrantFor(newUserID)
	if target == nil {
		return internal.ErrGrantNotFound
	}
	if !hasParentRole(granteeRoles) {
		return ErrRoleMismatch
	}

	for _, g := range a.grants {
		if g.IsActive && g.IsPrimary {
			g.IsPrimary = false
		}
	}

	target.IsPrimary = true
	target.Permissions = AllPermissions()
	return nil
}

// HasPermission reports whether the user's active grant allows the permission.
func (a *Aggregate) HasPermission(userID int64, p Permission) bool {
	g := a.ActiveGrantFor(userID)
	return g != nil && g.HasPermission(p)
}

// CanAccess reports whether the user has any effective permission at all.
func (a *Aggregate) CanAccess(userID int64) bool {
	g := a.ActiveGrantFor(userID)
	return g != nil && len(g.EffectivePermissions()) > 0
}

// IsPrimaryParent reports whether the user holds the active primary grant.
func (a *Aggregate) IsPrimaryParent(userID int64) bool {
	g := a.ActiveGrantFor(userID)
	return g != nil && g.IsPrimary
}

// ActiveGrantFor returns the user's active grant, or nil.
func (a *Aggregate) ActiveGrantFor(userID int64) *Grant {
	for _, g := range a.grants {
		if g.IsActive && g.UserID == userID {
			return g
		}
	}
	return nil
}

func (a *Aggregate) activePrimary() *Grant {
	for _, g := range a.grants {
		if g.IsActive && g.IsPrimary {
			return g
		}
	}
	return nil
}

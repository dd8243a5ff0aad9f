package authorization

import (
	"strings"
	"time"

	"github.com/kidsafe/access-management/internal"
)

// Permission is one of the five fixed access kinds a grant can carry.
type Permission string

const (
	PermissionPlayGame      Permission = "PLAY_GAME"
	PermissionViewReport    Permission = "VIEW_REPORT"
	PermissionWriteNote     Permission = "WRITE_NOTE"
	PermissionAssignMission Permission = "ASSIGN_MISSION"
	PermissionManage        Permission = "MANAGE"
)

// AllPermissions returns the full permission set, the effective set of every
// primary guardian.
func AllPermissions() []Permission {
	return []Permission{
		PermissionPlayGame,
		PermissionViewReport,
		PermissionWriteNote,
		PermissionAssignMission,
		PermissionManage,
	}
}

func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PermissionPlayGame, PermissionViewReport, PermissionWriteNote,
		PermissionAssignMission, PermissionManage:
		return p, nil
	}
	return "", internal.NewValidationError("unknown permission: "+s, internal.ErrCodeInvalidGrant)
}

// EncodePermissions serializes a permission set for the storage column.
func EncodePermissions(perms []Permission) string {
	parts := make([]string, len(perms))
	for i, p := range perms {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

func DecodePermissions(encoded string) []Permission {
	if encoded == "" {
		return nil
	}
	parts := strings.Split(encoded, ",")
	perms := make([]Permission, 0, len(parts))
	for _, part := range parts {
		if p, err := ParsePermission(part); err == nil {
			perms = append(perms, p)
		}
	}
	return perms
}

// Grant is one (child, user) authorization record. The grant is the owning
// side of the relationship: it always stores the child's id, and a child's
// view of its grants is a query, never a live collection.
type Grant struct {
	ID          int64        `json:"id"`
	ChildID     int64        `json:"child_id"`
	UserID      int64        `json:"user_id"`
	Permissions []Permission `json:"permissions"`
	IsPrimary   bool         `json:"is_primary"`
	GrantedBy   int64        `json:"granted_by"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// HasPermission applies the dominance rule: a primary grant passes every
// permission check regardless of its stored set.
func (g *Grant) HasPermission(p Permission) bool {
	if g.IsPrimary {
		return true
	}
	for _, perm := range g.Permissions {
		if perm == p {
			return true
		}
	}
	return false
}

// EffectivePermissions is the set permission checks actually see.
func (g *Grant) EffectivePermissions() []Permission {
	if g.IsPrimary {
		return AllPermissions()
	}
	return g.Permissions
}

var (
	ErrNilGrant            = internal.NewValidationError("grant is required", internal.ErrCodeInvalidGrant)
	ErrPrimaryExists       = internal.NewConflictError("child already has an active primary guardian", internal.ErrCodePrimaryExists)
	ErrRoleMismatch        = internal.NewConflictError("primary guardian must hold the parent role", internal.ErrCodeRoleMismatch)
	ErrPrimaryNotRemovable = internal.NewConflictError("primary guardianship must be transferred, not removed", internal.ErrCodePrimaryNotRemovable)
	ErrDuplicateGrant      = internal.NewConflictError("user already has a grant for this child", internal.ErrCodeDuplicateGrant)
)

// RoleParent is the role tag required to hold primary guardianship.
const RoleParent = "PARENT"

func hasParentRole(roles []string) bool {
	for _, r := range roles {
		if r == RoleParent {
			return true
		}
	}
	return false
}

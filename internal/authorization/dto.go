package authorization

import (
	"github.com/kidsafe/access-management/internal"
)

type AddGrantDTO struct {
	UserID      int64    `json:"user_id"`
	Permissions []string `json:"permissions"`
	IsPrimary   bool     `json:"is_primary"`
}

// Validate parses the requested permission names into the fixed enum.
func (d AddGrantDTO) Validate() ([]Permission, error) {
	if d.UserID == 0 {
		return nil, internal.NewValidationError("user_id is required", internal.ErrCodeValidationFailed)
	}
	perms := make([]Permission, 0, len(d.Permissions))
	for _, raw := range d.Permissions {
		p, err := ParsePermission(raw)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, nil
}

type TransferPrimaryDTO struct {
	UserID int64 `json:"user_id"`
}

func (d TransferPrimaryDTO) Validate() error {
	if d.UserID == 0 {
		return internal.NewValidationError("user_id is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

// GrantView is the transport shape for listing a child's authorized users.
// It exposes the effective permission set, not the stored one.
type GrantView struct {
	ID          int64    `json:"id"`
	ChildID     int64    `json:"child_id"`
	UserID      int64    `json:"user_id"`
	Permissions []string `json:"permissions"`
	IsPrimary   bool     `json:"is_primary"`
	IsActive    bool     `json:"is_active"`
}

func (g *Grant) ToView() GrantView {
	effective := g.EffectivePermissions()
	perms := make([]string, len(effective))
	for i, p := range effective {
		perms[i] = string(p)
	}
	return GrantView{
		ID:          g.ID,
		ChildID:     g.ChildID,
		UserID:      g.UserID,
		Permissions: perms,
		IsPrimary:   g.IsPrimary,
		IsActive:    g.IsActive,
	}
}

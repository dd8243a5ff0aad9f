package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/authorization"
	childDatamodel "github.com/kidsafe/access-management/internal/core/datamodel/child"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

// ChildExists treats soft-deleted children as absent.
func (r *Repository) ChildExists(childID int64) error {
	var count int64
	err := r.db.Model(&childDatamodel.Child{}).
		Where("id = ? AND is_deleted = ?", childID, false).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return internal.ErrChildNotFound
	}
	return nil
}

func (r *Repository) LoadGrants(childID int64) ([]*authorization.Grant, error) {
	var rows []childDatamodel.AuthorizedUser
	err := r.db.Where("child_id = ?", childID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	grants := make([]*authorization.Grant, len(rows))
	for i, row := range rows {
		grants[i] = toDomain(row)
	}
	return grants, nil
}

func (r *Repository) GetUserRoles(userID int64) ([]string, error) {
	var count int64
	if err := r.db.Table("users").Where("id = ?", userID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, internal.ErrUserNotFound
	}

	query := `SELECT r.name
	          FROM roles r
	          JOIN user_roles ur ON r.id = ur.role_id
	          WHERE ur.user_id = ?`

	rows, err := r.db.Raw(query, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

func (r *Repository) CreateGrant(g *authorization.Grant) error {
	row := toRow(g)
	if err := r.db.Create(&row).Error; err != nil {
		return err
	}
	g.ID = row.ID
	g.CreatedAt = row.CreatedAt
	g.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *Repository) DeleteGrant(grantID int64) error {
	res := r.db.Where("id = ?", grantID).Delete(&childDatamodel.AuthorizedUser{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrGrantNotFound
	}
	return nil
}

// SaveGrants writes the full grant set back in one transaction so a primary
// transfer's demote and promote land together or not at all.
func (r *Repository) SaveGrants(grants []*authorization.Grant) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, g := range grants {
			res := tx.Model(&childDatamodel.AuthorizedUser{}).
				Where("id = ?", g.ID).
				Updates(map[string]interface{}{
					"permissions": authorization.EncodePermissions(g.Permissions),
					"is_primary":  g.IsPrimary,
					"is_active":   g.IsActive,
					"updated_at":  now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return internal.ErrGrantNotFound
			}
		}
		return nil
	})
}

// DeactivateGrantsForChild flips every grant inactive; used when a child is
// soft-deleted.
func (r *Repository) DeactivateGrantsForChild(childID int64) (int64, error) {
	res := r.db.Model(&childDatamodel.AuthorizedUser{}).
		Where("child_id = ? AND is_active = ?", childID, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *Repository) GetGrant(grantID int64) (*authorization.Grant, error) {
	var row childDatamodel.AuthorizedUser
	err := r.db.Where("id = ?", grantID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrGrantNotFound
		}
		return nil, err
	}
	return toDomain(row), nil
}

func toDomain(row childDatamodel.AuthorizedUser) *authorization.Grant {
	return &authorization.Grant{
		ID:          row.ID,
		ChildID:     row.ChildID,
		UserID:      row.UserID,
		Permissions: authorization.DecodePermissions(row.Permissions),
		IsPrimary:   row.IsPrimary,
		GrantedBy:   row.GrantedBy,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func toRow(g *authorization.Grant) childDatamodel.AuthorizedUser {
	return childDatamodel.AuthorizedUser{
		ID:          g.ID,
		ChildID:     g.ChildID,
		UserID:      g.UserID,
		Permissions: authorization.EncodePermissions(g.Permissions),
		IsPrimary:   g.IsPrimary,
		GrantedBy:   g.GrantedBy,
		IsActive:    g.IsActive,
	}
}

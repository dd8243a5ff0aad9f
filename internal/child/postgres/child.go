package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/child"
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

func (r *Repository) Create(c *child.Child) error {
	row := toRow(c)
	if err := r.db.Create(&row).Error; err != nil {
		return err
	}
	c.ID = row.ID
	c.CreatedAt = row.CreatedAt
	c.UpdatedAt = row.UpdatedAt
	return nil
}

// GetByID excludes soft-deleted rows; a deleted child is absent everywhere
// except the sweep queries.
func (r *Repository) GetByID(id int64) (*child.Child, error) {
	var row childDatamodel.Child
	err := r.db.Where("id = ? AND is_deleted = ?", id, false).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrChildNotFound
		}
		return nil, err
	}
	return toDomain(row), nil
}

func (r *Repository) Update(c *child.Child) error {
	res := r.db.Model(&childDatamodel.Child{}).
		Where("id = ? AND is_deleted = ?", c.ID, false).
		Updates(map[string]interface{}{
			"name":         c.Name,
			"birth_date":   c.BirthDate,
			"avatar_emoji": c.AvatarEmoji,
			"pin_hash":     c.PinHash,
			"pin_enabled":  c.PinEnabled,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrChildNotFound
	}
	return nil
}

func (r *Repository) SoftDelete(id int64, at time.Time) error {
	res := r.db.Model(&childDatamodel.Child{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": at,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrChildNotFound
	}
	return nil
}

// ListForUser returns children the user holds an active grant for.
func (r *Repository) ListForUser(userID int64) ([]*child.Child, error) {
	var rows []childDatamodel.Child
	err := r.db.
		Joins("JOIN child_authorized_users cau ON cau.child_id = children.id").
		Where("cau.user_id = ? AND cau.is_active = ? AND children.is_deleted = ?", userID, true, false).
		Order("children.created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	children := make([]*child.Child, len(rows))
	for i, row := range rows {
		children[i] = toDomain(row)
	}
	return children, nil
}

func toDomain(row childDatamodel.Child) *child.Child {
	return &child.Child{
		ID:          row.ID,
		Name:        row.Name,
		BirthDate:   row.BirthDate,
		AvatarEmoji: row.AvatarEmoji,
		PinHash:     row.PinHash,
		PinEnabled:  row.PinEnabled,
		IsDeleted:   row.IsDeleted,
		DeletedAt:   row.DeletedAt,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func toRow(c *child.Child) childDatamodel.Child {
	return childDatamodel.Child{
		ID:          c.ID,
		Name:        c.Name,
		BirthDate:   c.BirthDate,
		AvatarEmoji: c.AvatarEmoji,
		PinHash:     c.PinHash,
		PinEnabled:  c.PinEnabled,
		IsDeleted:   c.IsDeleted,
		DeletedAt:   c.DeletedAt,
	}
}

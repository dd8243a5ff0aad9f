package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/kidsafe/access-management/internal"
	userDatamodel "github.com/kidsafe/access-management/internal/core/datamodel/user"
	"github.com/kidsafe/access-management/internal/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Create(u *user.User) error {
	row := userDatamodel.User{
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
	}
	if err := r.db.Create(&row).Error; err != nil {
		return err
	}
	u.ID = row.ID
	u.CreatedAt = row.CreatedAt
	u.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *Repository) GetByID(userID int64) (*user.User, error) {
	var row userDatamodel.User
	err := r.db.Where("id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return toDomain(row), nil
}

func (r *Repository) GetByEmail(email string) (*user.User, error) {
	var row userDatamodel.User
	err := r.db.Where("email = ?", email).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return toDomain(row), nil
}

func (r *Repository) GetRoles(userID int64) ([]string, error) {
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

// AddRole links the user to the named role, creating the role row on first
// use so seeding order never matters.
func (r *Repository) AddRole(userID int64, role string, grantedBy *int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var roleRow userDatamodel.Role
		err := tx.Where("name = ?", role).First(&roleRow).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			roleRow = userDatamodel.Role{Name: role}
			err = tx.Create(&roleRow).Error
		}
		if err != nil {
			return err
		}

		link := userDatamodel.UserRole{
			UserID:    userID,
			RoleID:    roleRow.ID,
			GrantedBy: grantedBy,
		}
		return tx.Create(&link).Error
	})
}

func (r *Repository) RemoveRole(userID int64, role string) error {
	return r.db.
		Where("user_id = ? AND role_id IN (SELECT id FROM roles WHERE name = ?)", userID, role).
		Delete(&userDatamodel.UserRole{}).Error
}

func (r *Repository) SetActive(userID int64, active bool) error {
	res := r.db.Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

func toDomain(row userDatamodel.User) *user.User {
	return &user.User{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		IsActive:     row.IsActive,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

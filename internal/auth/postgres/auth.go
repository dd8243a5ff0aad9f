package postgres

import (
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/auth"
	userDatamodel "github.com/kidsafe/access-management/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetUserForLogin(email string) (*auth.UserAccount, error) {
	acct := auth.UserAccount{}
	query := `SELECT id, email, name, password_hash, is_active FROM users WHERE email = ?`

	row := r.db.Raw(query, email).Row()
	if err := row.Scan(&acct.ID, &acct.Email, &acct.Name, &acct.PasswordHash, &acct.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}

	roles, err := r.getRoles(acct.ID)
	if err != nil {
		return nil, err
	}
	acct.Roles = roles
	return &acct, nil
}

func (r *Repository) GetUserByID(userID int64) (*auth.UserAccount, error) {
	acct := auth.UserAccount{}
	query := `SELECT id, email, name, password_hash, is_active FROM users WHERE id = ?`

	row := r.db.Raw(query, userID).Row()
	if err := row.Scan(&acct.ID, &acct.Email, &acct.Name, &acct.PasswordHash, &acct.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}

	roles, err := r.getRoles(acct.ID)
	if err != nil {
		return nil, err
	}
	acct.Roles = roles
	return &acct, nil
}

func (r *Repository) getRoles(userID int64) ([]string, error) {
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

func (r *Repository) GetRefreshCredential(userID int64) (*auth.RefreshCredential, error) {
	var row userDatamodel.RefreshCredential
	err := r.db.Where("user_id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrInvalidToken
		}
		return nil, err
	}
	return &auth.RefreshCredential{
		UserID:    row.UserID,
		Secret:    row.Secret,
		ExpiresAt: row.ExpiresAt,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// ReplaceRefreshCredential unconditionally overwrites the user's single
// refresh row; used at login.
func (r *Repository) ReplaceRefreshCredential(userID int64, secret string, expiresAt time.Time) error {
	now := time.Now()
	row := userDatamodel.RefreshCredential{
		UserID:    userID,
		Secret:    secret,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"secret":     secret,
			"expires_at": expiresAt,
			"updated_at": now,
		}),
	}).Create(&row).Error
}

// RotateRefreshCredential overwrites the row only when it still holds the
// presented secret and is unexpired. The conditional UPDATE makes the
// read-compare-overwrite atomic per user; a lost race rotates nothing.
func (r *Repository) RotateRefreshCredential(userID int64, presented, newSecret string, expiresAt time.Time) error {
	now := time.Now()
	res := r.db.Model(&userDatamodel.RefreshCredential{}).
		Where("user_id = ? AND secret = ? AND expires_at > ?", userID, presented, now).
		Updates(map[string]interface{}{
			"secret":     newSecret,
			"expires_at": expiresAt,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrInvalidToken
	}
	return nil
}

func (r *Repository) DeleteRefreshCredential(userID int64) error {
	return r.db.Where("user_id = ?", userID).Delete(&userDatamodel.RefreshCredential{}).Error
}

// DeleteExpiredRefreshCredentials is the hygiene sweep: rows past expiry.
func (r *Repository) DeleteExpiredRefreshCredentials(now time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", now).Delete(&userDatamodel.RefreshCredential{})
	return res.RowsAffected, res.Error
}

// DeleteStaleRefreshCredentials prunes rows not rotated since the cutoff.
func (r *Repository) DeleteStaleRefreshCredentials(cutoff time.Time) (int64, error) {
	res := r.db.Where("updated_at < ?", cutoff).Delete(&userDatamodel.RefreshCredential{})
	return res.RowsAffected, res.Error
}

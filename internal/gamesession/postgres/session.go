package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kidsafe/access-management/internal"
	childDatamodel "github.com/kidsafe/access-management/internal/core/datamodel/child"
	"github.com/kidsafe/access-management/internal/gamesession"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Create(s *gamesession.Session) error {
	row := toRow(s)
	if err := r.db.Create(&row).Error; err != nil {
		return err
	}
	s.ID = row.ID
	s.CreatedAt = row.CreatedAt
	return nil
}

// GetByToken fails with the generic token error; a probing client cannot
// distinguish an unknown token from a dead one.
func (r *Repository) GetByToken(token string) (*gamesession.Session, error) {
	var row childDatamodel.GameSession
	err := r.db.Where("session_token = ?", token).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrInvalidToken
		}
		return nil, err
	}
	return toDomain(row), nil
}

func (r *Repository) GetByID(id int64) (*gamesession.Session, error) {
	var row childDatamodel.GameSession
	err := r.db.Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.NewNotFoundError("Session not found", internal.ErrCodeSessionInvalid)
		}
		return nil, err
	}
	return toDomain(row), nil
}

func (r *Repository) Update(s *gamesession.Session) error {
	res := r.db.Model(&childDatamodel.GameSession{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"expires_at":   s.ExpiresAt,
			"is_active":    s.IsActive,
			"last_used_at": s.LastUsedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.NewNotFoundError("Session not found", internal.ErrCodeSessionInvalid)
	}
	return nil
}

func (r *Repository) ListActiveForChild(childID int64) ([]*gamesession.Session, error) {
	var rows []childDatamodel.GameSession
	err := r.db.Where("child_id = ? AND is_active = ?", childID, true).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	sessions := make([]*gamesession.Session, len(rows))
	for i, row := range rows {
		sessions[i] = toDomain(row)
	}
	return sessions, nil
}

// DeactivateExpired flips active flags on sessions past expiry; rows stay
// for auditing until the purge sweep removes them.
func (r *Repository) DeactivateExpired(now time.Time) (int64, error) {
	res := r.db.Model(&childDatamodel.GameSession{}).
		Where("is_active = ? AND expires_at < ?", true, now).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// DeleteExpiredBefore hard-deletes long-expired rows.
func (r *Repository) DeleteExpiredBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("expires_at < ?", cutoff).Delete(&childDatamodel.GameSession{})
	return res.RowsAffected, res.Error
}

// TerminateSessionsForChild is the soft-delete cascade hook.
func (r *Repository) TerminateSessionsForChild(childID int64) (int64, error) {
	res := r.db.Model(&childDatamodel.GameSession{}).
		Where("child_id = ? AND is_active = ?", childID, true).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

func toDomain(row childDatamodel.GameSession) *gamesession.Session {
	return &gamesession.Session{
		ID:         row.ID,
		Token:      row.SessionToken,
		ChildID:    row.ChildID,
		UserID:     row.UserID,
		ExpiresAt:  row.ExpiresAt,
		IsActive:   row.IsActive,
		LastUsedAt: row.LastUsedAt,
		CreatedAt:  row.CreatedAt,
	}
}

func toRow(s *gamesession.Session) childDatamodel.GameSession {
	return childDatamodel.GameSession{
		ID:           s.ID,
		SessionToken: s.Token,
		ChildID:      s.ChildID,
		UserID:       s.UserID,
		ExpiresAt:    s.ExpiresAt,
		IsActive:     s.IsActive,
		LastUsedAt:   s.LastUsedAt,
	}
}

package child

import "time"

// Child is soft-deleted only; grants reference it, so rows are never removed.
type Child struct {
	ID          int64      `gorm:"primaryKey"`
	Name        string     `gorm:"column:name;not null"`
	BirthDate   *time.Time `gorm:"column:birth_date"`
	AvatarEmoji string     `gorm:"column:avatar_emoji"`
	PinHash     string     `gorm:"column:pin_hash"`
	PinEnabled  bool       `gorm:"column:pin_enabled;default:false"`
	IsDeleted   bool       `gorm:"column:is_deleted;default:false"`
	DeletedAt   *time.Time `gorm:"column:deleted_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;default:now()"`
}

func (Child) TableName() string {
	return "children"
}

// AuthorizedUser is a grant row: one (child, user) authorization with its
// permission set and the primary-guardian flag. The owning side is the grant;
// a child's view of its grants is always a query, never a live collection.
type AuthorizedUser struct {
	ID          int64     `gorm:"primaryKey"`
	ChildID     int64     `gorm:"column:child_id;not null;uniqueIndex:idx_child_user"`
	UserID      int64     `gorm:"column:user_id;not null;uniqueIndex:idx_child_user"`
	Permissions string    `gorm:"column:permissions"`
	IsPrimary   bool      `gorm:"column:is_primary;default:false"`
	GrantedBy   int64     `gorm:"column:granted_by"`
	IsActive    bool      `gorm:"column:is_active;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt   time.Time `gorm:"column:updated_at;default:now()"`
}

func (AuthorizedUser) TableName() string {
	return "child_authorized_users"
}

// GameSession holds all session state server-side; the token itself is opaque.
type GameSession struct {
	ID           int64      `gorm:"primaryKey"`
	SessionToken string     `gorm:"column:session_token;uniqueIndex;not null"`
	ChildID      int64      `gorm:"column:child_id;not null"`
	UserID       int64      `gorm:"column:user_id;not null"`
	ExpiresAt    time.Time  `gorm:"column:expires_at;not null"`
	IsActive     bool       `gorm:"column:is_active;default:true"`
	LastUsedAt   *time.Time `gorm:"column:last_used_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;default:now()"`
}

func (GameSession) TableName() string {
	return "game_sessions"
}

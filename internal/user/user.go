package user

import (
	"time"
)

// Role tags carried in bearer-token claims. New accounts start as PENDING
// until an admin assigns a real role; only PARENT holders can become a
// child's primary guardian.
const (
	RolePending   = "PENDING"
	RoleParent    = "PARENT"
	RoleTherapist = "THERAPIST"
	RoleTeacher   = "TEACHER"
	RoleAdmin     = "ADMIN"
)

func ValidRole(name string) bool {
	switch name {
	case RolePending, RoleParent, RoleTherapist, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

func (u *User) IsActiveUser() bool {
	return u.IsActive
}

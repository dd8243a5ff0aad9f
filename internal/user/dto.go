package user

import (
	"time"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/core/common/validation"
)

type RegisterDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (d RegisterDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("email", d.Email).Required().Email()
	v.Field("password", d.Password).Required().MinLength(8)
	v.Field("name", d.Name).Required().MaxLength(100)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type AssignRoleDTO struct {
	Role string `json:"role"`
}

func (d AssignRoleDTO) Validate() error {
	if !ValidRole(d.Role) {
		return internal.NewValidationError("unknown role: "+d.Role, internal.ErrCodeValidationFailed)
	}
	return nil
}

type UserView struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	Roles     []string  `json:"roles,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToView() UserView {
	return UserView{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		IsActive:  u.IsActive,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt,
	}
}

package child

import (
	"time"

	"github.com/kidsafe/access-management/internal/core/common/validation"
)

type CreateChildDTO struct {
	Name        string     `json:"name"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	AvatarEmoji string     `json:"avatar_emoji,omitempty"`
}

func (d CreateChildDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("name", d.Name).Required().MaxLength(100)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type UpdateChildDTO struct {
	Name        string     `json:"name,omitempty"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	AvatarEmoji string     `json:"avatar_emoji,omitempty"`
}

func (d UpdateChildDTO) Validate() error {
	if d.Name == "" {
		return nil
	}
	v := validation.NewValidator()
	v.Field("name", d.Name).MaxLength(100)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// SetPinDTO carries the raw PIN; it is hashed before storage and the raw
// value is never logged.
type SetPinDTO struct {
	Pin string `json:"pin"`
}

func (d SetPinDTO) Validate() error {
	if d.Pin == "" {
		return ErrPinRequired
	}
	v := validation.NewValidator()
	v.Field("pin", d.Pin).Digits().MinLength(4).MaxLength(8)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type VerifyPinDTO struct {
	Pin string `json:"pin"`
}

func (d VerifyPinDTO) Validate() error {
	if d.Pin == "" {
		return ErrPinRequired
	}
	return nil
}

type ChildView struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	AvatarEmoji string     `json:"avatar_emoji,omitempty"`
	PinEnabled  bool       `json:"pin_enabled"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (c *Child) ToView() ChildView {
	return ChildView{
		ID:          c.ID,
		Name:        c.Name,
		BirthDate:   c.BirthDate,
		AvatarEmoji: c.AvatarEmoji,
		PinEnabled:  c.PinEnabled,
		CreatedAt:   c.CreatedAt,
	}
}

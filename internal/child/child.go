package child

import (
	"time"

	"github.com/kidsafe/access-management/internal"
)

// Child is the guarded subject: every grant and game session points at one.
// Rows are soft-deleted only, because grants keep referencing them.
type Child struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	AvatarEmoji string     `json:"avatar_emoji,omitempty"`
	PinHash     string     `json:"-"`
	PinEnabled  bool       `json:"pin_enabled"`
	IsDeleted   bool       `json:"-"`
	DeletedAt   *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

var (
	ErrPinRequired      = internal.NewValidationError("pin is required", internal.ErrCodeInvalidPin)
	ErrPinNotConfigured = internal.NewConflictError("no PIN configured for this child", internal.ErrCodePinNotConfigured)
)

// SetPin stores the hashed PIN and enables the gate.
func (c *Child) SetPin(rawPin string, hasher PinHasher) error {
	if rawPin == "" {
		return ErrPinRequired
	}
	hash, err := hasher.Hash(rawPin)
	if err != nil {
		return internal.NewInternalError("failed to hash pin", err)
	}
	c.PinHash = hash
	c.PinEnabled = true
	return nil
}

// VerifyPin reports whether the candidate matches the stored PIN. A mismatch
// is a normal boolean outcome, not an error; a disabled or unset PIN never
// matches anything.
func (c *Child) VerifyPin(rawPin string, hasher PinHasher) bool {
	if !c.PinEnabled || c.PinHash == "" {
		return false
	}
	return hasher.Matches(rawPin, c.PinHash)
}

// EnablePin re-enables a previously configured PIN.
func (c *Child) EnablePin() error {
	if c.PinHash == "" {
		return ErrPinNotConfigured
	}
	c.PinEnabled = true
	return nil
}

// DisablePin turns the gate off but keeps the stored hash.
func (c *Child) DisablePin() {
	c.PinEnabled = false
}

// RemovePin clears the stored hash and disables the gate.
func (c *Child) RemovePin() {
	c.PinHash = ""
	c.PinEnabled = false
}

package user

import (
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/kidsafe/access-management/internal"
)

type Repository interface {
	Create(u *User) error
	GetByID(userID int64) (*User, error)
	GetByEmail(email string) (*User, error)
	GetRoles(userID int64) ([]string, error)
	AddRole(userID int64, role string, grantedBy *int64) error
	RemoveRole(userID int64, role string) error
	SetActive(userID int64, active bool) error
}

var ErrEmailTaken = internal.NewConflictError("email is already registered", internal.ErrCodeValidationFailed)

type Service struct {
	repo       Repository
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo Repository, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register creates an account with the PENDING role. Email is case-folded so
// the unique index catches re-registration under different casing.
func (s *Service) Register(dto RegisterDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(dto.Email))
	if existing, err := s.repo.GetByEmail(email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	u := &User{
		Email:        email,
		Name:         dto.Name,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.repo.Create(u); err != nil {
		return nil, internal.NewInternalError("failed to create user", err)
	}

	if err := s.repo.AddRole(u.ID, RolePending, nil); err != nil {
		return nil, internal.NewInternalError("failed to assign default role", err)
	}
	u.Roles = []string{RolePending}

	s.logger.Info("user registered", "user_id", u.ID)
	return u, nil
}

func (s *Service) GetByID(userID int64) (*User, error) {
	u, err := s.repo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	roles, err := s.repo.GetRoles(userID)
	if err != nil {
		return nil, internal.NewInternalError("failed to get user roles", err)
	}
	u.Roles = roles
	return u, nil
}

// AssignRole replaces PENDING with the first real role and adds further
// roles alongside it.
func (s *Service) AssignRole(userID int64, dto AssignRoleDTO, grantedBy int64) (*User, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	u, err := s.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if u.HasRole(dto.Role) {
		return u, nil
	}

	if err := s.repo.AddRole(userID, dto.Role, &grantedBy); err != nil {
		return nil, internal.NewInternalError("failed to assign role", err)
	}
	if dto.Role != RolePending && u.HasRole(RolePending) {
		if err := s.repo.RemoveRole(userID, RolePending); err != nil {
			return nil, internal.NewInternalError("failed to clear pending role", err)
		}
	}

	return s.GetByID(userID)
}

func (s *Service) RemoveRole(userID int64, role string) (*User, error) {
	u, err := s.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if !u.HasRole(role) {
		return u, nil
	}

	if err := s.repo.RemoveRole(userID, role); err != nil {
		return nil, internal.NewInternalError("failed to remove role", err)
	}
	return s.GetByID(userID)
}

// Deactivate blocks login without deleting the account; grants referencing
// the user stay intact.
func (s *Service) Deactivate(userID int64) error {
	if _, err := s.repo.GetByID(userID); err != nil {
		return err
	}
	if err := s.repo.SetActive(userID, false); err != nil {
		return internal.NewInternalError("failed to deactivate user", err)
	}
	return nil
}

func (s *Service) Activate(userID int64) error {
	if _, err := s.repo.GetByID(userID); err != nil {
		return err
	}
	if err := s.repo.SetActive(userID, true); err != nil {
		return internal.NewInternalError("failed to activate user", err)
	}
	return nil
}

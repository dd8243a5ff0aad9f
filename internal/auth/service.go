package auth

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kidsafe/access-management/internal"
)

// Service is the main auth service with dependencies
type Service struct {
	repo       RepositoryAPI
	tokenGen   TokenGeneratorAPI
	bcryptCost int
	refreshTTL time.Duration
}

func NewService(repo RepositoryAPI, tokenGen TokenGeneratorAPI, bcryptCost int, refreshTTL time.Duration) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		tokenGen:   tokenGen,
		bcryptCost: bcryptCost,
		refreshTTL: refreshTTL,
	}
}

// Authenticate validates credentials, issues a bearer token and records a
// fresh rotating refresh secret for the user (create-or-replace).
func (s *Service) Authenticate(dto LoginDTO) (int64, AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return 0, AuthTokens{}, err
	}

	email := strings.ToLower(strings.TrimSpace(dto.Email))

	acct, err := s.repo.GetUserForLogin(email)
	if err != nil {
		return 0, AuthTokens{}, internal.ErrInvalidCredentials
	}
	if !acct.IsActive {
		return 0, AuthTokens{}, internal.ErrUserInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(dto.Password)); err != nil {
		return 0, AuthTokens{}, internal.ErrInvalidCredentials
	}

	tokens, err := s.issueTokensFor(acct)
	if err != nil {
		return 0, AuthTokens{}, err
	}

	if err := s.repo.ReplaceRefreshCredential(acct.ID, tokens.RefreshToken, tokens.RefreshExpiresAt); err != nil {
		return 0, AuthTokens{}, internal.NewInternalError("failed to store refresh credential", err)
	}

	return acct.ID, tokens, nil
}

// Refresh rotates the stored refresh secret and issues a new bearer token.
// A stale or non-matching presented secret never mutates stored state, so an
// attacker cannot race a legitimate rotation into a lockout.
func (s *Service) Refresh(userID int64, presented string) (AuthTokens, error) {
	cred, err := s.repo.GetRefreshCredential(userID)
	if err != nil {
		return AuthTokens{}, internal.ErrInvalidToken
	}

	now := time.Now()
	if cred.IsExpired(now) {
		return AuthTokens{}, internal.ErrTokenExpired
	}
	if !cred.Matches(presented) {
		return AuthTokens{}, internal.ErrInvalidToken
	}

	acct, err := s.repo.GetUserByID(userID)
	if err != nil {
		return AuthTokens{}, internal.ErrInvalidToken
	}
	if !acct.IsActive {
		return AuthTokens{}, internal.ErrUserInactive
	}

	tokens, err := s.issueTokensFor(acct)
	if err != nil {
		return AuthTokens{}, err
	}

	// Conditional overwrite: the store only rotates if the row still holds the
	// presented secret and is unexpired. A concurrent rotation wins cleanly.
	if err := s.repo.RotateRefreshCredential(userID, presented, tokens.RefreshToken, tokens.RefreshExpiresAt); err != nil {
		return AuthTokens{}, err
	}

	return tokens, nil
}

func (s *Service) issueTokensFor(acct *UserAccount) (AuthTokens, error) {
	accessToken, err := s.tokenGen.GenerateAccessToken(TokenPrincipal{
		UserID: acct.ID,
		Email:  acct.Email,
		Name:   acct.Name,
		Roles:  acct.Roles,
	})
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign access token", err)
	}

	secret, err := GenerateRandomToken()
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to generate refresh secret", err)
	}

	return AuthTokens{
		AccessToken:      accessToken,
		RefreshToken:     secret,
		RefreshExpiresAt: time.Now().Add(s.refreshTTL),
	}, nil
}

// ValidateAccessToken verifies the bearer token and returns its claims.
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.tokenGen.ValidateToken(tokenString)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}

// Logout drops the user's refresh credential; the bearer token simply ages out.
func (s *Service) Logout(userID int64) error {
	return s.repo.DeleteRefreshCredential(userID)
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// SweepExpiredRefreshCredentials removes rows past their expiry. Idempotent;
// invoked by the external sweep trigger.
func (s *Service) SweepExpiredRefreshCredentials(now time.Time) (int64, error) {
	return s.repo.DeleteExpiredRefreshCredentials(now)
}

// SweepStaleRefreshCredentials removes rows untouched since the cutoff,
// pruning abandoned sessions. Independent of the expiry sweep.
func (s *Service) SweepStaleRefreshCredentials(cutoff time.Time) (int64, error) {
	return s.repo.DeleteStaleRefreshCredentials(cutoff)
}

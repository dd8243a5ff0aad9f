package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TokenPrincipal is the projection handed to the signer. It deliberately
// carries only what the bearer token embeds; the full domain user never
// crosses into the claims format.
type TokenPrincipal struct {
	UserID int64
	Email  string
	Name   string
	Roles  []string
}

// Claims is the verified view of a bearer token body.
type Claims struct {
	UserID int64
	Email  string
	Name   string
	Roles  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// UserAccount is the internal account view used by the auth service.
type UserAccount struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	Roles        []string
}

// RefreshCredential mirrors the single rotating row stored per user.
type RefreshCredential struct {
	UserID    int64
	Secret    string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type AuthTokens struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

type ServiceAPI interface {
	Authenticate(dto LoginDTO) (int64, AuthTokens, error)
	Refresh(userID int64, presented string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	Logout(userID int64) error
	HashPassword(password string) (string, error)
}

type RepositoryAPI interface {
	GetUserForLogin(email string) (*UserAccount, error)
	GetUserByID(userID int64) (*UserAccount, error)
	GetRefreshCredential(userID int64) (*RefreshCredential, error)
	ReplaceRefreshCredential(userID int64, secret string, expiresAt time.Time) error
	RotateRefreshCredential(userID int64, presented, newSecret string, expiresAt time.Time) error
	DeleteRefreshCredential(userID int64) error
	DeleteExpiredRefreshCredentials(now time.Time) (int64, error)
	DeleteStaleRefreshCredentials(cutoff time.Time) (int64, error)
}

type TokenGeneratorAPI interface {
	GenerateAccessToken(principal TokenPrincipal) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Signer verification failures. ErrInvalidClaim covers a required claim that
// is absent or wrong-typed; ErrSignature covers any other verification
// failure, so a forged token is indistinguishable from a corrupted one.
var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")
	ErrInvalidClaim   = errors.New("token claim missing or invalid")
	ErrSignature      = errors.New("token signature verification failed")
)

// TokenGenerator issues and validates bearer tokens carrying the identity
// claims, built on the generic Signer.
type TokenGenerator struct {
	signer    *Signer
	accessTTL time.Duration
}

func NewTokenGenerator(signer *Signer, accessTTL time.Duration) *TokenGenerator {
	return &TokenGenerator{
		signer:    signer,
		accessTTL: accessTTL,
	}
}

func (g *TokenGenerator) GenerateAccessToken(p TokenPrincipal) (string, error) {
	return g.signer.Issue(map[string]any{
		"user_id": strconv.FormatInt(p.UserID, 10),
		"email":   p.Email,
		"name":    p.Name,
		"roles":   p.Roles,
	}, g.accessTTL)
}

// ValidateToken verifies the signature first, then types the claim map into
// Claims. The body is untrusted input until Verify returns.
func (g *TokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	body, err := g.signer.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	rawID, ok := body["user_id"].(string)
	if !ok {
		return nil, ErrInvalidClaim
	}
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: user_id %q", ErrInvalidClaim, rawID)
	}

	email, ok := body["email"].(string)
	if !ok {
		return nil, ErrInvalidClaim
	}
	name, ok := body["name"].(string)
	if !ok {
		return nil, ErrInvalidClaim
	}

	rawRoles, ok := body["roles"].([]any)
	if !ok {
		return nil, ErrInvalidClaim
	}
	roles := make([]string, 0, len(rawRoles))
	for _, r := range rawRoles {
		s, ok := r.(string)
		if !ok {
			return nil, ErrInvalidClaim
		}
		roles = append(roles, s)
	}

	claims := &Claims{
		UserID: userID,
		Email:  email,
		Name:   name,
		Roles:  roles,
	}
	if iat, ok := body["iat"].(float64); ok {
		claims.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp, ok := body["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return claims, nil
}

// GenerateRandomToken generates a cryptographically secure random token.
func GenerateRandomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// EncodeRefreshCookie packs the user id alongside the opaque secret so the
// refresh endpoint can locate the single per-user credential row without a
// scan by secret value. The cookie is HTTP-only; neither part reaches script.
func EncodeRefreshCookie(userID int64, secret string) string {
	return strconv.FormatInt(userID, 10) + "." + secret
}

func DecodeRefreshCookie(value string) (int64, string, error) {
	idx := strings.IndexByte(value, '.')
	if idx <= 0 || idx == len(value)-1 {
		return 0, "", ErrTokenMalformed
	}
	userID, err := strconv.ParseInt(value[:idx], 10, 64)
	if err != nil {
		return 0, "", ErrTokenMalformed
	}
	return userID, value[idx+1:], nil
}

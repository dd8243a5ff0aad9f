package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// requiredClaims are the claims every bearer token body must carry.
var requiredClaims = []string{"user_id", "email", "name", "roles"}

// Signer produces and verifies self-contained HMAC-signed tokens carrying an
// arbitrary claim map plus issued-at and expiry timestamps. The key is
// process-wide configuration, loaded once.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Issue signs a token embedding claims, iat and exp. The caller's map is not
// mutated.
func (s *Signer) Issue(claims map[string]any, ttl time.Duration) (string, error) {
	now := time.Now()

	body := jwt.MapClaims{}
	for k, v := range claims {
		body[k] = v
	}
	body["iat"] = now.Unix()
	body["exp"] = now.Add(ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, body)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify re-derives the signature before trusting anything embedded in the
// token, then checks expiry and required-claim presence.
func (s *Signer) Verify(tokenString string) (map[string]any, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrSignature
		}
	}

	body, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrSignature
	}

	for _, name := range requiredClaims {
		if _, present := body[name]; !present {
			return nil, fmt.Errorf("%w: %s", ErrInvalidClaim, name)
		}
	}

	return map[string]any(body), nil
}

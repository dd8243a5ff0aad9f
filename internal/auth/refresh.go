package auth

import (
	"crypto/subtle"
	"time"
)

// IsExpired reports whether the stored credential is past its expiry.
func (c *RefreshCredential) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Matches compares a presented secret against the stored one in constant
// time. Exact match only; there is no partial credit.
func (c *RefreshCredential) Matches(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(c.Secret), []byte(candidate)) == 1
}

package model

import "time"

// IdentityClaims is the decoded Google identity assertion. It is replaced
// wholesale on re-login and never mutated.
type IdentityClaims struct {
	Subject   string `json:"sub"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Picture   string `json:"picture"`
	ExpiresAt int64  `json:"exp"`
}

// Expired reports whether the assertion's expiry has passed. Expired claims
// are invalid and force session termination.
func (c IdentityClaims) Expired(now time.Time) bool {
	return c.ExpiresAt <= now.Unix()
}

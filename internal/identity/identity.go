// Package identity decodes Google identity assertions client-side.
//
// The assertion is only read for display claims and expiry; signature
// verification happens upstream (the token is obtained over TLS directly
// from Google's token endpoint), so the payload is parsed unverified.
package identity

import (
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/journeyapp/journey-client-go/internal/errors"
	"github.com/journeyapp/journey-client-go/internal/model"
)

type googleClaims struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// Decode parses a raw identity assertion into IdentityClaims.
// A malformed token yields a DECODE error; expiry is the caller's check.
func Decode(raw string) (*model.IdentityClaims, error) {
	var claims googleClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return nil, apperrors.Decode(err)
	}

	var exp int64
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Unix()
	}

	return &model.IdentityClaims{
		Subject:   claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		Picture:   claims.Picture,
		ExpiresAt: exp,
	}, nil
}

package jwttoken

import (
	"vcregistry/pkg/platform/middleware/auth"
)

func ToCallerClaims(claims *CallerTokenClaims) *auth.CallerClaims {
	return &auth.CallerClaims{
		Subject: claims.Subject,
		JTI:     claims.ID,
	}
}

// JWTServiceAdapter exposes JWTService as an auth.TokenValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*auth.CallerClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToCallerClaims(claims), nil
}

var _ auth.TokenValidator = (*JWTServiceAdapter)(nil)

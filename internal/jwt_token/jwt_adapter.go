package jwttoken

import (
	"idregistry/internal/platform/middleware"
)

func ToMiddlewareClaims(claims *Claims) (*middleware.JWTClaims, error) {
	principal, err := claims.Principal()
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		Principal: principal,
		JTI:       claims.ID,
	}, nil
}

// JWTServiceAdapter exposes JWTService as a middleware.JWTValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims)
}

package jwttoken

import (
	"pdftrack/internal/platform/middleware"
)

// JWTServiceAdapter satisfies middleware.JWTValidator, so the collector's auth
// middleware never imports the jwt library.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

// ValidateToken checks signature, expiry, issuer and audience, then exposes
// the email and tracking id the token was signed for.
func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		Subject:    claims.Subject,
		TrackingID: claims.TrackingID,
		JTI:        claims.ID,
	}, nil
}

// Package services, business logic katmanını barındırır.
//
// Handler (HTTP) ile Repository (DB) arasında oturan katmandır.
// Tüm iş kuralları burada yaşar:
//   - Token doğrulama
//   - Oda ve yorum kuralları (iki seviyeli thread, yazar kontrolü)
//   - Tepki toggle'ının üç yollu dalı
//
// Service ASLA http.Request/Response bilmez — sadece domain modelleri alır/verir.
// Service ASLA doğrudan SQL çalıştırmaz — Repository interface'i kullanır.
package services

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
)

// AuthService, harici identity provider'ın imzaladığı token'ları doğrular.
//
// Kayıt, login ve refresh akışları bu servisin kapsamı dışındadır —
// provider ile paylaşılan HS256 secret üzerinden sadece doğrulama yapılır.
type AuthService interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

type authService struct {
	jwtSecret []byte
	issuer    string
}

// NewAuthService, constructor.
// issuer boşsa "iss" claim'i kontrol edilmez.
func NewAuthService(jwtSecret, issuer string) AuthService {
	return &authService{
		jwtSecret: []byte(jwtSecret),
		issuer:    issuer,
	}
}

// ValidateAccessToken, JWT'nin imzasını, süresini ve (varsa) issuer'ını doğrular.
func (s *authService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, opts...)

	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", pkg.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", pkg.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", pkg.ErrUnauthorized)
	}

	return claims, nil
}

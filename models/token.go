package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims, harici identity provider'ın imzaladığı JWT'nin payload'ı.
//
// Kullanıcı ID'si standart "sub" claim'inde taşınır (RegisteredClaims.Subject).
// Email ve Name, gönderen görünen adını türetmek için kullanılır.
// Role opsiyoneldir — chat mesajlarında rol etiketi olarak görünür.
type TokenClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"app_role,omitempty"`
	jwt.RegisteredClaims
}

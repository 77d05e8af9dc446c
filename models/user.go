// Package models, uygulamanın domain modellerini (veri yapıları) tanımlar.
//
// Veritabanındaki tabloların ve API'den gelen/giden verilerin Go karşılıkları
// burada yaşar. Service, repository, ws ve client paketlerinin hepsi models'e
// bağımlı olabilir — models hiçbir proje içi pakete bağımlı değildir.
package models

import "strings"

// User, kimliği harici identity provider tarafından doğrulanmış kullanıcı.
//
// Bu serviste kullanıcı tablosu yoktur — kimlik bilgisi her istekte
// JWT claim'lerinden oluşturulur ve request context'inde taşınır.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
}

// UserFromClaims, doğrulanmış token claim'lerinden User oluşturur.
func UserFromClaims(claims *TokenClaims) *User {
	return &User{
		ID:          claims.Subject,
		Email:       strings.TrimSpace(claims.Email),
		DisplayName: strings.TrimSpace(claims.Name),
		Role:        strings.TrimSpace(claims.Role),
	}
}

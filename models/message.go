package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength, bir chat mesajının rune cinsinden üst sınırı.
const MaxMessageLength = 1000

// MaxSenderNameLength, gönderen görünen adının üst sınırı.
const MaxSenderNameLength = 64

// ProvisionalIDPrefix, client tarafında üretilen geçici mesaj ID'lerinin öneki.
// Reconciler bu önekten bir entry'nin henüz sunucu tarafından onaylanmadığını anlar.
const ProvisionalIDPrefix = "temp-"

// Message, bir chat mesajını temsil eder.
// DB'deki "messages" tablosunun Go karşılığı.
//
// SenderName güçlü bir kimlik değildir — profil adından veya e-posta
// önekinden türetilmiş bir görünen addır. Kimlik UserID'dir (token'dan gelir).
// Authoritative hale geldikten sonra mesaj asla değişmez.
type Message struct {
	ID         string    `json:"id"`
	Room       RoomScope `json:"room"`
	FixtureID  *int64    `json:"fixture_id"` // Nullable — global odada nil
	UserID     string    `json:"user_id,omitempty"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Role       *string   `json:"role,omitempty"` // Opsiyonel rol etiketi (ör: "tipster", "admin")
	CreatedAt  time.Time `json:"created_at"`
}

// IsProvisional, mesajın henüz persist edilmemiş (client tarafında üretilmiş) olup olmadığını döner.
func (m *Message) IsProvisional() bool {
	return strings.HasPrefix(m.ID, ProvisionalIDPrefix)
}

// CreateMessageRequest, yeni mesaj gönderme isteği.
// Rol etiketi client'tan alınmaz — token claim'inden gelir.
type CreateMessageRequest struct {
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
}

// Validate, CreateMessageRequest'i normalize eder ve doğrular.
// İçerik trim'lendikten sonra 1-1000 karakter arası olmalı, gönderen adı boş olamaz.
func (r *CreateMessageRequest) Validate() error {
	r.Content = strings.TrimSpace(r.Content)
	r.SenderName = strings.TrimSpace(r.SenderName)

	contentLen := utf8.RuneCountInString(r.Content)
	if contentLen < 1 {
		return fmt.Errorf("message content is required")
	}
	if contentLen > MaxMessageLength {
		return fmt.Errorf("message content must be at most %d characters", MaxMessageLength)
	}

	if r.SenderName == "" {
		return fmt.Errorf("sender name is required")
	}
	if utf8.RuneCountInString(r.SenderName) > MaxSenderNameLength {
		return fmt.Errorf("sender name must be at most %d characters", MaxSenderNameLength)
	}
	return nil
}

// Valid, store sınırından gelen bir satırın (HTTP yanıtı, WS event'i) kullanılabilir
// olup olmadığını kontrol eder. Bozuk satırlar reconciler'a hiç ulaşmaz.
func (m *Message) Valid() error {
	if m.ID == "" {
		return fmt.Errorf("message id is required")
	}
	if m.Room == "" {
		return fmt.Errorf("message %s has no room", m.ID)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("message %s has empty content", m.ID)
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("message %s has no created_at", m.ID)
	}
	return nil
}

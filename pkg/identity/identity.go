// Package identity, mesaj ve yorumlarda gösterilen görünen adı türetir.
//
// Görünen ad güçlü bir kimlik değildir. Öncelik sırası:
// 1. Profil adı (display name)
// 2. E-posta öneki ("ali@example.com" → "ali")
// 3. Kullanıcı ID'sinden türetilen sabit anonim yer tutucu ("Fan-3f9a1c")
package identity

import (
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"
)

// MaxNameLength, türetilen adın rune cinsinden üst sınırı.
const MaxNameLength = 64

// placeholderPrefix, anonim yer tutucu adların öneki.
const placeholderPrefix = "Fan"

// SenderName, profil adı, e-posta ve kullanıcı ID'sinden görünen adı türetir.
// Hiçbiri yoksa "Fan" döner: boş string asla dönmez.
func SenderName(displayName, email, userID string) string {
	if name := strings.TrimSpace(displayName); name != "" {
		return truncate(name)
	}

	if prefix, _, ok := strings.Cut(strings.TrimSpace(email), "@"); ok && prefix != "" {
		return truncate(prefix)
	}

	return Placeholder(userID)
}

// Placeholder, kullanıcı ID'sinden deterministik bir anonim ad üretir.
// Aynı ID her zaman aynı adı verir; ID'nin kendisi ifşa edilmez.
func Placeholder(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return placeholderPrefix
	}

	sum := blake2b.Sum256([]byte(userID))
	return placeholderPrefix + "-" + hex.EncodeToString(sum[:3])
}

func truncate(name string) string {
	if utf8.RuneCountInString(name) <= MaxNameLength {
		return name
	}
	runes := []rune(name)
	return string(runes[:MaxNameLength])
}

package models

import (
	"fmt"
	"time"
)

// ReactionKind, sabit bir tepki kümesinden bir değerdir.
// Serbest emoji yerine küçük bir enum kullanılır — aggregator ve toggle
// kararları bu sayede deterministik kalır.
type ReactionKind string

const (
	ReactionLike  ReactionKind = "like"
	ReactionLove  ReactionKind = "love"
	ReactionLaugh ReactionKind = "laugh"
	ReactionWow   ReactionKind = "wow"
	ReactionSad   ReactionKind = "sad"
	ReactionFire  ReactionKind = "fire"
)

// ReactionKinds, render sırasıyla tüm geçerli tepki türleri.
var ReactionKinds = []ReactionKind{
	ReactionLike, ReactionLove, ReactionLaugh, ReactionWow, ReactionSad, ReactionFire,
}

var reactionEmoji = map[ReactionKind]string{
	ReactionLike:  "👍",
	ReactionLove:  "❤️",
	ReactionLaugh: "😂",
	ReactionWow:   "😮",
	ReactionSad:   "😢",
	ReactionFire:  "🔥",
}

// Valid, kind'ın sabit kümede olup olmadığını döner.
func (k ReactionKind) Valid() bool {
	_, ok := reactionEmoji[k]
	return ok
}

// Emoji, kind'ın gösterim karakteri.
func (k ReactionKind) Emoji() string {
	return reactionEmoji[k]
}

// ParseReactionKind, kind adını ya da emoji'nin kendisini kabul eder.
func ParseReactionKind(raw string) (ReactionKind, error) {
	k := ReactionKind(raw)
	if k.Valid() {
		return k, nil
	}
	for kind, emoji := range reactionEmoji {
		if emoji == raw {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown reaction kind %q", raw)
}

// ReactionTarget, tepkinin bağlı olduğu nesne türü.
// Chat mesajları ve yorumlar aynı şekle sahip iki paralel tabloda tutulur.
type ReactionTarget string

const (
	TargetMessage ReactionTarget = "message"
	TargetComment ReactionTarget = "comment"
)

// ParseReactionTarget, URL path'inden gelen target değerini doğrular.
func ParseReactionTarget(raw string) (ReactionTarget, error) {
	switch ReactionTarget(raw) {
	case TargetMessage, TargetComment:
		return ReactionTarget(raw), nil
	default:
		return "", fmt.Errorf("unknown reaction target %q", raw)
	}
}

// Reaction, bir kullanıcının bir hedefe (mesaj veya yorum) verdiği tek tepki.
//
// UNIQUE(target_id, user_id) constraint'i sayesinde bir kullanıcı bir hedefte
// aynı anda sadece bir tepki türü tutabilir. Yeni tür seçmek eskisinin yerine geçer,
// aynı türü tekrar seçmek tepkiyi kaldırır.
type Reaction struct {
	TargetID  string       `json:"target_id"`
	UserID    string       `json:"user_id"`
	Kind      ReactionKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

// Valid, store sınırından gelen bir reaction satırını doğrular.
func (r *Reaction) Valid() error {
	if r.TargetID == "" || r.UserID == "" {
		return fmt.Errorf("reaction requires target_id and user_id")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("reaction has unknown kind %q", r.Kind)
	}
	return nil
}

// ReactionGroup, bir hedefteki aynı türün toplu görünümü.
// Broadcast payload'larında kullanılır: 👍 3 [user1, user2, user3]
type ReactionGroup struct {
	Kind  ReactionKind `json:"kind"`
	Emoji string       `json:"emoji"`
	Count int          `json:"count"`
	Users []string     `json:"users"`
}

// ToggleAction, üç yollu toggle dalının sonucu.
type ToggleAction string

const (
	ToggleAdded    ToggleAction = "added"    // Tepki yoktu, oluşturuldu
	ToggleReplaced ToggleAction = "replaced" // Başka tür vardı, yerine geçti
	ToggleRemoved  ToggleAction = "removed"  // Aynı tür vardı, kaldırıldı
)

// ToggleResult, sunucu tarafı toggle işleminin sonucu.
type ToggleResult struct {
	Action   ToggleAction    `json:"action"`
	Previous *ReactionKind   `json:"previous,omitempty"`
	Current  *ReactionKind   `json:"current,omitempty"`
	Groups   []ReactionGroup `json:"groups"`
}

// ReactionRequest, upsert/toggle endpoint'lerinin beklediği JSON body.
type ReactionRequest struct {
	Kind string `json:"kind"`
}

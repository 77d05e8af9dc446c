// Package storeclient, client core'un (chat, reactions, comments) konuştuğu
// store sözleşmesini tanımlar.
//
// İki implementasyon vardır:
//   - HTTPStore: oddsroom server'ına REST + WebSocket ile bağlanır
//   - MemoryStore: process içi store: testlerde hata ve status enjeksiyonu için
//
// Store sınırından geçen her satır (HTTP yanıtı, WS event'i) tipli model'e
// decode edilir ve Valid() ile doğrulanır. Bozuk satırlar reddedilir,
// reconciler'a asla ulaşmaz.
package storeclient

import (
	"context"

	"github.com/akinalp/oddsroom/models"
)

// Status, push aboneliğinin durum akışındaki bir sinyal.
type Status string

const (
	StatusConnecting Status = "connecting" // Bağlantı kuruluyor, henüz onay yok
	StatusSubscribed Status = "subscribed" // Server aboneliği onayladı: push teslimatı başladı
	StatusError      Status = "error"      // Abonelik reddedildi veya bağlantı koptu
	StatusClosed     Status = "closed"     // Close() çağrıldı
)

// Subscription, tek bir odanın push aboneliği.
//
// Messages ve Status kanalları abonelik bittiğinde kapanır.
// Close idempotent'tir ve arka plandaki goroutine'ler durana kadar bekler.
type Subscription interface {
	Messages() <-chan models.Message
	Status() <-chan Status
	Close() error
}

// Store, client core'un dış dünyadaki tek otoritesi.
//
// Kimlik parametre olarak verilmez: HTTPStore bearer token'dan,
// MemoryStore bağlı kullanıcıdan alır.
type Store interface {
	FetchMessages(ctx context.Context, room models.RoomScope, limit int) ([]models.Message, error)
	InsertMessage(ctx context.Context, room models.RoomScope, senderName, content string) (*models.Message, error)
	Subscribe(ctx context.Context, room models.RoomScope) (Subscription, error)

	FetchReactions(ctx context.Context, target models.ReactionTarget, ids []string) (map[string][]models.Reaction, error)
	UpsertReaction(ctx context.Context, target models.ReactionTarget, targetID string, kind models.ReactionKind) error
	DeleteReaction(ctx context.Context, target models.ReactionTarget, targetID string) error

	FetchComments(ctx context.Context, fixtureID int64) ([]models.Comment, error)
	InsertComment(ctx context.Context, fixtureID int64, content string, parentID *string) (*models.Comment, error)
	DeleteComment(ctx context.Context, commentID string) (*models.CommentDeletion, error)
	CommentCounts(ctx context.Context, fixtureIDs []int64) (*models.CommentCounts, error)
}

// validMessages, store'dan gelen mesajları doğrular.
// Tek bir bozuk satır bütün yanıtı reddettirmez: sadece o satır atlanır.
func validMessages(room models.RoomScope, in []models.Message) []models.Message {
	out := make([]models.Message, 0, len(in))
	for _, m := range in {
		if m.Valid() != nil || m.Room != room {
			continue
		}
		out = append(out, m)
	}
	return out
}

func validReactions(in map[string][]models.Reaction) map[string][]models.Reaction {
	out := make(map[string][]models.Reaction, len(in))
	for id, rows := range in {
		kept := make([]models.Reaction, 0, len(rows))
		for _, r := range rows {
			if r.Valid() != nil || r.TargetID != id {
				continue
			}
			kept = append(kept, r)
		}
		out[id] = kept
	}
	return out
}

func validThread(fixtureID int64, in []models.Comment) []models.Comment {
	out := make([]models.Comment, 0, len(in))
	for _, c := range in {
		if c.Valid() != nil || c.FixtureID != fixtureID || c.IsReply() {
			continue
		}
		replies := make([]models.Comment, 0, len(c.Replies))
		for _, r := range c.Replies {
			if r.Valid() != nil || r.ParentID == nil || *r.ParentID != c.ID {
				continue
			}
			replies = append(replies, r)
		}
		c.Replies = replies
		out = append(out, c)
	}
	return out
}

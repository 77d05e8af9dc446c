package repository

import (
	"context"

	"github.com/akinalp/oddsroom/models"
)

// ReactionRepository, tepki veritabanı işlemleri için interface.
//
// Aynı interface iki tabloyu temsil eder: message_reactions ve comment_reactions.
// Hangi tablo kullanılacağı constructor'daki target ile belirlenir.
//
// Tablo PRIMARY KEY (target_id, user_id) taşır — bir kullanıcı bir hedefte
// en fazla bir tepki tutabilir. Upsert bu satırı oluşturur veya kind'ını
// yerinde günceller; Delete satırı kaldırır.
//
// ListByTargetIDs: Birden fazla hedefin ham satırlarını tek sorguda yükler (N+1 önleme).
// Return: map[targetID] → []Reaction. Tepkisi olmayan hedefler map'te bulunmaz.
type ReactionRepository interface {
	Get(ctx context.Context, targetID, userID string) (*models.Reaction, error)
	Upsert(ctx context.Context, targetID, userID string, kind models.ReactionKind) error
	Delete(ctx context.Context, targetID, userID string) (bool, error)
	ListByTargetIDs(ctx context.Context, targetIDs []string) (map[string][]models.Reaction, error)
	GroupsByTargetID(ctx context.Context, targetID string) ([]models.ReactionGroup, error)
}

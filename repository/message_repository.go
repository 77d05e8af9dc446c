package repository

import (
	"context"

	"github.com/akinalp/oddsroom/models"
)

// MessageRepository, chat mesajı veritabanı işlemleri için interface.
//
// ListByRoom: Odanın en yeni limit kadar mesajını created_at ASC sırasıyla döner
// (en eski üstte). Scope filtresi SQL seviyesinde uygulanır — global oda
// "fixture_id IS NULL", fixture odası "fixture_id = ?" ile seçilir.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListByRoom(ctx context.Context, room models.RoomScope, limit int) ([]models.Message, error)
}

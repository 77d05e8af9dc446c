package repository

import (
	"context"

	"github.com/akinalp/oddsroom/models"
)

// CommentRepository, yorum veritabanı işlemleri için interface.
//
// ListByFixture: Fixture'ın tüm yorum ve yanıtlarını düz liste olarak
// created_at ASC sırasıyla döner. İç içe yapı service katmanında kurulur.
//
// Delete: Yorumu siler ve silinen toplam satır sayısını döner.
// parent_id foreign key'i ON DELETE CASCADE olduğu için üst yorum silinince
// yanıtları da silinir — dönen sayı yanıtları da içerir.
//
// CountByFixtures: Sayaç rozetleri için fixture bazlı gerçek satır sayıları.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByFixture(ctx context.Context, fixtureID int64) ([]models.Comment, error)
	Delete(ctx context.Context, id string) (int, error)
	CountByFixtures(ctx context.Context, fixtureIDs []int64) (map[int64]int, error)
	CountAll(ctx context.Context) (int, error)
}

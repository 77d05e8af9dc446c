package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/akinalp/oddsroom/database"
	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/pkg/identity"
	"github.com/akinalp/oddsroom/pkg/metrics"
	"github.com/akinalp/oddsroom/repository"
	"github.com/akinalp/oddsroom/ws"
)

// MaxCountBatch, tek sayaç isteğinde sorgulanabilecek fixture sayısı.
const MaxCountBatch = 200

// Comment update action'ları
const (
	CommentCreated = "created"
	CommentDeleted = "deleted"
)

// CommentService, fixture yorum thread'leri iş mantığı interface'i.
//
// Model iki seviyelidir: üst seviye yorumlar ve onların yanıtları.
// Yanıta yanıt verilemez. Silme sadece yazar tarafından yapılabilir ve
// üst seviye yorum silinince yanıtları da silinir (ON DELETE CASCADE).
type CommentService interface {
	ListThread(ctx context.Context, fixtureID int64) ([]models.Comment, error)
	Create(ctx context.Context, fixtureID int64, user *models.User, req *models.CreateCommentRequest) (*models.Comment, error)
	Delete(ctx context.Context, commentID, userID string) (*models.CommentDeletion, error)
	Counts(ctx context.Context, fixtureIDs []int64) (*models.CommentCounts, error)
}

type commentService struct {
	db          *sql.DB
	commentRepo repository.CommentRepository
	hub         ws.RoomBroadcaster
}

// NewCommentService, constructor.
// db: Silme işleminde yazar kontrolü + silme + sayım tek transaction'da yapılır.
func NewCommentService(db *sql.DB, commentRepo repository.CommentRepository, hub ws.RoomBroadcaster) CommentService {
	return &commentService{
		db:          db,
		commentRepo: commentRepo,
		hub:         hub,
	}
}

// ListThread, fixture'ın yorumlarını thread olarak döner.
//
// Repository düz liste (created_at ASC) döner; burada üst seviye yorumlar
// sırayla dizilir, her yanıt kendi parent'ının Replies listesine eklenir.
func (s *commentService) ListThread(ctx context.Context, fixtureID int64) ([]models.Comment, error) {
	if fixtureID <= 0 {
		return nil, fmt.Errorf("%w: invalid fixture id", pkg.ErrBadRequest)
	}

	flat, err := s.commentRepo.ListByFixture(ctx, fixtureID)
	if err != nil {
		return nil, err
	}
	return models.BuildThread(flat), nil
}

// Create, yeni yorum veya yanıt kaydeder.
//
// parent_id verilmişse parent aynı fixture'a ait bir üst seviye yorum olmalıdır.
func (s *commentService) Create(ctx context.Context, fixtureID int64, user *models.User, req *models.CreateCommentRequest) (*models.Comment, error) {
	if fixtureID <= 0 {
		return nil, fmt.Errorf("%w: invalid fixture id", pkg.ErrBadRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	if req.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, strings.TrimSpace(*req.ParentID))
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: parent comment not found", pkg.ErrBadRequest)
		}
		if err != nil {
			return nil, err
		}
		if parent.IsReply() {
			return nil, fmt.Errorf("%w: cannot reply to a reply", pkg.ErrBadRequest)
		}
		if parent.FixtureID != fixtureID {
			return nil, fmt.Errorf("%w: parent comment belongs to another fixture", pkg.ErrBadRequest)
		}
		parentID := parent.ID
		req.ParentID = &parentID
	}

	authorName := req.AuthorName
	if authorName == "" {
		authorName = identity.SenderName(user.DisplayName, user.Email, user.ID)
	}

	comment := &models.Comment{
		FixtureID:  fixtureID,
		UserID:     user.ID,
		AuthorName: authorName,
		Content:    req.Content,
		ParentID:   req.ParentID,
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	metrics.CommentsCreated.Inc()

	s.hub.BroadcastToRoom(models.FixtureRoom(fixtureID), ws.Event{
		Op: ws.OpCommentUpdate,
		Data: ws.CommentUpdateData{
			FixtureID: fixtureID,
			CommentID: comment.ID,
			Action:    CommentCreated,
		},
	})

	return comment, nil
}

// Delete, yorumu siler; silinen toplam satır sayısını (yanıtlar dahil) ve
// yorumun fixture'ını döner.
//
// Yazar olmayan kullanıcı → ErrForbidden, hiçbir şey silinmez.
func (s *commentService) Delete(ctx context.Context, commentID, userID string) (*models.CommentDeletion, error) {
	var (
		removed   int
		fixtureID int64
	)

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := repository.NewSQLiteCommentRepo(tx)

		comment, err := repo.GetByID(ctx, commentID)
		if err != nil {
			return err
		}
		if comment.UserID != userID {
			return fmt.Errorf("%w: only the author can delete this comment", pkg.ErrForbidden)
		}
		fixtureID = comment.FixtureID

		removed, err = repo.Delete(ctx, commentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.CommentsDeleted.Add(float64(removed))

	s.hub.BroadcastToRoom(models.FixtureRoom(fixtureID), ws.Event{
		Op: ws.OpCommentUpdate,
		Data: ws.CommentUpdateData{
			FixtureID: fixtureID,
			CommentID: commentID,
			Action:    CommentDeleted,
			Removed:   removed,
		},
	})

	return &models.CommentDeletion{CommentID: commentID, FixtureID: fixtureID, Removed: removed}, nil
}

// Counts, global toplam ve istenen fixture'ların yorum sayılarını döner.
func (s *commentService) Counts(ctx context.Context, fixtureIDs []int64) (*models.CommentCounts, error) {
	if len(fixtureIDs) > MaxCountBatch {
		return nil, fmt.Errorf("%w: at most %d fixture ids per request", pkg.ErrBadRequest, MaxCountBatch)
	}

	perFixture, err := s.commentRepo.CountByFixtures(ctx, fixtureIDs)
	if err != nil {
		return nil, err
	}

	total, err := s.commentRepo.CountAll(ctx)
	if err != nil {
		return nil, err
	}

	return &models.CommentCounts{Total: total, PerFixture: perFixture}, nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akinalp/oddsroom/database"
	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/pkg/metrics"
	"github.com/akinalp/oddsroom/repository"
	"github.com/akinalp/oddsroom/ws"
)

// MaxReactionBatch, tek FetchReactions çağrısında istenebilecek hedef sayısı.
const MaxReactionBatch = 500

// ReactionService, mesaj ve yorum tepkileri iş mantığı interface'i.
//
// Bir kullanıcı bir hedefte aynı anda en fazla bir tepki tutar.
// Toggle üç yollu bir dal çalıştırır:
//   - tepki yok → ekle
//   - farklı tür var → değiştir
//   - aynı tür var → kaldır
//
// Dal transaction içinde mevcut satıra bakarak seçilir.
type ReactionService interface {
	List(ctx context.Context, target models.ReactionTarget, targetIDs []string) (map[string][]models.Reaction, error)
	Upsert(ctx context.Context, target models.ReactionTarget, targetID, userID string, kind models.ReactionKind) (*models.ToggleResult, error)
	Delete(ctx context.Context, target models.ReactionTarget, targetID, userID string) (*models.ToggleResult, error)
	Toggle(ctx context.Context, target models.ReactionTarget, targetID, userID string, kind models.ReactionKind) (*models.ToggleResult, error)
}

type reactionService struct {
	db            *sql.DB
	reactionRepos map[models.ReactionTarget]repository.ReactionRepository
	messageRepo   repository.MessageRepository
	commentRepo   repository.CommentRepository
	hub           ws.RoomBroadcaster
}

// NewReactionService, constructor.
//
// db: Toggle'ın oku → yaz → grupla adımlarını tek transaction'da yapmak için gerekir.
// messageRepo, commentRepo: Hedefin varlığını ve broadcast odasını bulmak için gerekir.
func NewReactionService(
	db *sql.DB,
	messageReactionRepo repository.ReactionRepository,
	commentReactionRepo repository.ReactionRepository,
	messageRepo repository.MessageRepository,
	commentRepo repository.CommentRepository,
	hub ws.RoomBroadcaster,
) ReactionService {
	return &reactionService{
		db: db,
		reactionRepos: map[models.ReactionTarget]repository.ReactionRepository{
			models.TargetMessage: messageReactionRepo,
			models.TargetComment: commentReactionRepo,
		},
		messageRepo: messageRepo,
		commentRepo: commentRepo,
		hub:         hub,
	}
}

// decision, mevcut tepkiye bakarak yapılacak değişikliği seçer.
// action boş dönerse hiçbir şey yazılmaz. next nil ise satır silinir.
type decision func(prev *models.ReactionKind) (action models.ToggleAction, next *models.ReactionKind)

func toggleDecision(kind models.ReactionKind) decision {
	return func(prev *models.ReactionKind) (models.ToggleAction, *models.ReactionKind) {
		switch {
		case prev == nil:
			return models.ToggleAdded, &kind
		case *prev == kind:
			return models.ToggleRemoved, nil
		default:
			return models.ToggleReplaced, &kind
		}
	}
}

func upsertDecision(kind models.ReactionKind) decision {
	return func(prev *models.ReactionKind) (models.ToggleAction, *models.ReactionKind) {
		switch {
		case prev == nil:
			return models.ToggleAdded, &kind
		case *prev == kind:
			return "", &kind
		default:
			return models.ToggleReplaced, &kind
		}
	}
}

func deleteDecision(prev *models.ReactionKind) (models.ToggleAction, *models.ReactionKind) {
	if prev == nil {
		return "", nil
	}
	return models.ToggleRemoved, nil
}

// List, hedeflerin ham tepki satırlarını tek batch sorguda döner.
func (s *reactionService) List(ctx context.Context, target models.ReactionTarget, targetIDs []string) (map[string][]models.Reaction, error) {
	repo, ok := s.reactionRepos[target]
	if !ok {
		return nil, fmt.Errorf("%w: unknown reaction target", pkg.ErrBadRequest)
	}
	if len(targetIDs) > MaxReactionBatch {
		return nil, fmt.Errorf("%w: at most %d target ids per request", pkg.ErrBadRequest, MaxReactionBatch)
	}
	return repo.ListByTargetIDs(ctx, targetIDs)
}

// Upsert, tepkiyi ekler veya türünü değiştirir. Aynı tür zaten varsa hiçbir şey yazmaz.
func (s *reactionService) Upsert(ctx context.Context, target models.ReactionTarget, targetID, userID string, kind models.ReactionKind) (*models.ToggleResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown reaction kind", pkg.ErrBadRequest)
	}
	return s.apply(ctx, target, targetID, userID, upsertDecision(kind))
}

// Delete, kullanıcının tepkisini kaldırır. Tepki yoksa no-op'tur.
func (s *reactionService) Delete(ctx context.Context, target models.ReactionTarget, targetID, userID string) (*models.ToggleResult, error) {
	return s.apply(ctx, target, targetID, userID, deleteDecision)
}

// Toggle, üç yollu dalı çalıştırır ve sonucu döner.
func (s *reactionService) Toggle(ctx context.Context, target models.ReactionTarget, targetID, userID string, kind models.ReactionKind) (*models.ToggleResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown reaction kind", pkg.ErrBadRequest)
	}
	return s.apply(ctx, target, targetID, userID, toggleDecision(kind))
}

// apply, tepki değişikliğini transaction içinde uygular ve değişiklik olduysa broadcast eder.
//
// Akış:
// 1. Hedefin odasını bul (yoksa 404)
// 2. TX: mevcut tepkiyi oku → karar ver → upsert/delete → güncel grupları al
// 3. reaction_update event'ini hedefin odasına gönder
func (s *reactionService) apply(ctx context.Context, target models.ReactionTarget, targetID, userID string, decide decision) (*models.ToggleResult, error) {
	if _, ok := s.reactionRepos[target]; !ok {
		return nil, fmt.Errorf("%w: unknown reaction target", pkg.ErrBadRequest)
	}

	room, err := s.roomOf(ctx, target, targetID)
	if err != nil {
		return nil, err
	}

	result := &models.ToggleResult{}
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := repository.NewSQLiteReactionRepo(tx, target)

		existing, err := repo.Get(ctx, targetID, userID)
		if err != nil && !errors.Is(err, pkg.ErrNotFound) {
			return err
		}
		if existing != nil {
			prev := existing.Kind
			result.Previous = &prev
		}

		action, next := decide(result.Previous)
		result.Action = action
		result.Current = next

		switch {
		case action == "":
			// değişiklik yok
		case next == nil:
			if _, err := repo.Delete(ctx, targetID, userID); err != nil {
				return err
			}
		default:
			if err := repo.Upsert(ctx, targetID, userID, *next); err != nil {
				return err
			}
		}

		groups, err := repo.GroupsByTargetID(ctx, targetID)
		if err != nil {
			return err
		}
		result.Groups = groups
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply reaction: %w", err)
	}

	if result.Action == "" {
		return result, nil
	}

	metrics.ReactionToggles.WithLabelValues(string(target), string(result.Action)).Inc()

	s.hub.BroadcastToRoom(room, ws.Event{
		Op: ws.OpReactionUpdate,
		Data: ws.ReactionUpdateData{
			Target:   target,
			TargetID: targetID,
			Room:     room,
			ActorID:  userID,
			Action:   result.Action,
			Groups:   result.Groups,
		},
	})

	return result, nil
}

// roomOf, tepkinin broadcast edileceği odayı hedef kaydından bulur.
// Yorum tepkileri yorumun fixture odasına gider.
func (s *reactionService) roomOf(ctx context.Context, target models.ReactionTarget, targetID string) (models.RoomScope, error) {
	switch target {
	case models.TargetMessage:
		message, err := s.messageRepo.GetByID(ctx, targetID)
		if err != nil {
			return "", err
		}
		return message.Room, nil
	case models.TargetComment:
		comment, err := s.commentRepo.GetByID(ctx, targetID)
		if err != nil {
			return "", err
		}
		return models.FixtureRoom(comment.FixtureID), nil
	default:
		return "", fmt.Errorf("%w: unknown reaction target", pkg.ErrBadRequest)
	}
}

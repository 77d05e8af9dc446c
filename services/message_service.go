package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/pkg/identity"
	"github.com/akinalp/oddsroom/pkg/metrics"
	"github.com/akinalp/oddsroom/repository"
	"github.com/akinalp/oddsroom/ws"
)

// Mesaj listeleme limitleri.
const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
)

// MessageService, chat mesajı iş mantığı interface'i.
type MessageService interface {
	List(ctx context.Context, room models.RoomScope, limit int) ([]models.Message, error)
	Create(ctx context.Context, room models.RoomScope, user *models.User, req *models.CreateMessageRequest) (*models.Message, error)
}

type messageService struct {
	messageRepo repository.MessageRepository
	hub         ws.RoomBroadcaster
}

// NewMessageService, constructor.
// hub: Yeni mesajı sadece o odaya abone olan client'lara iletmek için gerekir.
func NewMessageService(messageRepo repository.MessageRepository, hub ws.RoomBroadcaster) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		hub:         hub,
	}
}

// List, odanın en yeni `limit` mesajını kronolojik (eskiden yeniye) sırayla döner.
func (s *messageService) List(ctx context.Context, room models.RoomScope, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}

	messages, err := s.messageRepo.ListByRoom(ctx, room, limit)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Create, yeni mesaj kaydeder ve odaya broadcast eder.
//
// Gönderen adı boşsa token'daki profil adından, e-posta önekinden veya
// anonim yer tutucudan türetilir. Rol etiketi sadece token claim'inden gelir.
func (s *messageService) Create(ctx context.Context, room models.RoomScope, user *models.User, req *models.CreateMessageRequest) (*models.Message, error) {
	if strings.TrimSpace(req.SenderName) == "" {
		req.SenderName = identity.SenderName(user.DisplayName, user.Email, user.ID)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	message := &models.Message{
		Room:       room,
		UserID:     user.ID,
		SenderName: req.SenderName,
		Content:    req.Content,
	}
	if user.Role != "" {
		role := user.Role
		message.Role = &role
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	metrics.MessagesCreated.WithLabelValues(metrics.RoomKind(room.String())).Inc()

	s.hub.BroadcastToRoom(room, ws.Event{
		Op:   ws.OpMessageCreate,
		Data: message,
	})

	return message, nil
}

package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/pkg/identity"
	"github.com/akinalp/oddsroom/reactions"
	"github.com/akinalp/oddsroom/storeclient"
)

// roomState, açık odanın kaynakları. Oda değiştiğinde bütünüyle kapatılır.
type roomState struct {
	room       models.RoomScope
	reconciler *Reconciler
	supervisor *Supervisor
	tracker    *reactions.Tracker
}

func (rs *roomState) close() {
	rs.supervisor.Close()
	rs.reconciler.Close()
}

// Session, tek kullanıcının o an açık olan sohbet odası.
//
// Aynı anda tek oda açıktır. Open yeni odanın kaynaklarını oluşturmadan önce
// öncekinin aboneliğini, timer'larını ve süren gönderimlerini tamamen kapatır.
type Session struct {
	store storeclient.Store
	user  models.User
	opts  Options

	mu         sync.Mutex
	current    *roomState
	onMessages func(room models.RoomScope, messages []models.Message)
	onState    func(room models.RoomScope, from, to State)
	onReaction func(messageID string, summary reactions.Summary)
}

// NewSession, constructor.
func NewSession(store storeclient.Store, user models.User, opts Options) *Session {
	return &Session{store: store, user: user, opts: opts.withDefaults()}
}

// OnMessages, açık odanın listesi her değiştiğinde fn'i çağırır.
func (s *Session) OnMessages(fn func(room models.RoomScope, messages []models.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessages = fn
}

// OnStateChange, açık odanın Supervisor geçişlerini fn'e iletir.
func (s *Session) OnStateChange(fn func(room models.RoomScope, from, to State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// OnReactions, açık odadaki bir mesajın tepki özeti değiştiğinde fn'i çağırır.
func (s *Session) OnReactions(fn func(messageID string, summary reactions.Summary)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReaction = fn
}

// SenderName, oturum kullanıcısının mesajlarda görünen adı.
func (s *Session) SenderName() string {
	return identity.SenderName(s.user.DisplayName, s.user.Email, s.user.ID)
}

// Open, room'u açar. Önceki oda açıksa önce kapatılır.
func (s *Session) Open(ctx context.Context, room models.RoomScope) error {
	if _, err := models.ParseRoomScope(string(room)); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrValidation, err)
	}

	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.mu.Unlock()

	if prev != nil {
		prev.close()
	}

	rec := NewReconciler(room, s.store, s.opts.DedupeWindow)
	sup := NewSupervisor(s.store, rec, s.opts)
	tracker := reactions.NewTracker(s.store, models.TargetMessage, s.user.ID)
	rs := &roomState{room: room, reconciler: rec, supervisor: sup, tracker: tracker}

	rec.OnChange(func(messages []models.Message) {
		if fn := s.callbacks(rs).messages; fn != nil {
			fn(room, messages)
		}
	})
	sup.OnStateChange(func(from, to State) {
		if fn := s.callbacks(rs).state; fn != nil {
			fn(room, from, to)
		}
	})
	tracker.OnChange(func(messageID string, summary reactions.Summary) {
		if fn := s.callbacks(rs).reaction; fn != nil {
			fn(messageID, summary)
		}
	})

	s.mu.Lock()
	s.current = rs
	s.mu.Unlock()

	return sup.Start(ctx)
}

type sessionCallbacks struct {
	messages func(models.RoomScope, []models.Message)
	state    func(models.RoomScope, State, State)
	reaction func(string, reactions.Summary)
}

// callbacks, rs hâlâ açık odaysa hook'ları döner. Kapanmış odanın geç
// gelen event'leri yeni odanın dinleyicisine ulaşmaz.
func (s *Session) callbacks(rs *roomState) sessionCallbacks {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != rs {
		return sessionCallbacks{}
	}
	return sessionCallbacks{messages: s.onMessages, state: s.onState, reaction: s.onReaction}
}

func (s *Session) active() (*roomState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, fmt.Errorf("%w: no room is open", pkg.ErrValidation)
	}
	return s.current, nil
}

// Room, açık oda. Oda yoksa boş döner.
func (s *Session) Room() models.RoomScope {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.room
}

// State, açık odanın Supervisor durumu. Oda yoksa CLOSED.
func (s *Session) State() State {
	rs, err := s.active()
	if err != nil {
		return StateClosed
	}
	return rs.supervisor.State()
}

// Messages, açık odanın render sırasındaki mesajları.
func (s *Session) Messages() []models.Message {
	rs, err := s.active()
	if err != nil {
		return nil
	}
	return rs.reconciler.Snapshot()
}

// Send, content'i oturum kullanıcısının adıyla açık odaya gönderir.
func (s *Session) Send(ctx context.Context, content string) (models.Message, <-chan SendResult, error) {
	rs, err := s.active()
	if err != nil {
		return models.Message{}, nil, err
	}
	return rs.reconciler.Submit(ctx, content, s.SenderName())
}

// React, açık odadaki bir mesaja üç yollu toggle uygular.
// Henüz onaylanmamış (provisional) mesajlara tepki verilemez.
func (s *Session) React(ctx context.Context, messageID string, kind models.ReactionKind) (reactions.Action, error) {
	rs, err := s.active()
	if err != nil {
		return "", err
	}
	if (&models.Message{ID: messageID}).IsProvisional() {
		return "", fmt.Errorf("%w: message %s is not persisted yet", pkg.ErrValidation, messageID)
	}
	return rs.tracker.Toggle(ctx, messageID, kind)
}

// Reactions, bir mesajın güncel tepki özeti.
func (s *Session) Reactions(messageID string) reactions.Summary {
	rs, err := s.active()
	if err != nil {
		return reactions.Summary{}
	}
	return rs.tracker.Summary(messageID)
}

// RefreshReactions, listedeki tüm authoritative mesajların tepkilerini tek
// batched çağrıyla yeniden okur.
func (s *Session) RefreshReactions(ctx context.Context) error {
	rs, err := s.active()
	if err != nil {
		return err
	}

	var ids []string
	for _, m := range rs.reconciler.Snapshot() {
		if !m.IsProvisional() {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := s.store.FetchReactions(ctx, models.TargetMessage, ids)
	if err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrPersistence, err)
	}
	rs.tracker.Load(rows)
	return nil
}

// Close, açık odayı kapatır.
func (s *Session) Close() {
	s.mu.Lock()
	rs := s.current
	s.current = nil
	s.mu.Unlock()

	if rs != nil {
		rs.close()
	}
}

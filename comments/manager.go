// Package comments, fixture bazlı iki seviyeli yorum thread'lerini ve
// yorum sayaçlarını yönetir.
//
// Chat'ten farklı olarak burada artımlı birleştirme yoktur: her mutasyon
// (add, delete, react) fixture'ın cache kaydını siler ve thread store'dan
// tamamen yeniden yüklenir. Yorum hacmi ve değişim sıklığı düşüktür.
package comments

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/pkg/cache"
	"github.com/akinalp/oddsroom/reactions"
)

// DefaultThreadTTL, cache'teki bir thread'in store'dan yeniden okunmadan kullanılabileceği süre.
const DefaultThreadTTL = time.Minute

// Store, Manager'ın kullandığı store alt kümesi. storeclient.Store bunu karşılar.
type Store interface {
	FetchComments(ctx context.Context, fixtureID int64) ([]models.Comment, error)
	InsertComment(ctx context.Context, fixtureID int64, content string, parentID *string) (*models.Comment, error)
	DeleteComment(ctx context.Context, commentID string) (*models.CommentDeletion, error)
	CommentCounts(ctx context.Context, fixtureIDs []int64) (*models.CommentCounts, error)

	FetchReactions(ctx context.Context, target models.ReactionTarget, ids []string) (map[string][]models.Reaction, error)
	UpsertReaction(ctx context.Context, target models.ReactionTarget, targetID string, kind models.ReactionKind) error
	DeleteReaction(ctx context.Context, target models.ReactionTarget, targetID string) error
}

// Thread, bir fixture'ın render edilecek yorum thread'i.
//
// Comments üst seviye yorumlardır, yanıtlar Replies içinde kronolojik sıradadır.
// Reactions, thread'deki her yorum ve yanıt için tepki özetidir.
type Thread struct {
	FixtureID int64
	Comments  []models.Comment
	Reactions map[string]reactions.Summary
}

// Size, thread'deki toplam yorum sayısı (yanıtlar dahil).
func (t *Thread) Size() int {
	return models.ThreadSize(t.Comments)
}

// cachedThread, kullanıcıdan bağımsız ham thread verisi.
// "Mine" bilgisi okuma sırasında currentUserID ile hesaplanır.
type cachedThread struct {
	comments []models.Comment
	rows     map[string][]models.Reaction
}

// commentRef, yüklenmiş thread'lerden öğrenilen yorum bilgisi.
type commentRef struct {
	fixtureID int64
	userID    string
	parentID  *string
	replies   int
}

// Manager, yorum CRUD'u ve sayaçların sahibi.
type Manager struct {
	store   Store
	threads *cache.TTLCache[int64, cachedThread]

	mu         sync.Mutex
	total      int
	perFixture map[int64]int
	index      map[string]commentRef
}

// NewManager, constructor. ttl <= 0 ise DefaultThreadTTL.
func NewManager(store Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultThreadTTL
	}
	return &Manager{
		store:      store,
		threads:    cache.New[int64, cachedThread](ttl, 5*ttl),
		perFixture: make(map[int64]int),
		index:      make(map[string]commentRef),
	}
}

// Close, cache'in arka plan goroutine'ini durdurur.
func (m *Manager) Close() {
	m.threads.Close()
}

// persistenceError, store hatasını client taksonomisine çevirir.
// Alttaki pkg sentinel'i (ErrNotFound, ErrBadRequest...) errors.Is ile görünür kalır.
func persistenceError(err error) error {
	switch {
	case errors.Is(err, pkg.ErrForbidden):
		return fmt.Errorf("%w: %w", pkg.ErrAuthorization, err)
	case errors.Is(err, pkg.ErrBadRequest):
		return fmt.Errorf("%w: %w", pkg.ErrValidation, err)
	default:
		return fmt.Errorf("%w: %w", pkg.ErrPersistence, err)
	}
}

// Add, yorum veya yanıt ekler.
//
// parentID verilirse aynı fixture'ın üst seviye bir yorumu olmalıdır;
// yanıta yanıt reddedilir. Kontrol cache'teki thread üzerinden yapılır,
// server da aynı kuralı ayrıca uygular. Başarıda sayaçlar bir artar ve
// thread yeniden yüklenir.
func (m *Manager) Add(ctx context.Context, fixtureID int64, userID, content string, parentID *string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	switch {
	case fixtureID <= 0:
		return nil, fmt.Errorf("%w: invalid fixture id", pkg.ErrValidation)
	case userID == "":
		return nil, fmt.Errorf("%w: user id is required", pkg.ErrValidation)
	case content == "":
		return nil, fmt.Errorf("%w: comment content is required", pkg.ErrValidation)
	case utf8.RuneCountInString(content) > models.MaxCommentLength:
		return nil, fmt.Errorf("%w: comment content must be at most %d characters", pkg.ErrValidation, models.MaxCommentLength)
	}
	if parentID != nil && strings.TrimSpace(*parentID) == "" {
		parentID = nil
	}

	if parentID != nil {
		if err := m.checkParent(fixtureID, *parentID); err != nil {
			return nil, err
		}
	}

	comment, err := m.store.InsertComment(ctx, fixtureID, content, parentID)
	if err != nil {
		return nil, persistenceError(err)
	}

	m.mu.Lock()
	m.total++
	m.perFixture[fixtureID]++
	m.mu.Unlock()

	m.reload(ctx, fixtureID, userID)
	return comment, nil
}

func (m *Manager) checkParent(fixtureID int64, parentID string) error {
	m.mu.Lock()
	ref, ok := m.index[parentID]
	m.mu.Unlock()

	if !ok {
		if _, cached := m.threads.Get(fixtureID); cached {
			return fmt.Errorf("%w: parent comment not found", pkg.ErrValidation)
		}
		// Thread cache'te değilse kararı server verir.
		return nil
	}
	if ref.parentID != nil {
		return fmt.Errorf("%w: cannot reply to a reply", pkg.ErrValidation)
	}
	if ref.fixtureID != fixtureID {
		return fmt.Errorf("%w: parent belongs to another fixture", pkg.ErrValidation)
	}
	return nil
}

// Delete, yorumu siler. Sadece yazarı silebilir.
//
// Üst seviye bir yorum silindiğinde yanıtları ve tüm tepkileri de silinir.
// Sayaçlar silinen satır sayısı kadar düşer, sıfırın altına inmez.
func (m *Manager) Delete(ctx context.Context, commentID, requestingUserID string) (int, error) {
	if commentID == "" || requestingUserID == "" {
		return 0, fmt.Errorf("%w: comment id and user id are required", pkg.ErrValidation)
	}

	m.mu.Lock()
	ref, known := m.index[commentID]
	m.mu.Unlock()

	if known && ref.userID != requestingUserID {
		return 0, fmt.Errorf("%w: only the author can delete this comment", pkg.ErrAuthorization)
	}

	deletion, err := m.store.DeleteComment(ctx, commentID)
	if err != nil {
		return 0, persistenceError(err)
	}

	m.mu.Lock()
	m.total = max(0, m.total-deletion.Removed)
	m.perFixture[deletion.FixtureID] = max(0, m.perFixture[deletion.FixtureID]-deletion.Removed)
	delete(m.index, commentID)
	m.mu.Unlock()

	m.reload(ctx, deletion.FixtureID, requestingUserID)
	return deletion.Removed, nil
}

// React, yoruma üç yollu toggle uygular. Karar store'daki güncel duruma göre verilir.
func (m *Manager) React(ctx context.Context, fixtureID int64, commentID, userID string, kind models.ReactionKind) (reactions.Action, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown reaction kind %q", pkg.ErrValidation, kind)
	}
	if commentID == "" || userID == "" {
		return "", fmt.Errorf("%w: comment id and user id are required", pkg.ErrValidation)
	}

	current, err := m.store.FetchReactions(ctx, models.TargetComment, []string{commentID})
	if err != nil {
		return "", persistenceError(err)
	}

	_, action := reactions.Apply(current[commentID], commentID, userID, kind)
	if action == reactions.ActionRemoved {
		err = m.store.DeleteReaction(ctx, models.TargetComment, commentID)
	} else {
		err = m.store.UpsertReaction(ctx, models.TargetComment, commentID, kind)
	}
	if err != nil {
		return "", persistenceError(err)
	}

	m.reload(ctx, fixtureID, userID)
	return action, nil
}

// LoadThread, fixture'ın thread'ini ve tüm yorum + yanıt tepkilerini döner.
// Tepkiler tek batched FetchReactions çağrısıyla okunur.
func (m *Manager) LoadThread(ctx context.Context, fixtureID int64, currentUserID string) (*Thread, error) {
	if fixtureID <= 0 {
		return nil, fmt.Errorf("%w: invalid fixture id", pkg.ErrValidation)
	}

	cached, ok := m.threads.Get(fixtureID)
	if !ok {
		var err error
		cached, err = m.fetch(ctx, fixtureID)
		if err != nil {
			return nil, err
		}
	}

	return &Thread{
		FixtureID: fixtureID,
		Comments:  cached.comments,
		Reactions: reactions.SummarizeAll(cached.rows, currentUserID),
	}, nil
}

// Invalidate, fixture'ın cache kaydını siler (ör: comment_update event'i geldiğinde).
func (m *Manager) Invalidate(fixtureID int64) {
	m.threads.Delete(fixtureID)
}

func (m *Manager) fetch(ctx context.Context, fixtureID int64) (cachedThread, error) {
	thread, err := m.store.FetchComments(ctx, fixtureID)
	if err != nil {
		return cachedThread{}, persistenceError(err)
	}

	var ids []string
	for _, c := range thread {
		ids = append(ids, c.ID)
		for _, r := range c.Replies {
			ids = append(ids, r.ID)
		}
	}

	rows := map[string][]models.Reaction{}
	if len(ids) > 0 {
		rows, err = m.store.FetchReactions(ctx, models.TargetComment, ids)
		if err != nil {
			return cachedThread{}, persistenceError(err)
		}
	}
	if rows == nil {
		rows = map[string][]models.Reaction{}
	}
	for _, id := range ids {
		if _, ok := rows[id]; !ok {
			rows[id] = nil
		}
	}

	entry := cachedThread{comments: thread, rows: rows}
	m.threads.Set(fixtureID, entry)
	m.indexThread(fixtureID, thread)
	return entry, nil
}

// indexThread, yazar bilgisini öğrenir ve fixture sayacını thread boyutuyla eşitler.
func (m *Manager) indexThread(fixtureID int64, thread []models.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ref := range m.index {
		if ref.fixtureID == fixtureID {
			delete(m.index, id)
		}
	}
	for _, c := range thread {
		m.index[c.ID] = commentRef{fixtureID: fixtureID, userID: c.UserID, replies: len(c.Replies)}
		for _, r := range c.Replies {
			m.index[r.ID] = commentRef{fixtureID: fixtureID, userID: r.UserID, parentID: r.ParentID}
		}
	}

	size := models.ThreadSize(thread)
	m.total = max(0, m.total+size-m.perFixture[fixtureID])
	m.perFixture[fixtureID] = size
}

// reload, mutasyondan sonra thread'i tam yeniden yükler. Hata loglanır;
// mutasyon zaten başarılı olmuştur.
func (m *Manager) reload(ctx context.Context, fixtureID int64, userID string) {
	if fixtureID <= 0 {
		return
	}
	m.threads.Delete(fixtureID)
	if _, err := m.LoadThread(ctx, fixtureID, userID); err != nil {
		log.Printf("[comments] fixture=%d reload failed: %v", fixtureID, err)
	}
}

// Count, fixture'ın bilinen yorum sayısı.
func (m *Manager) Count(fixtureID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perFixture[fixtureID]
}

// Total, bilinen toplam yorum sayısı.
func (m *Manager) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// SyncCounts, sayaçları server'ın gerçek sayılarıyla eşitler.
func (m *Manager) SyncCounts(ctx context.Context, fixtureIDs []int64) error {
	counts, err := m.store.CommentCounts(ctx, fixtureIDs)
	if err != nil {
		return persistenceError(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = counts.Total
	for id, n := range counts.PerFixture {
		m.perFixture[id] = n
	}
	return nil
}

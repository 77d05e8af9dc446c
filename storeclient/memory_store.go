package storeclient

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/pkg/identity"
)

// Operation, MemoryStore'da hata enjekte edilebilen store çağrısı.
type Operation string

const (
	OpFetchMessages  Operation = "fetch_messages"
	OpInsertMessage  Operation = "insert_message"
	OpSubscribe      Operation = "subscribe"
	OpFetchReactions Operation = "fetch_reactions"
	OpUpsertReaction Operation = "upsert_reaction"
	OpDeleteReaction Operation = "delete_reaction"
	OpFetchComments  Operation = "fetch_comments"
	OpInsertComment  Operation = "insert_comment"
	OpDeleteComment  Operation = "delete_comment"
	OpCommentCounts  Operation = "comment_counts"
)

// SubscribeMode, yeni aboneliklerin status akışını belirler.
type SubscribeMode int

const (
	SubscribeConfirm SubscribeMode = iota // connecting → subscribed
	SubscribeSilent                       // connecting, sonra sessizlik (timeout senaryosu)
	SubscribeReject                       // connecting → error
)

// memoryState, aynı store'a bağlı tüm kullanıcı görünümlerinin paylaştığı veri.
type memoryState struct {
	mu sync.Mutex

	messages  []models.Message
	comments  []models.Comment
	reactions map[models.ReactionTarget]map[string]map[string]models.Reaction // target → targetID → userID

	subs     map[*memorySubscription]bool
	mode     SubscribeMode
	failures map[Operation]error
	calls    map[Operation]int
	onInsert func(models.Message)

	now func() time.Time
}

// MemoryStore, Store'un process içi implementasyonu.
//
// Hosted store gibi davranır: InsertMessage kaydı odanın abonelerine push eder.
// Aynı state'i paylaşan farklı kullanıcı görünümleri As ile oluşturulur.
type MemoryStore struct {
	state *memoryState
	user  models.User
}

// NewMemoryStore, user'a bağlı boş bir store oluşturur.
func NewMemoryStore(user models.User) *MemoryStore {
	return &MemoryStore{
		state: &memoryState{
			reactions: map[models.ReactionTarget]map[string]map[string]models.Reaction{
				models.TargetMessage: {},
				models.TargetComment: {},
			},
			subs:     make(map[*memorySubscription]bool),
			failures: make(map[Operation]error),
			calls:    make(map[Operation]int),
			now:      func() time.Time { return time.Now().UTC() },
		},
		user: user,
	}
}

// As, aynı veriyi başka bir kullanıcı olarak gören store döner.
func (s *MemoryStore) As(user models.User) *MemoryStore {
	return &MemoryStore{state: s.state, user: user}
}

// SetFailure, op çağrılarının err ile başarısız olmasını sağlar. nil temizler.
func (s *MemoryStore) SetFailure(op Operation, err error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if err == nil {
		delete(s.state.failures, op)
		return
	}
	s.state.failures[op] = err
}

// SetSubscribeMode, bundan sonraki Subscribe çağrılarının status akışını belirler.
func (s *MemoryStore) SetSubscribeMode(mode SubscribeMode) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.mode = mode
}

// SetClock, kayıtların created_at değerini üreten saati değiştirir.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.now = now
}

// OnInsert, her başarılı InsertMessage'dan sonra (abonelere push edildikten sonra,
// çağırana dönmeden önce) fn'i çağırır. Yarış senaryolarını sıralamak için kullanılır.
func (s *MemoryStore) OnInsert(fn func(models.Message)) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.onInsert = fn
}

// Calls, op'un kaç kez çağrıldığını döner (başarısız çağrılar dahil).
func (s *MemoryStore) Calls(op Operation) int {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.calls[op]
}

// ActiveSubscriptions, room için açık abonelik sayısı.
func (s *MemoryStore) ActiveSubscriptions(room models.RoomScope) int {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	n := 0
	for sub := range s.state.subs {
		if sub.room == room {
			n++
		}
	}
	return n
}

// DropSubscriptions, odanın açık aboneliklerine StatusError yayınlar.
// Gerçek store'da bağlantı kopmasına karşılık gelir.
func (s *MemoryStore) DropSubscriptions(room models.RoomScope) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	for sub := range s.state.subs {
		if sub.room == room {
			sub.emit(StatusError)
		}
	}
}

// Seed, mesajı doğrudan store'a yazar: abonelere push etmez.
// Başka bir kullanıcının (veya başka bir client'ın) yazdığı mesajı simüle eder.
func (s *MemoryStore) Seed(m models.Message) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.messages = append(s.state.messages, m)
}

// Publish, mesajı store'a yazmadan odanın abonelerine push eder.
func (s *MemoryStore) Publish(m models.Message) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.publishLocked(m)
}

// begin, çağrıyı sayar ve enjekte edilmiş hatayı döner. Lock altında çağrılır.
func (st *memoryState) begin(op Operation) error {
	st.calls[op]++
	if err := st.failures[op]; err != nil {
		return err
	}
	return nil
}

func (st *memoryState) publishLocked(m models.Message) {
	for sub := range st.subs {
		if sub.room == m.Room {
			sub.push(m)
		}
	}
}

// ─── Messages ───

func (s *MemoryStore) FetchMessages(ctx context.Context, room models.RoomScope, limit int) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.begin(OpFetchMessages); err != nil {
		return nil, err
	}

	var out []models.Message
	for _, m := range st.messages {
		if m.Room == room {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStore) InsertMessage(ctx context.Context, room models.RoomScope, senderName, content string) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := models.CreateMessageRequest{SenderName: senderName, Content: content}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	st := s.state
	st.mu.Lock()
	if err := st.begin(OpInsertMessage); err != nil {
		st.mu.Unlock()
		return nil, err
	}

	m := models.Message{
		ID:         uuid.NewString(),
		Room:       room,
		FixtureID:  room.FixtureIDPtr(),
		UserID:     s.user.ID,
		SenderName: req.SenderName,
		Content:    req.Content,
		CreatedAt:  st.now(),
	}
	if s.user.Role != "" {
		role := s.user.Role
		m.Role = &role
	}
	st.messages = append(st.messages, m)
	st.publishLocked(m)
	hook := st.onInsert
	st.mu.Unlock()

	if hook != nil {
		hook(m)
	}
	return &m, nil
}

// ─── Subscriptions ───

func (s *MemoryStore) Subscribe(ctx context.Context, room models.RoomScope) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.begin(OpSubscribe); err != nil {
		return nil, err
	}

	sub := &memorySubscription{
		state:    st,
		room:     room,
		messages: make(chan models.Message, messageBufferSize),
		status:   make(chan Status, statusBufferSize),
	}
	sub.emit(StatusConnecting)
	switch st.mode {
	case SubscribeConfirm:
		sub.emit(StatusSubscribed)
	case SubscribeReject:
		sub.emit(StatusError)
	}
	st.subs[sub] = true
	return sub, nil
}

// memorySubscription, MemoryStore aboneliği. Kanallara sadece state lock'u altında yazılır.
type memorySubscription struct {
	state    *memoryState
	room     models.RoomScope
	messages chan models.Message
	status   chan Status
	closed   bool
}

func (m *memorySubscription) Messages() <-chan models.Message { return m.messages }
func (m *memorySubscription) Status() <-chan Status           { return m.status }

func (m *memorySubscription) Close() error {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	delete(m.state.subs, m)
	close(m.messages)
	close(m.status)
	return nil
}

// push ve emit tampon doluysa bırakır: yavaş tüketici store'u bloklamamalı.
func (m *memorySubscription) push(msg models.Message) {
	if m.closed {
		return
	}
	select {
	case m.messages <- msg:
	default:
	}
}

func (m *memorySubscription) emit(st Status) {
	if m.closed {
		return
	}
	select {
	case m.status <- st:
	default:
	}
}

// ─── Reactions ───

func (s *MemoryStore) FetchReactions(ctx context.Context, target models.ReactionTarget, ids []string) (map[string][]models.Reaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.begin(OpFetchReactions); err != nil {
		return nil, err
	}
	table, ok := st.reactions[target]
	if !ok {
		return nil, fmt.Errorf("%w: unknown target %q", pkg.ErrBadRequest, target)
	}

	out := make(map[string][]models.Reaction, len(ids))
	for _, id := range ids {
		rows := make([]models.Reaction, 0, len(table[id]))
		for _, r := range table[id] {
			rows = append(rows, r)
		}
		sort.Slice(rows, func(i, j int) bool {
			if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
				return rows[i].CreatedAt.Before(rows[j].CreatedAt)
			}
			return rows[i].UserID < rows[j].UserID
		})
		out[id] = rows
	}
	return out, nil
}

func (s *MemoryStore) UpsertReaction(ctx context.Context, target models.ReactionTarget, targetID string, kind models.ReactionKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown reaction kind %q", pkg.ErrBadRequest, kind)
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.begin(OpUpsertReaction); err != nil {
		return err
	}
	table, ok := st.reactions[target]
	if !ok {
		return fmt.Errorf("%w: unknown target %q", pkg.ErrBadRequest, target)
	}
	if !st.targetExistsLocked(target, targetID) {
		return fmt.Errorf("%w: %s %s", pkg.ErrNotFound, target, targetID)
	}

	if table[targetID] == nil {
		table[targetID] = make(map[string]models.Reaction)
	}
	if prev, ok := table[targetID][s.user.ID]; ok && prev.Kind == kind {
		return nil
	}
	table[targetID][s.user.ID] = models.Reaction{
		TargetID:  targetID,
		UserID:    s.user.ID,
		Kind:      kind,
		CreatedAt: st.now(),
	}
	return nil
}

func (s *MemoryStore) DeleteReaction(ctx context.Context, target models.ReactionTarget, targetID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.begin(OpDeleteReaction); err != nil {
		return err
	}
	if table, ok := st.reactions[target]; ok {
		delete(table[targetID], s.user.ID)
	}
	return nil
}

func (st *memoryState) targetExistsLocked(target models.ReactionTarget, id string) bool {
	switch target {
	case models.TargetMessage:
		for _, m := range st.messages {
			if m.ID == id {
				return true
			}
		}
	case models.TargetComment:
		for _, c := range st.comments {
			if c.ID == id {
				return true
			}
		}
	}
	return false
}

// ─── Comments ───

func (s *MemoryStore) FetchComments(ctx context.Context, fixtureID int64) ([]models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.begin(OpFetchComments); err != nil {
		return nil, err
	}

	var flat []models.Comment
	for _, c := range st.comments {
		if c.FixtureID == fixtureID {
			flat = append(flat, c)
		}
	}
	sort.SliceStable(flat, func(i, j int) bool { return flat[i].CreatedAt.Before(flat[j].CreatedAt) })
	return models.BuildThread(flat), nil
}

func (s *MemoryStore) InsertComment(ctx context.Context, fixtureID int64, content string, parentID *string) (*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fixtureID <= 0 {
		return nil, fmt.Errorf("%w: invalid fixture id", pkg.ErrBadRequest)
	}

	req := models.CreateCommentRequest{Content: content, ParentID: parentID}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.begin(OpInsertComment); err != nil {
		return nil, err
	}

	if req.ParentID != nil {
		parent := st.commentLocked(*req.ParentID)
		switch {
		case parent == nil:
			return nil, fmt.Errorf("%w: parent comment not found", pkg.ErrBadRequest)
		case parent.IsReply():
			return nil, fmt.Errorf("%w: cannot reply to a reply", pkg.ErrBadRequest)
		case parent.FixtureID != fixtureID:
			return nil, fmt.Errorf("%w: parent belongs to another fixture", pkg.ErrBadRequest)
		}
	}

	c := models.Comment{
		ID:         uuid.NewString(),
		FixtureID:  fixtureID,
		UserID:     s.user.ID,
		AuthorName: identity.SenderName(s.user.DisplayName, s.user.Email, s.user.ID),
		Content:    req.Content,
		ParentID:   req.ParentID,
		CreatedAt:  st.now(),
	}
	st.comments = append(st.comments, c)
	return &c, nil
}

// DeleteComment, yorumu, yanıtlarını ve hepsinin tepkilerini siler.
func (s *MemoryStore) DeleteComment(ctx context.Context, commentID string) (*models.CommentDeletion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.begin(OpDeleteComment); err != nil {
		return nil, err
	}

	target := st.commentLocked(commentID)
	if target == nil {
		return nil, fmt.Errorf("%w: comment not found", pkg.ErrNotFound)
	}
	if target.UserID != s.user.ID {
		return nil, fmt.Errorf("%w: only the author can delete this comment", pkg.ErrForbidden)
	}

	deletion := &models.CommentDeletion{CommentID: commentID, FixtureID: target.FixtureID}

	kept := st.comments[:0]
	for _, c := range st.comments {
		if c.ID == commentID || (c.ParentID != nil && *c.ParentID == commentID) {
			delete(st.reactions[models.TargetComment], c.ID)
			deletion.Removed++
			continue
		}
		kept = append(kept, c)
	}
	st.comments = kept
	return deletion, nil
}

func (s *MemoryStore) CommentCounts(ctx context.Context, fixtureIDs []int64) (*models.CommentCounts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := s.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := st.begin(OpCommentCounts); err != nil {
		return nil, err
	}

	counts := &models.CommentCounts{
		Total:      len(st.comments),
		PerFixture: make(map[int64]int, len(fixtureIDs)),
	}
	for _, id := range fixtureIDs {
		counts.PerFixture[id] = 0
	}
	for _, c := range st.comments {
		if _, ok := counts.PerFixture[c.FixtureID]; ok {
			counts.PerFixture[c.FixtureID]++
		}
	}
	return counts, nil
}

func (st *memoryState) commentLocked(id string) *models.Comment {
	for i := range st.comments {
		if st.comments[i].ID == id {
			return &st.comments[i]
		}
	}
	return nil
}

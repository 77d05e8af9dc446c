package reactions

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
)

// Writer, Tracker'ın persist için ihtiyaç duyduğu store alt kümesi.
// storeclient.Store bu interface'i karşılar.
type Writer interface {
	UpsertReaction(ctx context.Context, target models.ReactionTarget, targetID string, kind models.ReactionKind) error
	DeleteReaction(ctx context.Context, target models.ReactionTarget, targetID string) error
}

// Tracker, tek kullanıcının bir hedef türündeki (mesaj veya yorum) tepkilerini
// optimistic olarak uygular.
//
// Toggle, kararı her zaman güncel local state üzerinden verir ve hemen uygular.
// Aynı hedef için ardışık toggle'larda en son niyet kazanır: Upsert ve Delete
// mutlak durum yazdığı için sadece en güncel niyetin persist edilmesi yeterlidir,
// araya girmiş eski niyetler atlanır. Her başarılı store çağrısı yazdığı satırları
// onaylı durum olarak kaydeder. Persist başarısız olursa ve arada daha yeni bir
// niyet yoksa state son onaylı duruma geri döner.
type Tracker struct {
	store  Writer
	target models.ReactionTarget
	userID string

	mu        sync.Mutex
	rows      map[string][]models.Reaction // Ekranda görünen (optimistic) satırlar
	confirmed map[string][]models.Reaction // Store'da olduğu bilinen son satırlar
	gen       map[string]uint64
	pending   map[string]int         // Persist'i süren toggle sayısı
	persist   map[string]*sync.Mutex // Hedef başına persist sırası
	onChange  func(targetID string, summary Summary)
}

// NewTracker, constructor.
func NewTracker(store Writer, target models.ReactionTarget, userID string) *Tracker {
	return &Tracker{
		store:     store,
		target:    target,
		userID:    userID,
		rows:      make(map[string][]models.Reaction),
		confirmed: make(map[string][]models.Reaction),
		gen:       make(map[string]uint64),
		pending:   make(map[string]int),
		persist:   make(map[string]*sync.Mutex),
	}
}

// OnChange, bir hedefin özeti her değiştiğinde fn'i çağırır.
// fn lock dışında çağrılır.
func (t *Tracker) OnChange(fn func(targetID string, summary Summary)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Load, store'dan okunan satırlarla verilen hedeflerin state'ini değiştirir.
// Persist'i süren hedefler atlanır: onların optimistic state'i korunur.
func (t *Tracker) Load(rowsByTarget map[string][]models.Reaction) {
	t.mu.Lock()
	changed := make([]string, 0, len(rowsByTarget))
	for id, rows := range rowsByTarget {
		if t.pending[id] > 0 {
			continue
		}
		copied := append([]models.Reaction(nil), rows...)
		t.rows[id] = copied
		t.confirmed[id] = copied
		changed = append(changed, id)
	}
	t.mu.Unlock()

	for _, id := range changed {
		t.notify(id)
	}
}

// Forget, hedefin state'ini bırakır (ör: mesaj listeden düştüğünde).
func (t *Tracker) Forget(targetID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rows, targetID)
	delete(t.confirmed, targetID)
}

// Rows, hedefin güncel (optimistic) satırlarının kopyası.
func (t *Tracker) Rows(targetID string) []models.Reaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Reaction(nil), t.rows[targetID]...)
}

// Summary, hedefin güncel özetini döner.
func (t *Tracker) Summary(targetID string) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Summarize(targetID, t.rows[targetID], t.userID)
}

// Toggle, kind için üç yollu toggle'ı uygular ve persist eder.
//
// Dönen Action optimistic olarak uygulanan daldır. Persist hatası
// pkg.ErrPersistence ile sarılır.
func (t *Tracker) Toggle(ctx context.Context, targetID string, kind models.ReactionKind) (Action, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown reaction kind %q", pkg.ErrValidation, kind)
	}
	if targetID == "" {
		return "", fmt.Errorf("%w: target id is required", pkg.ErrValidation)
	}

	t.mu.Lock()
	next, action := Apply(t.rows[targetID], targetID, t.userID, kind)
	t.rows[targetID] = next
	t.gen[targetID]++
	gen := t.gen[targetID]
	t.pending[targetID]++
	lock, ok := t.persist[targetID]
	if !ok {
		lock = &sync.Mutex{}
		t.persist[targetID] = lock
	}
	t.mu.Unlock()

	t.notify(targetID)

	defer t.done(targetID)

	lock.Lock()
	defer lock.Unlock()

	if t.superseded(targetID, gen) {
		return action, nil
	}

	var err error
	if action == ActionRemoved {
		err = t.store.DeleteReaction(ctx, t.target, targetID)
	} else {
		err = t.store.UpsertReaction(ctx, t.target, targetID, kind)
	}

	t.mu.Lock()
	latest := t.gen[targetID] == gen
	if err == nil {
		// Store artık bu çağrının yazdığı durumda; sonraki niyetler bunun üzerine kurulur.
		t.confirmed[targetID] = next
		t.mu.Unlock()
		return action, nil
	}

	if latest {
		t.rows[targetID] = t.confirmed[targetID]
	}
	t.mu.Unlock()

	log.Printf("[reactions] %s %s toggle %s failed: %v", t.target, targetID, kind, err)
	if latest {
		t.notify(targetID)
	}
	return action, fmt.Errorf("%w: %v", pkg.ErrPersistence, err)
}

func (t *Tracker) done(targetID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending[targetID]--; t.pending[targetID] <= 0 {
		delete(t.pending, targetID)
	}
}

func (t *Tracker) superseded(targetID string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen[targetID] != gen
}

func (t *Tracker) notify(targetID string) {
	t.mu.Lock()
	fn := t.onChange
	summary := Summarize(targetID, t.rows[targetID], t.userID)
	t.mu.Unlock()

	if fn != nil {
		fn(targetID, summary)
	}
}

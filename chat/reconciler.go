// Package chat, bir sohbet odasının client tarafı teslimat ve uzlaştırma
// motorunu barındırır.
//
//   - Reconciler: optimistic (provisional) mesajları authoritative kayıtlarla birleştirir
//   - Supervisor: push aboneliğini izler, gerekirse polling'e düşer
//   - Session: açık odanın reconciler + supervisor + reaction tracker üçlüsü
//
// Push, poll ve gönderim onayı aynı listeye üç ayrı yoldan ulaşır.
// Hepsinin birleştiği tek nokta Reconciler'dır.
package chat

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
)

// DefaultDedupeWindow, bir authoritative kaydın bekleyen bir provisional ile
// eşleştirilebileceği süre (provisional'ın local gönderim zamanından itibaren).
const DefaultDedupeWindow = 30 * time.Second

// Inserter, Reconciler'ın persist için kullandığı store alt kümesi.
type Inserter interface {
	InsertMessage(ctx context.Context, room models.RoomScope, senderName, content string) (*models.Message, error)
}

// SendResult, Submit'in persist sonucu. Err nil değilse pkg.ErrPersistence ile sarılıdır.
type SendResult struct {
	TempID  string
	Message *models.Message
	Err     error
}

// entry, listedeki tek satır. submittedAt sadece provisional'larda doludur (local saat).
type entry struct {
	msg         models.Message
	submittedAt time.Time
}

func (e *entry) provisional() bool {
	return e.msg.IsProvisional()
}

// Reconciler, tek odanın render edilen mesaj listesinin sahibidir.
//
// Aynı mantıksal mesaj listede asla iki kez görünmez. "Aynı mantıksal mesaj"
// id eşitliği veya (room, sender, content) eşitliğidir; ikincisi bir
// sezgiseldir: client'ın gerçek bir idempotency key'i yoktur. Dedupe penceresi
// içinde aynı metin iki kez gönderilirse bir kayıt yanlış provisional ile
// eşleşebilir. Bu durumda bile satır sayısı doğru kalır ve ikinci kayıt
// diğer provisional'ı kendi onayında yerine koyar.
type Reconciler struct {
	room   models.RoomScope
	store  Inserter
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	entries  []entry
	closed   bool
	onChange func([]models.Message)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReconciler, room için boş bir reconciler oluşturur. window <= 0 ise DefaultDedupeWindow.
func NewReconciler(room models.RoomScope, store Inserter, window time.Duration) *Reconciler {
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		room:   room,
		store:  store,
		window: window,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Room, reconciler'ın sahip olduğu oda.
func (r *Reconciler) Room() models.RoomScope { return r.room }

// OnChange, liste her değiştiğinde güncel snapshot ile fn'i çağırır.
// fn lock dışında çağrılır; snapshot'ı değiştirmek listeyi etkilemez.
func (r *Reconciler) OnChange(fn func([]models.Message)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Snapshot, render sırasındaki mesajların kopyası.
func (r *Reconciler) Snapshot() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Reconciler) snapshotLocked() []models.Message {
	out := make([]models.Message, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.msg
	}
	return out
}

// Len, listedeki satır sayısı.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Submit, content'i odaya gönderir.
//
// Provisional mesaj listenin sonuna senkron olarak eklenir ve hemen döner.
// Persist arka planda yapılır; sonuç dönen kanaldan tam bir kez okunur.
// İçerik veya gönderen boşsa pkg.ErrValidation döner ve hiçbir satır eklenmez.
func (r *Reconciler) Submit(ctx context.Context, content, senderName string) (models.Message, <-chan SendResult, error) {
	content = strings.TrimSpace(content)
	senderName = strings.TrimSpace(senderName)

	switch {
	case content == "":
		return models.Message{}, nil, fmt.Errorf("%w: message content is required", pkg.ErrValidation)
	case utf8.RuneCountInString(content) > models.MaxMessageLength:
		return models.Message{}, nil, fmt.Errorf("%w: message content must be at most %d characters", pkg.ErrValidation, models.MaxMessageLength)
	case senderName == "":
		return models.Message{}, nil, fmt.Errorf("%w: sender name is required", pkg.ErrValidation)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return models.Message{}, nil, fmt.Errorf("%w: room %s is closed", pkg.ErrValidation, r.room)
	}

	now := r.now()
	temp := models.Message{
		ID:         newProvisionalID(now),
		Room:       r.room,
		FixtureID:  r.room.FixtureIDPtr(),
		SenderName: senderName,
		Content:    content,
		CreatedAt:  now.UTC(),
	}
	r.entries = append(r.entries, entry{msg: temp, submittedAt: now})
	r.wg.Add(1)
	r.mu.Unlock()

	r.changed()

	result := make(chan SendResult, 1)
	go r.persist(ctx, temp, result)

	return temp, result, nil
}

func newProvisionalID(now time.Time) string {
	return fmt.Sprintf("%s%d-%s", models.ProvisionalIDPrefix, now.UnixNano(), uuid.NewString()[:8])
}

// persist, store çağrısını yapar ve sonucu listeye uygular.
// Close'dan sonra dönen sonuçlar listeye dokunmaz.
func (r *Reconciler) persist(ctx context.Context, temp models.Message, result chan<- SendResult) {
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(r.ctx, cancel)
	defer stop()

	record, err := r.store.InsertMessage(ctx, temp.Room, temp.SenderName, temp.Content)
	if err == nil {
		err = r.checkRecord(record)
	}

	if err != nil {
		r.fail(temp.ID)
		log.Printf("[chat] room=%s send failed: %v", r.room, err)
		result <- SendResult{TempID: temp.ID, Err: fmt.Errorf("%w: %v", pkg.ErrPersistence, err)}
		return
	}

	r.confirm(temp.ID, *record)
	result <- SendResult{TempID: temp.ID, Message: record}
}

func (r *Reconciler) checkRecord(record *models.Message) error {
	if record == nil {
		return fmt.Errorf("store returned no record")
	}
	if err := record.Valid(); err != nil {
		return fmt.Errorf("store returned an invalid record: %w", err)
	}
	if record.Room != r.room {
		return fmt.Errorf("store returned a record of room %s", record.Room)
	}
	return nil
}

// confirm, başarılı persist'in sonucunu uygular.
//
//   - Provisional duruyor, kayıt yok → provisional aynı pozisyonda kayıtla değişir
//   - Provisional duruyor, kayıt zaten var (push önce geldi) → provisional düşer
//   - Provisional yok, kayıt var → no-op
//   - Provisional yok, kayıt yok → kayıt created_at'e göre eklenir
func (r *Reconciler) confirm(tempID string, record models.Message) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	tempIdx := r.indexLocked(tempID)
	recIdx := r.indexLocked(record.ID)

	switch {
	case tempIdx >= 0 && recIdx < 0:
		r.placeLocked(tempIdx, record)
	case tempIdx >= 0 && recIdx >= 0:
		r.removeLocked(tempIdx)
	case tempIdx < 0 && recIdx >= 0:
		r.mu.Unlock()
		return
	default:
		r.insertLocked(record)
	}
	r.mu.Unlock()

	r.changed()
}

// fail, persist hatasında provisional'ı kaldırır.
func (r *Reconciler) fail(tempID string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	idx := r.indexLocked(tempID)
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	r.removeLocked(idx)
	r.mu.Unlock()

	r.changed()
}

// Observe, push ile gelen tek bir authoritative kaydı birleştirir.
// Değişiklik olduysa true döner.
func (r *Reconciler) Observe(record models.Message) bool {
	r.mu.Lock()
	if r.closed || !r.acceptLocked(record) {
		r.mu.Unlock()
		return false
	}
	changed := r.mergeLocked(record)
	r.mu.Unlock()

	if changed {
		r.changed()
	}
	return changed
}

// MergePoll, bir poll sonucunu birleştirir.
//
// replace=false (safety-net poll): her kayıt Observe gibi işlenir, sadece ekleme yapılır.
//
// replace=true (fallback poll): sayfa listenin bayat kısmının yerine geçer.
// Sayfanın en eski kaydından eski local authoritative satırlar korunur,
// geri kalanı sayfa ile değişir. Sayfadaki kayıtlarla eşleşen provisional'lar
// uzlaşır, eşleşmeyenler gönderim sırasıyla sona eklenir.
func (r *Reconciler) MergePoll(records []models.Message, replace bool) {
	page := make([]models.Message, 0, len(records))
	for _, m := range records {
		if m.Valid() == nil && m.Room == r.room && !m.IsProvisional() {
			page = append(page, m)
		}
	}
	sort.SliceStable(page, func(i, j int) bool { return page[i].CreatedAt.Before(page[j].CreatedAt) })

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	var changed bool
	if replace && len(page) > 0 {
		changed = r.replaceLocked(page)
	} else {
		for _, m := range page {
			if r.mergeLocked(m) {
				changed = true
			}
		}
	}
	r.mu.Unlock()

	if changed {
		r.changed()
	}
}

// Load, ilk fetch sonucunu listeye yükler. Mevcut provisional'lar korunur.
func (r *Reconciler) Load(records []models.Message) {
	r.MergePoll(records, true)
}

// Close, reconciler'ı kapatır. Süren persist'ler iptal edilir ve beklenir;
// geç gelen sonuçlar listeye uygulanmaz.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *Reconciler) acceptLocked(m models.Message) bool {
	return m.Valid() == nil && m.Room == r.room && !m.IsProvisional()
}

// mergeLocked, tek bir authoritative kaydın birleşme kuralı.
func (r *Reconciler) mergeLocked(record models.Message) bool {
	if r.indexLocked(record.ID) >= 0 {
		return false
	}
	if idx := r.matchProvisionalLocked(record); idx >= 0 {
		r.placeLocked(idx, record)
		return true
	}
	r.insertLocked(record)
	return true
}

// matchProvisionalLocked, kayıtla (room, sender, content) olarak eşleşen ve
// dedupe penceresi içindeki en eski provisional'ın index'ini döner.
func (r *Reconciler) matchProvisionalLocked(record models.Message) int {
	now := r.now()
	for i, e := range r.entries {
		if !e.provisional() {
			continue
		}
		if e.msg.Room != record.Room || e.msg.SenderName != record.SenderName || e.msg.Content != record.Content {
			continue
		}
		if now.Sub(e.submittedAt) > r.window {
			continue
		}
		return i
	}
	return -1
}

// insertLocked, kaydı created_at'i kendisinden küçük veya eşit olan son
// authoritative satırın arkasına yerleştirir. Yaygın durumda bu, bekleyen
// provisional'ların önüne eklemedir.
func (r *Reconciler) insertLocked(record models.Message) {
	pos := 0
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if !e.provisional() && !e.msg.CreatedAt.After(record.CreatedAt) {
			pos = i + 1
			break
		}
	}

	r.entries = append(r.entries, entry{})
	copy(r.entries[pos+1:], r.entries[pos:])
	r.entries[pos] = entry{msg: record}
}

// placeLocked, idx'teki provisional'ı kayıtla aynı pozisyonda değiştirir.
// Kayıt o pozisyonda authoritative komşularıyla zaman sırasını bozuyorsa
// created_at'e göre yeniden yerleştirilir.
func (r *Reconciler) placeLocked(idx int, record models.Message) {
	r.entries[idx] = entry{msg: record}
	if r.orderedAtLocked(idx) {
		return
	}
	r.removeLocked(idx)
	r.insertLocked(record)
}

func (r *Reconciler) orderedAtLocked(idx int) bool {
	at := r.entries[idx].msg.CreatedAt
	for i := idx - 1; i >= 0; i-- {
		if e := r.entries[i]; !e.provisional() {
			if e.msg.CreatedAt.After(at) {
				return false
			}
			break
		}
	}
	for i := idx + 1; i < len(r.entries); i++ {
		if e := r.entries[i]; !e.provisional() {
			return !e.msg.CreatedAt.Before(at)
		}
	}
	return true
}

// replaceLocked, fallback poll sayfasını uygular.
//
// Sayfanın kapsadığı zaman aralığı (en eski ve en yeni kaydı arası) sayfa ile
// değişir. Aralığın öncesi ve sonrası (sayfa alındıktan sonra gelen push'lar)
// korunur. Provisional'lar her zaman sona, gönderim sırasıyla eklenir.
func (r *Reconciler) replaceLocked(page []models.Message) bool {
	oldest := page[0].CreatedAt
	newest := page[len(page)-1].CreatedAt
	inPage := make(map[string]bool, len(page))
	for _, m := range page {
		inPage[m.ID] = true
	}

	var before, after, provisionals []entry
	for _, e := range r.entries {
		switch {
		case e.provisional():
			provisionals = append(provisionals, e)
		case inPage[e.msg.ID]:
		case e.msg.CreatedAt.Before(oldest):
			before = append(before, e)
		case e.msg.CreatedAt.After(newest):
			after = append(after, e)
		}
	}

	// Sayfadaki veya sonrasındaki kayıtlarla eşleşen provisional'lar uzlaşır.
	now := r.now()
	used := make([]bool, len(provisionals))
	match := func(m models.Message) {
		for i, p := range provisionals {
			if used[i] || now.Sub(p.submittedAt) > r.window {
				continue
			}
			if p.msg.SenderName == m.SenderName && p.msg.Content == m.Content {
				used[i] = true
				return
			}
		}
	}
	for _, m := range page {
		match(m)
	}
	for _, e := range after {
		match(e.msg)
	}

	next := make([]entry, 0, len(before)+len(page)+len(after)+len(provisionals))
	next = append(next, before...)
	for _, m := range page {
		next = append(next, entry{msg: m})
	}
	next = append(next, after...)
	for i, p := range provisionals {
		if !used[i] {
			next = append(next, p)
		}
	}

	if sameEntries(r.entries, next) {
		return false
	}
	r.entries = next
	return true
}

func sameEntries(a, b []entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].msg.ID != b[i].msg.ID {
			return false
		}
	}
	return true
}

func (r *Reconciler) indexLocked(id string) int {
	for i, e := range r.entries {
		if e.msg.ID == id {
			return i
		}
	}
	return -1
}

func (r *Reconciler) removeLocked(i int) {
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
}

// changed, OnChange hook'una güncel snapshot'ı iletir.
func (r *Reconciler) changed() {
	r.mu.Lock()
	fn := r.onChange
	if fn == nil || r.closed {
		r.mu.Unlock()
		return
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	fn(snapshot)
}

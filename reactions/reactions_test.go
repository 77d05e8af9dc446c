package reactions_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/reactions"
)

func TestSummarizeCountsPerKind(t *testing.T) {
	rows := []models.Reaction{
		{TargetID: "m1", UserID: "alice", Kind: models.ReactionLike},
		{TargetID: "m1", UserID: "bob", Kind: models.ReactionLike},
		{TargetID: "m1", UserID: "carol", Kind: models.ReactionFire},
		{TargetID: "m2", UserID: "alice", Kind: models.ReactionSad},
		{TargetID: "m1", UserID: "dave", Kind: "shrug"},
	}

	s := reactions.Summarize("m1", rows, "alice")
	if len(s) != 2 {
		t.Fatalf("expected 2 kinds, got %v", s)
	}
	if s[models.ReactionLike] != (reactions.KindSummary{Count: 2, Mine: true}) {
		t.Fatalf("unexpected like summary %+v", s[models.ReactionLike])
	}
	if s[models.ReactionFire] != (reactions.KindSummary{Count: 1}) {
		t.Fatalf("unexpected fire summary %+v", s[models.ReactionFire])
	}
	if s.Total() != 3 {
		t.Fatalf("expected total 3, got %d", s.Total())
	}
	if kind, ok := s.MineKind(); !ok || kind != models.ReactionLike {
		t.Fatalf("expected mine=like, got %q %v", kind, ok)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := reactions.Summarize("m1", nil, "alice")
	if s == nil || len(s) != 0 {
		t.Fatalf("expected empty non-nil summary, got %#v", s)
	}

	all := reactions.SummarizeAll(map[string][]models.Reaction{"a": nil, "b": nil}, "alice")
	if len(all) != 2 || len(all["a"]) != 0 {
		t.Fatalf("unexpected batch summary %v", all)
	}
}

func TestApplyThreeWayBranch(t *testing.T) {
	var rows []models.Reaction

	steps := []struct {
		kind   models.ReactionKind
		action reactions.Action
		want   []models.ReactionKind
	}{
		{models.ReactionLike, reactions.ActionAdded, []models.ReactionKind{models.ReactionLike}},
		{models.ReactionLike, reactions.ActionRemoved, nil},
		{models.ReactionLove, reactions.ActionAdded, []models.ReactionKind{models.ReactionLove}},
		{models.ReactionFire, reactions.ActionReplaced, []models.ReactionKind{models.ReactionFire}},
	}

	other := models.Reaction{TargetID: "m1", UserID: "bob", Kind: models.ReactionLike}
	rows = append(rows, other)

	for i, step := range steps {
		var action reactions.Action
		rows, action = reactions.Apply(rows, "m1", "alice", step.kind)
		if action != step.action {
			t.Fatalf("step %d: expected %s, got %s", i, step.action, action)
		}

		var mine []models.ReactionKind
		for _, r := range rows {
			if r.UserID == "alice" {
				mine = append(mine, r.Kind)
			}
		}
		if len(mine) != len(step.want) || (len(mine) == 1 && mine[0] != step.want[0]) {
			t.Fatalf("step %d: expected %v, got %v", i, step.want, mine)
		}
		if len(rows) != 1+len(step.want) || rows[0] != other {
			t.Fatalf("step %d: other user's row changed: %+v", i, rows)
		}
	}
}

func TestApplyCollapsesDuplicateRows(t *testing.T) {
	rows := []models.Reaction{
		{TargetID: "m1", UserID: "alice", Kind: models.ReactionLike},
		{TargetID: "m1", UserID: "alice", Kind: models.ReactionSad},
	}

	out, action := reactions.Apply(rows, "m1", "alice", models.ReactionWow)
	if action != reactions.ActionReplaced || len(out) != 1 || out[0].Kind != models.ReactionWow {
		t.Fatalf("unexpected result %s %+v", action, out)
	}
	if rows[0].Kind != models.ReactionLike {
		t.Fatalf("input slice must not be modified")
	}
}

// fakeWriter, persist çağrılarını kaydeder. block doluysa her çağrı bir sinyal bekler.
type fakeWriter struct {
	mu    sync.Mutex
	state map[string]models.ReactionKind
	calls []string
	fail  error
	block chan struct{}

	failKind models.ReactionKind // Sadece bu kind'ın upsert'i başarısız olur
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{state: make(map[string]models.ReactionKind)}
}

func (f *fakeWriter) wait() {
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeWriter) UpsertReaction(ctx context.Context, target models.ReactionTarget, targetID string, kind models.ReactionKind) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "upsert:"+string(kind))
	if f.fail != nil {
		return f.fail
	}
	if f.failKind != "" && f.failKind == kind {
		return errors.New("upsert rejected")
	}
	f.state[targetID] = kind
	return nil
}

func (f *fakeWriter) DeleteReaction(ctx context.Context, target models.ReactionTarget, targetID string) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete")
	if f.fail != nil {
		return f.fail
	}
	delete(f.state, targetID)
	return nil
}

func TestTrackerToggleSequence(t *testing.T) {
	ctx := context.Background()
	w := newFakeWriter()
	tr := reactions.NewTracker(w, models.TargetMessage, "alice")

	var changes int
	tr.OnChange(func(string, reactions.Summary) { changes++ })

	for _, step := range []struct {
		kind   models.ReactionKind
		action reactions.Action
	}{
		{models.ReactionLike, reactions.ActionAdded},
		{models.ReactionLike, reactions.ActionRemoved},
		{models.ReactionLove, reactions.ActionAdded},
	} {
		action, err := tr.Toggle(ctx, "m1", step.kind)
		if err != nil {
			t.Fatalf("toggle %s: %v", step.kind, err)
		}
		if action != step.action {
			t.Fatalf("toggle %s: expected %s, got %s", step.kind, step.action, action)
		}
	}

	rows := tr.Rows("m1")
	if len(rows) != 1 || rows[0].Kind != models.ReactionLove {
		t.Fatalf("expected a single love row, got %+v", rows)
	}
	if w.state["m1"] != models.ReactionLove {
		t.Fatalf("persisted state mismatch: %v", w.state)
	}
	if changes != 3 {
		t.Fatalf("expected 3 change notifications, got %d", changes)
	}
}

func TestTrackerRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	w := newFakeWriter()
	tr := reactions.NewTracker(w, models.TargetComment, "alice")
	tr.Load(map[string][]models.Reaction{
		"c1": {{TargetID: "c1", UserID: "alice", Kind: models.ReactionLike}},
	})

	w.fail = errors.New("network down")
	action, err := tr.Toggle(ctx, "c1", models.ReactionLove)
	if !errors.Is(err, pkg.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if action != reactions.ActionReplaced {
		t.Fatalf("expected replaced, got %s", action)
	}

	s := tr.Summary("c1")
	if len(s) != 1 || !s[models.ReactionLike].Mine {
		t.Fatalf("expected rollback to like, got %v", s)
	}
}

func TestTrackerRejectsUnknownKind(t *testing.T) {
	tr := reactions.NewTracker(newFakeWriter(), models.TargetMessage, "alice")
	if _, err := tr.Toggle(context.Background(), "m1", "meh"); !errors.Is(err, pkg.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// Hızlı iki toggle: ilki persist'te beklerken ikincisi gelir.
// Sadece en son niyet persist edilir, optimistic state son niyeti gösterir.
func TestTrackerLastIntentWins(t *testing.T) {
	ctx := context.Background()
	w := newFakeWriter()
	w.block = make(chan struct{})
	tr := reactions.NewTracker(w, models.TargetMessage, "alice")

	first := make(chan error, 1)
	go func() {
		_, err := tr.Toggle(ctx, "m1", models.ReactionLike)
		first <- err
	}()

	waitFor(t, func() bool { return len(tr.Rows("m1")) == 1 })

	second := make(chan error, 1)
	go func() {
		_, err := tr.Toggle(ctx, "m1", models.ReactionLike)
		second <- err
	}()

	waitFor(t, func() bool { return len(tr.Rows("m1")) == 0 })

	close(w.block)
	if err := <-first; err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second toggle: %v", err)
	}

	if len(tr.Rows("m1")) != 0 {
		t.Fatalf("expected no reaction after double toggle, got %+v", tr.Rows("m1"))
	}
	if _, ok := w.state["m1"]; ok {
		t.Fatalf("persisted state must end without a reaction, got %v (calls %v)", w.state, w.calls)
	}
}

// İlk niyet persist'te beklerken ikincisi gelir; ilki başarılı olur, ikincisi
// başarısız olur. Geri alma, store'un gerçekten tuttuğu duruma dönmelidir.
func TestTrackerRollbackKeepsEarlierPersistedIntent(t *testing.T) {
	ctx := context.Background()
	w := newFakeWriter()
	w.block = make(chan struct{})
	w.failKind = models.ReactionLove
	tr := reactions.NewTracker(w, models.TargetMessage, "alice")

	first := make(chan error, 1)
	go func() {
		_, err := tr.Toggle(ctx, "m1", models.ReactionLike)
		first <- err
	}()
	waitFor(t, func() bool { return len(tr.Rows("m1")) == 1 })

	second := make(chan error, 1)
	go func() {
		_, err := tr.Toggle(ctx, "m1", models.ReactionLove)
		second <- err
	}()
	waitFor(t, func() bool {
		rows := tr.Rows("m1")
		return len(rows) == 1 && rows[0].Kind == models.ReactionLove
	})

	w.block <- struct{}{} // like
	if err := <-first; err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	w.block <- struct{}{} // love
	if err := <-second; !errors.Is(err, pkg.ErrPersistence) {
		t.Fatalf("expected ErrPersistence for second toggle, got %v", err)
	}

	w.mu.Lock()
	persisted := w.state["m1"]
	w.mu.Unlock()
	if persisted != models.ReactionLike {
		t.Fatalf("expected store to hold like, got %q", persisted)
	}

	rows := tr.Rows("m1")
	if len(rows) != 1 || rows[0].Kind != models.ReactionLike {
		t.Fatalf("expected rollback to the persisted like, got %+v", rows)
	}
	if s := tr.Summary("m1"); !s[models.ReactionLike].Mine || s.Total() != 1 {
		t.Fatalf("unexpected summary %v", s)
	}
}

package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
)

// gatedInserter, release kapanana kadar InsertMessage'ı bekletir.
type gatedInserter struct {
	mu      sync.Mutex
	release chan struct{}
	record  models.Message
	err     error
	calls   int
}

func newGatedInserter(record models.Message) *gatedInserter {
	return &gatedInserter{release: make(chan struct{}), record: record}
}

func (g *gatedInserter) InsertMessage(ctx context.Context, room models.RoomScope, senderName, content string) (*models.Message, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if g.err != nil {
		return nil, g.err
	}
	rec := g.record
	return &rec, nil
}

func authoritative(id, sender, content string, at time.Time) models.Message {
	room := models.FixtureRoom(555)
	return models.Message{
		ID:         id,
		Room:       room,
		FixtureID:  room.FixtureIDPtr(),
		SenderName: sender,
		Content:    content,
		CreatedAt:  at,
	}
}

func ids(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	rec := NewReconciler(models.FixtureRoom(555), newGatedInserter(models.Message{}), 0)
	defer rec.Close()

	for _, tc := range []struct{ content, sender string }{
		{"   ", "A"},
		{"hello", " "},
	} {
		_, results, err := rec.Submit(context.Background(), tc.content, tc.sender)
		if !errors.Is(err, pkg.ErrValidation) {
			t.Fatalf("expected ErrValidation for %+v, got %v", tc, err)
		}
		if results != nil {
			t.Fatalf("no result channel expected on validation error")
		}
	}
	if rec.Len() != 0 {
		t.Fatalf("validation failures must not create entries")
	}
}

func TestSubmitAppendsProvisionalImmediately(t *testing.T) {
	base := time.Now().UTC()
	ins := newGatedInserter(authoritative("msg-9001", "A", "great match", base.Add(time.Second)))
	rec := NewReconciler(models.FixtureRoom(555), ins, 0)
	defer rec.Close()

	rec.Load([]models.Message{authoritative("msg-1", "B", "kickoff", base.Add(-time.Minute))})

	temp, results, err := rec.Submit(context.Background(), "  great match ", "A")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !temp.IsProvisional() || temp.Content != "great match" {
		t.Fatalf("unexpected provisional %+v", temp)
	}

	snap := rec.Snapshot()
	if len(snap) != 2 || snap[1].ID != temp.ID {
		t.Fatalf("provisional must be at the tail, got %v", ids(snap))
	}

	close(ins.release)
	res := <-results
	if res.Err != nil || res.Message.ID != "msg-9001" || res.TempID != temp.ID {
		t.Fatalf("unexpected result %+v", res)
	}

	snap = rec.Snapshot()
	if len(snap) != 2 || snap[1].ID != "msg-9001" {
		t.Fatalf("confirmation must replace in place, got %v", ids(snap))
	}
}

func TestSubmitFailureRemovesProvisional(t *testing.T) {
	ins := newGatedInserter(models.Message{})
	ins.err = errors.New("insert rejected")
	rec := NewReconciler(models.GlobalRoom, ins, 0)
	defer rec.Close()

	_, results, err := rec.Submit(context.Background(), "hi", "A")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.Len() != 1 {
		t.Fatalf("expected provisional entry")
	}

	close(ins.release)
	res := <-results
	if !errors.Is(res.Err, pkg.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", res.Err)
	}
	if rec.Len() != 0 {
		t.Fatalf("failed provisional must be removed, got %v", ids(rec.Snapshot()))
	}
	if ins.calls != 1 {
		t.Fatalf("send must not be retried, got %d calls", ins.calls)
	}
}

// Bir mesaj onay, push ve fallback poll ile birer kez gözlemlenir; her sırada
// liste o mesaj için tek satır içermelidir.
func TestReconcileEveryInterleavingYieldsOneEntry(t *testing.T) {
	orders := [][]string{
		{"confirm", "push", "poll"},
		{"confirm", "poll", "push"},
		{"push", "confirm", "poll"},
		{"push", "poll", "confirm"},
		{"poll", "confirm", "push"},
		{"poll", "push", "confirm"},
	}

	for _, order := range orders {
		for _, replace := range []bool{true, false} {
			base := time.Now().UTC()
			earlier := authoritative("msg-1", "B", "kickoff", base.Add(-time.Minute))
			record := authoritative("msg-9001", "A", "great match", base)

			ins := newGatedInserter(record)
			rec := NewReconciler(models.FixtureRoom(555), ins, 0)
			rec.Load([]models.Message{earlier})

			_, results, err := rec.Submit(context.Background(), "great match", "A")
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}

			for _, step := range order {
				switch step {
				case "confirm":
					close(ins.release)
					if res := <-results; res.Err != nil {
						t.Fatalf("%v: confirm failed: %v", order, res.Err)
					}
				case "push":
					rec.Observe(record)
				case "poll":
					rec.MergePoll([]models.Message{earlier, record}, replace)
				}
			}

			got := ids(rec.Snapshot())
			if len(got) != 2 || got[0] != "msg-1" || got[1] != "msg-9001" {
				t.Fatalf("%v replace=%v: expected [msg-1 msg-9001], got %v", order, replace, got)
			}
			rec.Close()
		}
	}
}

func TestObserveKeepsCreationOrder(t *testing.T) {
	base := time.Now().UTC()
	rec := NewReconciler(models.FixtureRoom(555), newGatedInserter(models.Message{}), 0)
	defer rec.Close()

	rec.Observe(authoritative("m3", "C", "three", base.Add(3*time.Second)))
	rec.Observe(authoritative("m1", "A", "one", base.Add(1*time.Second)))
	rec.Observe(authoritative("m2", "B", "two", base.Add(2*time.Second)))
	rec.Observe(authoritative("m2", "B", "two", base.Add(2*time.Second)))

	got := ids(rec.Snapshot())
	want := []string{"m1", "m2", "m3"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestObserveIgnoresOtherRoomsAndMalformedRows(t *testing.T) {
	rec := NewReconciler(models.FixtureRoom(555), newGatedInserter(models.Message{}), 0)
	defer rec.Close()

	other := authoritative("x1", "A", "elsewhere", time.Now())
	other.Room = models.FixtureRoom(777)
	if rec.Observe(other) {
		t.Fatalf("record of another room must be ignored")
	}
	if rec.Observe(models.Message{ID: "x2", Room: models.FixtureRoom(555)}) {
		t.Fatalf("malformed record must be ignored")
	}
	if rec.Len() != 0 {
		t.Fatalf("expected empty list")
	}
}

func TestFallbackPollPreservesProvisionals(t *testing.T) {
	base := time.Now().UTC()
	rec := NewReconciler(models.FixtureRoom(555), newGatedInserter(models.Message{}), 0)
	defer rec.Close()

	rec.Load([]models.Message{
		authoritative("m1", "A", "old", base.Add(-3*time.Minute)),
		authoritative("m2", "B", "mid", base.Add(-2*time.Minute)),
	})
	first, _, _ := rec.Submit(context.Background(), "pending one", "A")
	second, _, _ := rec.Submit(context.Background(), "pending two", "A")

	rec.MergePoll([]models.Message{
		authoritative("m2", "B", "mid", base.Add(-2*time.Minute)),
		authoritative("m3", "C", "new", base.Add(-time.Minute)),
	}, true)

	got := ids(rec.Snapshot())
	want := []string{"m1", "m2", "m3", first.ID, second.ID}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestDedupeWindowExpires(t *testing.T) {
	clock := time.Now()
	rec := NewReconciler(models.GlobalRoom, newGatedInserter(models.Message{}), time.Second)
	rec.now = func() time.Time { return clock }
	defer rec.Close()

	temp, _, err := rec.Submit(context.Background(), "same text", "A")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	clock = clock.Add(2 * time.Second)
	record := authoritative("m1", "A", "same text", clock.UTC())
	record.Room = models.GlobalRoom
	record.FixtureID = nil
	rec.Observe(record)

	got := ids(rec.Snapshot())
	if len(got) != 2 || got[0] != "m1" || got[1] != temp.ID {
		t.Fatalf("stale provisional must not be paired, got %v", got)
	}
}

func TestCloseIgnoresLateResults(t *testing.T) {
	ins := newGatedInserter(authoritative("m1", "A", "late", time.Now()))
	rec := NewReconciler(models.FixtureRoom(555), ins, 0)

	var notified int
	rec.OnChange(func([]models.Message) { notified++ })

	_, results, _ := rec.Submit(context.Background(), "late", "A")
	before := notified

	rec.Close()
	res := <-results
	if res.Err == nil {
		t.Fatalf("in-flight send must be cancelled on close")
	}
	if notified != before {
		t.Fatalf("no change notifications expected after close")
	}
	if _, _, err := rec.Submit(context.Background(), "again", "A"); err == nil {
		t.Fatalf("submit after close must fail")
	}
}

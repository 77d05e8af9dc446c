package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/storeclient"
)

var (
	alice = models.User{ID: "user-a", DisplayName: "A"}
	bob   = models.User{ID: "user-b", DisplayName: "B"}
)

func fastOptions() Options {
	return Options{
		SubscribeTimeout:     50 * time.Millisecond,
		SafetyPollInterval:   time.Hour,
		FallbackPollInterval: 20 * time.Millisecond,
	}
}

// transitions, OnStateChange geçişlerini sırasıyla kaydeder.
type transitions struct {
	mu   sync.Mutex
	seen []State
}

func (tr *transitions) record(_, to State) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.seen = append(tr.seen, to)
}

func (tr *transitions) list() []State {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]State(nil), tr.seen...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startSupervisor(t *testing.T, store *storeclient.MemoryStore, room models.RoomScope, opts Options) (*Supervisor, *Reconciler, *transitions) {
	t.Helper()
	rec := NewReconciler(room, store, 0)
	sup := NewSupervisor(store, rec, opts)
	tr := &transitions{}
	sup.OnStateChange(tr.record)
	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		sup.Close()
		rec.Close()
	})
	return sup, rec, tr
}

func hasMessage(rec *Reconciler, content string) bool {
	for _, m := range rec.Snapshot() {
		if m.Content == content {
			return true
		}
	}
	return false
}

func TestSupervisorSubscribesAndReceivesPushes(t *testing.T) {
	store := storeclient.NewMemoryStore(alice)
	room := models.FixtureRoom(555)
	sup, rec, _ := startSupervisor(t, store, room, fastOptions())

	waitFor(t, "SUBSCRIBED", func() bool { return sup.State() == StateSubscribed })

	if _, err := store.As(bob).InsertMessage(context.Background(), room, "B", "pushed"); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	waitFor(t, "pushed message", func() bool { return hasMessage(rec, "pushed") })

	// Subscribe timeout'u geçtikten sonra da SUBSCRIBED kalmalı.
	time.Sleep(80 * time.Millisecond)
	if sup.State() != StateSubscribed {
		t.Fatalf("expected SUBSCRIBED, got %s", sup.State())
	}
}

func TestSupervisorTimeoutFallsBackToPolling(t *testing.T) {
	store := storeclient.NewMemoryStore(alice)
	store.SetSubscribeMode(storeclient.SubscribeSilent)
	room := models.FixtureRoom(555)
	sup, rec, tr := startSupervisor(t, store, room, fastOptions())

	waitFor(t, "FALLBACK_POLLING", func() bool { return sup.State() == StateFallbackPolling })

	got := tr.list()
	if len(got) != 2 || got[0] != StateTimedOut || got[1] != StateFallbackPolling {
		t.Fatalf("unexpected transitions %v", got)
	}

	// Push'suz yazılan kayıt fallback poll ile görünür hale gelmeli.
	store.Seed(models.Message{
		ID:         "seeded-1",
		Room:       room,
		FixtureID:  room.FixtureIDPtr(),
		SenderName: "B",
		Content:    "seen by polling",
		CreatedAt:  time.Now().UTC(),
	})
	waitFor(t, "polled message", func() bool { return hasMessage(rec, "seen by polling") })
}

func TestSupervisorErrorFallsBackToPolling(t *testing.T) {
	store := storeclient.NewMemoryStore(alice)
	store.SetSubscribeMode(storeclient.SubscribeReject)
	sup, _, tr := startSupervisor(t, store, models.GlobalRoom, fastOptions())

	waitFor(t, "FALLBACK_POLLING", func() bool { return sup.State() == StateFallbackPolling })

	got := tr.list()
	if len(got) != 2 || got[0] != StateError {
		t.Fatalf("unexpected transitions %v", got)
	}
	fetches := store.Calls(storeclient.OpFetchMessages)
	waitFor(t, "fallback polls", func() bool { return store.Calls(storeclient.OpFetchMessages) >= fetches+2 })
}

func TestSupervisorDroppedChannelFallsBack(t *testing.T) {
	store := storeclient.NewMemoryStore(alice)
	room := models.FixtureRoom(9)
	sup, _, tr := startSupervisor(t, store, room, fastOptions())

	waitFor(t, "SUBSCRIBED", func() bool { return sup.State() == StateSubscribed })
	store.DropSubscriptions(room)
	waitFor(t, "FALLBACK_POLLING", func() bool { return sup.State() == StateFallbackPolling })

	got := tr.list()
	want := []State{StateSubscribed, StateError, StateFallbackPolling}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if n := store.ActiveSubscriptions(room); n != 0 {
		t.Fatalf("failed subscription must be closed, %d still open", n)
	}
}

func TestSupervisorCloseStopsEverything(t *testing.T) {
	store := storeclient.NewMemoryStore(alice)
	store.SetSubscribeMode(storeclient.SubscribeSilent)
	room := models.FixtureRoom(3)

	rec := NewReconciler(room, store, 0)
	defer rec.Close()
	sup := NewSupervisor(store, rec, Options{
		SubscribeTimeout:     time.Hour,
		SafetyPollInterval:   10 * time.Millisecond,
		FallbackPollInterval: 10 * time.Millisecond,
	})
	tr := &transitions{}
	sup.OnStateChange(tr.record)
	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, "subscription", func() bool { return store.ActiveSubscriptions(room) == 1 })
	sup.Close()
	sup.Close()

	if sup.State() != StateClosed {
		t.Fatalf("expected CLOSED, got %s", sup.State())
	}
	if n := store.ActiveSubscriptions(room); n != 0 {
		t.Fatalf("subscription must be closed, %d still open", n)
	}

	fetches := store.Calls(storeclient.OpFetchMessages)
	seen := len(tr.list())
	time.Sleep(60 * time.Millisecond)

	if store.Calls(storeclient.OpFetchMessages) != fetches {
		t.Fatalf("no polls expected after close")
	}
	if len(tr.list()) != seen {
		t.Fatalf("no transitions expected after CLOSED, got %v", tr.list())
	}
	if err := sup.Start(context.Background()); err == nil {
		t.Fatalf("Start after Close must fail")
	}
}

func TestSupervisorStartAfterCloseNeverRuns(t *testing.T) {
	store := storeclient.NewMemoryStore(alice)
	room := models.FixtureRoom(4)
	rec := NewReconciler(room, store, 0)
	defer rec.Close()

	sup := NewSupervisor(store, rec, fastOptions())
	tr := &transitions{}
	sup.OnStateChange(tr.record)
	sup.Close()

	if err := sup.Start(context.Background()); err == nil {
		t.Fatalf("Start after Close must fail")
	}
	if got := tr.list(); len(got) != 1 || got[0] != StateClosed {
		t.Fatalf("expected single CLOSED transition, got %v", got)
	}
	time.Sleep(30 * time.Millisecond)
	if n := store.Calls(storeclient.OpFetchMessages); n != 0 {
		t.Fatalf("closed supervisor must not fetch, got %d calls", n)
	}
}

func TestSupervisorConcurrentStartCloseLeavesNothingRunning(t *testing.T) {
	for i := 0; i < 20; i++ {
		store := storeclient.NewMemoryStore(alice)
		store.SetSubscribeMode(storeclient.SubscribeSilent)
		room := models.FixtureRoom(int64(100 + i))
		rec := NewReconciler(room, store, 0)
		sup := NewSupervisor(store, rec, Options{
			SubscribeTimeout:     time.Hour,
			SafetyPollInterval:   5 * time.Millisecond,
			FallbackPollInterval: 5 * time.Millisecond,
		})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = sup.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			sup.Close()
		}()
		wg.Wait()

		if sup.State() != StateClosed {
			t.Fatalf("iteration %d: expected CLOSED, got %s", i, sup.State())
		}
		if n := store.ActiveSubscriptions(room); n != 0 {
			t.Fatalf("iteration %d: %d subscriptions left open", i, n)
		}
		fetches := store.Calls(storeclient.OpFetchMessages)
		time.Sleep(15 * time.Millisecond)
		if got := store.Calls(storeclient.OpFetchMessages); got != fetches {
			t.Fatalf("iteration %d: supervisor kept polling after Close", i)
		}
		rec.Close()
	}
}

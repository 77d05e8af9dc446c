package storeclient_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/storeclient"
)

var (
	alice = models.User{ID: "user-a", DisplayName: "A", Role: "moderator"}
	bob   = models.User{ID: "user-b", Email: "bob@example.com"}
)

func nextStatus(t *testing.T, sub storeclient.Subscription) storeclient.Status {
	t.Helper()
	select {
	case st, ok := <-sub.Status():
		if !ok {
			t.Fatalf("status channel closed")
		}
		return st
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for status")
	}
	return ""
}

func nextMessage(t *testing.T, sub storeclient.Subscription) models.Message {
	t.Helper()
	select {
	case m, ok := <-sub.Messages():
		if !ok {
			t.Fatalf("message channel closed")
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return models.Message{}
}

func TestMemoryStoreInsertPushesToRoomSubscribers(t *testing.T) {
	ctx := context.Background()
	store := storeclient.NewMemoryStore(alice)
	room := models.FixtureRoom(555)

	sub, err := store.Subscribe(ctx, room)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	other, err := store.Subscribe(ctx, models.GlobalRoom)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer other.Close()

	if st := nextStatus(t, sub); st != storeclient.StatusConnecting {
		t.Fatalf("expected connecting first, got %s", st)
	}
	if st := nextStatus(t, sub); st != storeclient.StatusSubscribed {
		t.Fatalf("expected subscribed, got %s", st)
	}

	msg, err := store.InsertMessage(ctx, room, "A", "great match")
	if err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if msg.ID == "" || msg.UserID != alice.ID || msg.Role == nil || *msg.Role != "moderator" {
		t.Fatalf("unexpected record %+v", msg)
	}
	if got := nextMessage(t, sub); got.ID != msg.ID {
		t.Fatalf("expected pushed %s, got %s", msg.ID, got.ID)
	}
	select {
	case m := <-other.Messages():
		t.Fatalf("global subscriber received fixture message %s", m.ID)
	default:
	}

	fetched, err := store.FetchMessages(ctx, room, 50)
	if err != nil || len(fetched) != 1 {
		t.Fatalf("FetchMessages: %v %v", fetched, err)
	}
}

func TestMemoryStoreSubscribeModes(t *testing.T) {
	ctx := context.Background()
	store := storeclient.NewMemoryStore(alice)

	store.SetSubscribeMode(storeclient.SubscribeReject)
	sub, err := store.Subscribe(ctx, models.GlobalRoom)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	nextStatus(t, sub)
	if st := nextStatus(t, sub); st != storeclient.StatusError {
		t.Fatalf("expected error status, got %s", st)
	}
	sub.Close()

	if n := store.ActiveSubscriptions(models.GlobalRoom); n != 0 {
		t.Fatalf("closed subscription still active: %d", n)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestMemoryStoreFailureInjection(t *testing.T) {
	ctx := context.Background()
	store := storeclient.NewMemoryStore(alice)
	boom := errors.New("boom")

	store.SetFailure(storeclient.OpInsertMessage, boom)
	if _, err := store.InsertMessage(ctx, models.GlobalRoom, "A", "hi"); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	store.SetFailure(storeclient.OpInsertMessage, nil)
	if _, err := store.InsertMessage(ctx, models.GlobalRoom, "A", "hi"); err != nil {
		t.Fatalf("InsertMessage after clear: %v", err)
	}
	if n := store.Calls(storeclient.OpInsertMessage); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestMemoryStoreReactionsSingleRowPerUser(t *testing.T) {
	ctx := context.Background()
	store := storeclient.NewMemoryStore(alice)

	msg, err := store.InsertMessage(ctx, models.GlobalRoom, "A", "hi")
	if err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	if err := store.UpsertReaction(ctx, models.TargetMessage, "missing", models.ReactionLike); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("expected not found for unknown target, got %v", err)
	}

	for _, kind := range []models.ReactionKind{models.ReactionLike, models.ReactionLove} {
		if err := store.UpsertReaction(ctx, models.TargetMessage, msg.ID, kind); err != nil {
			t.Fatalf("UpsertReaction: %v", err)
		}
	}
	if err := store.As(bob).UpsertReaction(ctx, models.TargetMessage, msg.ID, models.ReactionFire); err != nil {
		t.Fatalf("UpsertReaction bob: %v", err)
	}

	rows, err := store.FetchReactions(ctx, models.TargetMessage, []string{msg.ID})
	if err != nil {
		t.Fatalf("FetchReactions: %v", err)
	}
	if len(rows[msg.ID]) != 2 {
		t.Fatalf("expected one row per user, got %v", rows[msg.ID])
	}

	if err := store.DeleteReaction(ctx, models.TargetMessage, msg.ID); err != nil {
		t.Fatalf("DeleteReaction: %v", err)
	}
	rows, _ = store.FetchReactions(ctx, models.TargetMessage, []string{msg.ID})
	if len(rows[msg.ID]) != 1 || rows[msg.ID][0].UserID != bob.ID {
		t.Fatalf("expected only bob's row, got %v", rows[msg.ID])
	}
}

func TestMemoryStoreCommentRules(t *testing.T) {
	ctx := context.Background()
	store := storeclient.NewMemoryStore(alice)

	top, err := store.InsertComment(ctx, 555, "top", nil)
	if err != nil {
		t.Fatalf("InsertComment: %v", err)
	}
	if top.AuthorName != "A" {
		t.Fatalf("expected author name from profile, got %q", top.AuthorName)
	}
	reply, err := store.As(bob).InsertComment(ctx, 555, "reply", &top.ID)
	if err != nil {
		t.Fatalf("InsertComment reply: %v", err)
	}
	if reply.AuthorName != "bob" {
		t.Fatalf("expected author name from email prefix, got %q", reply.AuthorName)
	}

	if _, err := store.InsertComment(ctx, 555, "nested", &reply.ID); !errors.Is(err, pkg.ErrBadRequest) {
		t.Fatalf("expected bad request for reply-to-reply, got %v", err)
	}
	if _, err := store.InsertComment(ctx, 777, "cross", &top.ID); !errors.Is(err, pkg.ErrBadRequest) {
		t.Fatalf("expected bad request for cross-fixture reply, got %v", err)
	}

	if _, err := store.As(bob).DeleteComment(ctx, top.ID); !errors.Is(err, pkg.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	deletion, err := store.DeleteComment(ctx, top.ID)
	if err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if deletion.Removed != 2 || deletion.FixtureID != 555 {
		t.Fatalf("unexpected deletion %+v", deletion)
	}

	counts, err := store.CommentCounts(ctx, []int64{555})
	if err != nil {
		t.Fatalf("CommentCounts: %v", err)
	}
	if counts.Total != 0 || counts.PerFixture[555] != 0 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

package services_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akinalp/oddsroom/database"
	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/repository"
	"github.com/akinalp/oddsroom/services"
	"github.com/akinalp/oddsroom/ws"
)

type recordedEvent struct {
	room  models.RoomScope
	event ws.Event
}

type recordingHub struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (h *recordingHub) BroadcastToRoom(room models.RoomScope, event ws.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, recordedEvent{room: room, event: event})
}

func (h *recordingHub) last(t *testing.T) recordedEvent {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		t.Fatalf("expected a broadcast")
	}
	return h.events[len(h.events)-1]
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

type fixture struct {
	db       *database.DB
	hub      *recordingHub
	messages services.MessageService
	reacts   services.ReactionService
	comments services.CommentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "services.db"), database.Migrations())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hub := &recordingHub{}
	messageRepo := repository.NewSQLiteMessageRepo(db.Conn)
	commentRepo := repository.NewSQLiteCommentRepo(db.Conn)

	return &fixture{
		db:       db,
		hub:      hub,
		messages: services.NewMessageService(messageRepo, hub),
		reacts: services.NewReactionService(
			db.Conn,
			repository.NewSQLiteReactionRepo(db.Conn, models.TargetMessage),
			repository.NewSQLiteReactionRepo(db.Conn, models.TargetComment),
			messageRepo,
			commentRepo,
			hub,
		),
		comments: services.NewCommentService(db.Conn, commentRepo, hub),
	}
}

var alice = &models.User{ID: "alice", Email: "alice@example.com", Role: "tipster"}
var bob = &models.User{ID: "bob", DisplayName: "Bob"}

func TestMessageCreateDerivesSenderAndRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := models.FixtureRoom(555)

	msg, err := f.messages.Create(ctx, room, alice, &models.CreateMessageRequest{Content: "  great match  "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if msg.SenderName != "alice" || msg.Content != "great match" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Role == nil || *msg.Role != "tipster" {
		t.Fatalf("role should come from the token, got %v", msg.Role)
	}

	ev := f.hub.last(t)
	if ev.room != room || ev.event.Op != ws.OpMessageCreate {
		t.Fatalf("expected message_create to %s, got %s to %s", room, ev.event.Op, ev.room)
	}

	if _, err := f.messages.Create(ctx, room, alice, &models.CreateMessageRequest{Content: "   "}); !errors.Is(err, pkg.ErrBadRequest) {
		t.Fatalf("expected bad request for empty content, got %v", err)
	}

	list, err := f.messages.List(ctx, room, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %d", err, len(list))
	}
	global, err := f.messages.List(ctx, models.GlobalRoom, 10)
	if err != nil || len(global) != 0 {
		t.Fatalf("global room must be isolated: %v %d", err, len(global))
	}
}

func TestReactionToggleThreeWay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.messages.Create(ctx, models.GlobalRoom, alice, &models.CreateMessageRequest{Content: "hi"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	steps := []struct {
		kind   models.ReactionKind
		action models.ToggleAction
		rows   int
	}{
		{models.ReactionLike, models.ToggleAdded, 1},
		{models.ReactionLike, models.ToggleRemoved, 0},
		{models.ReactionLove, models.ToggleAdded, 1},
		{models.ReactionFire, models.ToggleReplaced, 1},
	}

	for i, step := range steps {
		res, err := f.reacts.Toggle(ctx, models.TargetMessage, msg.ID, "bob", step.kind)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if res.Action != step.action {
			t.Fatalf("step %d: expected %s, got %s", i, step.action, res.Action)
		}

		rows, err := f.reacts.List(ctx, models.TargetMessage, []string{msg.ID})
		if err != nil {
			t.Fatalf("step %d list: %v", i, err)
		}
		if len(rows[msg.ID]) != step.rows {
			t.Fatalf("step %d: expected %d rows, got %d", i, step.rows, len(rows[msg.ID]))
		}
	}

	rows, _ := f.reacts.List(ctx, models.TargetMessage, []string{msg.ID})
	if rows[msg.ID][0].Kind != models.ReactionFire {
		t.Fatalf("expected fire, got %s", rows[msg.ID][0].Kind)
	}

	ev := f.hub.last(t)
	data, ok := ev.event.Data.(ws.ReactionUpdateData)
	if !ok || data.Action != models.ToggleReplaced || data.ActorID != "bob" {
		t.Fatalf("unexpected reaction_update %+v", ev.event.Data)
	}
	if len(data.Groups) != 1 || data.Groups[0].Kind != models.ReactionFire || data.Groups[0].Count != 1 {
		t.Fatalf("unexpected groups %+v", data.Groups)
	}
}

func TestReactionUpsertDeleteIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, _ := f.messages.Create(ctx, models.GlobalRoom, alice, &models.CreateMessageRequest{Content: "hi"})
	before := f.hub.count()

	if _, err := f.reacts.Upsert(ctx, models.TargetMessage, msg.ID, "bob", models.ReactionWow); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	res, err := f.reacts.Upsert(ctx, models.TargetMessage, msg.ID, "bob", models.ReactionWow)
	if err != nil || res.Action != "" {
		t.Fatalf("second identical upsert should be a no-op: %v %+v", err, res)
	}
	if _, err := f.reacts.Delete(ctx, models.TargetMessage, msg.ID, "bob"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.reacts.Delete(ctx, models.TargetMessage, msg.ID, "bob"); err != nil {
		t.Fatalf("repeated delete: %v", err)
	}

	if got := f.hub.count() - before; got != 2 {
		t.Fatalf("expected 2 broadcasts (add + remove), got %d", got)
	}

	if _, err := f.reacts.Toggle(ctx, models.TargetMessage, "missing", "bob", models.ReactionLike); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.reacts.Toggle(ctx, models.TargetMessage, msg.ID, "bob", "clap"); !errors.Is(err, pkg.ErrBadRequest) {
		t.Fatalf("expected bad request for unknown kind, got %v", err)
	}
}

func TestCommentThreadRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	top, err := f.comments.Create(ctx, 555, alice, &models.CreateCommentRequest{Content: "who wins?"})
	if err != nil {
		t.Fatalf("create top: %v", err)
	}
	if top.AuthorName != "alice" {
		t.Fatalf("author name should be derived, got %q", top.AuthorName)
	}

	reply, err := f.comments.Create(ctx, 555, bob, &models.CreateCommentRequest{Content: "home side", ParentID: &top.ID})
	if err != nil {
		t.Fatalf("create reply: %v", err)
	}

	if _, err := f.comments.Create(ctx, 555, alice, &models.CreateCommentRequest{Content: "nested", ParentID: &reply.ID}); !errors.Is(err, pkg.ErrBadRequest) {
		t.Fatalf("reply to reply must be rejected, got %v", err)
	}
	if _, err := f.comments.Create(ctx, 777, alice, &models.CreateCommentRequest{Content: "x", ParentID: &top.ID}); !errors.Is(err, pkg.ErrBadRequest) {
		t.Fatalf("cross-fixture reply must be rejected, got %v", err)
	}

	thread, err := f.comments.ListThread(ctx, 555)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if len(thread) != 1 || len(thread[0].Replies) != 1 || thread[0].Replies[0].ID != reply.ID {
		t.Fatalf("unexpected thread %+v", thread)
	}

	ev := f.hub.last(t)
	if ev.room != models.FixtureRoom(555) || ev.event.Op != ws.OpCommentUpdate {
		t.Fatalf("expected comment_update to fixture room, got %s to %s", ev.event.Op, ev.room)
	}
}

func TestCommentDeleteAuthorOnlyAndCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	top, _ := f.comments.Create(ctx, 555, alice, &models.CreateCommentRequest{Content: "top"})
	reply, _ := f.comments.Create(ctx, 555, bob, &models.CreateCommentRequest{Content: "reply", ParentID: &top.ID})
	if _, err := f.reacts.Toggle(ctx, models.TargetComment, reply.ID, "alice", models.ReactionLaugh); err != nil {
		t.Fatalf("react: %v", err)
	}

	if _, err := f.comments.Delete(ctx, top.ID, "bob"); !errors.Is(err, pkg.ErrForbidden) {
		t.Fatalf("non-author delete must be forbidden, got %v", err)
	}
	counts, _ := f.comments.Counts(ctx, []int64{555})
	if counts.PerFixture[555] != 2 {
		t.Fatalf("forbidden delete must not remove anything, count=%d", counts.PerFixture[555])
	}

	deletion, err := f.comments.Delete(ctx, top.ID, "alice")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deletion.Removed != 2 || deletion.FixtureID != 555 {
		t.Fatalf("expected comment + reply removed from fixture 555, got %+v", deletion)
	}

	counts, _ = f.comments.Counts(ctx, []int64{555, 777})
	if counts.Total != 0 || counts.PerFixture[555] != 0 || counts.PerFixture[777] != 0 {
		t.Fatalf("unexpected counts %+v", counts)
	}

	rows, _ := f.reacts.List(ctx, models.TargetComment, []string{reply.ID})
	if len(rows[reply.ID]) != 0 {
		t.Fatalf("reactions of removed replies must cascade")
	}
}

func signToken(t *testing.T, secret string, claims models.TokenClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestValidateAccessToken(t *testing.T) {
	auth := services.NewAuthService("secret", "oddsroom-idp")
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	good := signToken(t, "secret", models.TokenClaims{
		Email: "a@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "u1", Issuer: "oddsroom-idp", ExpiresAt: exp,
		},
	})
	claims, err := auth.ValidateAccessToken(good)
	if err != nil || claims.Subject != "u1" || claims.Email != "a@example.com" {
		t.Fatalf("valid token rejected: %v %+v", err, claims)
	}

	cases := map[string]string{
		"wrong secret": signToken(t, "other", models.TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "oddsroom-idp", ExpiresAt: exp}}),
		"wrong issuer": signToken(t, "secret", models.TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "evil", ExpiresAt: exp}}),
		"no expiry":    signToken(t, "secret", models.TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: "oddsroom-idp"}}),
		"no subject":   signToken(t, "secret", models.TokenClaims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "oddsroom-idp", ExpiresAt: exp}}),
		"garbage":      "not-a-jwt",
	}
	for name, token := range cases {
		if _, err := auth.ValidateAccessToken(token); !errors.Is(err, pkg.ErrUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
	}
}

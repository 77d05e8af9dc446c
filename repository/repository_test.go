package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/akinalp/oddsroom/database"
	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/repository"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "repo.db"), database.Migrations())
	if err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createMessage(t *testing.T, repo repository.MessageRepository, room models.RoomScope, content string) *models.Message {
	t.Helper()
	msg := &models.Message{Room: room, UserID: "u1", SenderName: "A", Content: content}
	if err := repo.Create(context.Background(), msg); err != nil {
		t.Fatalf("create message %q: %v", content, err)
	}
	return msg
}

func TestListByRoomIsolatesScopes(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewSQLiteMessageRepo(db.Conn)
	ctx := context.Background()

	createMessage(t, repo, models.GlobalRoom, "global hello")
	createMessage(t, repo, models.FixtureRoom(555), "great match")
	createMessage(t, repo, models.FixtureRoom(777), "other match")

	fixture, err := repo.ListByRoom(ctx, models.FixtureRoom(555), 50)
	if err != nil {
		t.Fatalf("ListByRoom fixture: %v", err)
	}
	if len(fixture) != 1 || fixture[0].Content != "great match" {
		t.Fatalf("unexpected fixture room contents: %+v", fixture)
	}
	if fixture[0].Room != models.FixtureRoom(555) || fixture[0].FixtureID == nil || *fixture[0].FixtureID != 555 {
		t.Fatalf("room not restored from row: %+v", fixture[0])
	}

	global, err := repo.ListByRoom(ctx, models.GlobalRoom, 50)
	if err != nil {
		t.Fatalf("ListByRoom global: %v", err)
	}
	if len(global) != 1 || global[0].Content != "global hello" || global[0].FixtureID != nil {
		t.Fatalf("unexpected global room contents: %+v", global)
	}
}

func TestListByRoomReturnsNewestAscending(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewSQLiteMessageRepo(db.Conn)
	room := models.FixtureRoom(1)

	for _, c := range []string{"m1", "m2", "m3", "m4"} {
		createMessage(t, repo, room, c)
	}

	got, err := repo.ListByRoom(context.Background(), room, 3)
	if err != nil {
		t.Fatalf("ListByRoom: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i, want := range []string{"m2", "m3", "m4"} {
		if got[i].Content != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got[i].Content)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
			t.Fatalf("messages not ascending at %d", i)
		}
	}
}

func TestGetMessageNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewSQLiteMessageRepo(db.Conn)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReactionUpsertKeepsOneRowPerUser(t *testing.T) {
	db := newTestDB(t)
	messages := repository.NewSQLiteMessageRepo(db.Conn)
	reactions := repository.NewSQLiteReactionRepo(db.Conn, models.TargetMessage)
	ctx := context.Background()

	msg := createMessage(t, messages, models.GlobalRoom, "hi")

	if err := reactions.Upsert(ctx, msg.ID, "u1", models.ReactionLike); err != nil {
		t.Fatalf("Upsert like: %v", err)
	}
	if err := reactions.Upsert(ctx, msg.ID, "u1", models.ReactionLove); err != nil {
		t.Fatalf("Upsert love: %v", err)
	}
	if err := reactions.Upsert(ctx, msg.ID, "u2", models.ReactionLove); err != nil {
		t.Fatalf("Upsert u2: %v", err)
	}

	rows, err := reactions.ListByTargetIDs(ctx, []string{msg.ID, "unknown"})
	if err != nil {
		t.Fatalf("ListByTargetIDs: %v", err)
	}
	if len(rows[msg.ID]) != 2 {
		t.Fatalf("expected 2 rows, got %+v", rows[msg.ID])
	}
	if _, ok := rows["unknown"]; ok {
		t.Fatalf("unknown target should be absent")
	}

	current, err := reactions.Get(ctx, msg.ID, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if current.Kind != models.ReactionLove {
		t.Fatalf("expected love, got %s", current.Kind)
	}

	groups, err := reactions.GroupsByTargetID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GroupsByTargetID: %v", err)
	}
	if len(groups) != 1 || groups[0].Kind != models.ReactionLove || groups[0].Count != 2 {
		t.Fatalf("unexpected groups: %+v", groups)
	}

	removed, err := reactions.Delete(ctx, msg.ID, "u1")
	if err != nil || !removed {
		t.Fatalf("Delete: removed=%v err=%v", removed, err)
	}
	removed, err = reactions.Delete(ctx, msg.ID, "u1")
	if err != nil || removed {
		t.Fatalf("second Delete should be a no-op: removed=%v err=%v", removed, err)
	}
	if _, err := reactions.Get(ctx, msg.ID, "u1"); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDeleteTopLevelCommentCascades(t *testing.T) {
	db := newTestDB(t)
	comments := repository.NewSQLiteCommentRepo(db.Conn)
	reactions := repository.NewSQLiteReactionRepo(db.Conn, models.TargetComment)
	ctx := context.Background()

	top := &models.Comment{FixtureID: 9, UserID: "u1", AuthorName: "A", Content: "top"}
	if err := comments.Create(ctx, top); err != nil {
		t.Fatalf("create top: %v", err)
	}
	reply := &models.Comment{FixtureID: 9, UserID: "u2", AuthorName: "B", Content: "reply", ParentID: &top.ID}
	if err := comments.Create(ctx, reply); err != nil {
		t.Fatalf("create reply: %v", err)
	}
	other := &models.Comment{FixtureID: 10, UserID: "u1", Content: "elsewhere"}
	if err := comments.Create(ctx, other); err != nil {
		t.Fatalf("create other: %v", err)
	}
	if err := reactions.Upsert(ctx, reply.ID, "u1", models.ReactionFire); err != nil {
		t.Fatalf("react on reply: %v", err)
	}

	counts, err := comments.CountByFixtures(ctx, []int64{9, 10, 11})
	if err != nil {
		t.Fatalf("CountByFixtures: %v", err)
	}
	if counts[9] != 2 || counts[10] != 1 || counts[11] != 0 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	removed, err := comments.Delete(ctx, top.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed rows, got %d", removed)
	}

	if _, err := comments.GetByID(ctx, reply.ID); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("reply should be cascaded, got %v", err)
	}
	rows, err := reactions.ListByTargetIDs(ctx, []string{reply.ID})
	if err != nil {
		t.Fatalf("ListByTargetIDs: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("reply reactions should be cascaded: %+v", rows)
	}

	total, err := comments.CountAll(ctx)
	if err != nil {
		t.Fatalf("CountAll: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected 1 remaining comment, got %d", total)
	}

	if _, err := comments.Delete(ctx, top.ID); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("deleting twice should be ErrNotFound, got %v", err)
	}
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akinalp/oddsroom/database"
	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
)

// reactionTables, target → tablo adı eşlemesi.
// Tablo adı sorguya fmt.Sprintf ile girer, bu yüzden sadece bu listeden seçilir.
var reactionTables = map[models.ReactionTarget]string{
	models.TargetMessage: "message_reactions",
	models.TargetComment: "comment_reactions",
}

// sqliteReactionRepo, ReactionRepository interface'inin SQLite implementasyonu.
type sqliteReactionRepo struct {
	db    database.TxQuerier
	table string
}

// NewSQLiteReactionRepo, constructor — interface döner.
// Bilinmeyen target programlama hatasıdır ve panic'e yol açar.
func NewSQLiteReactionRepo(db database.TxQuerier, target models.ReactionTarget) ReactionRepository {
	table, ok := reactionTables[target]
	if !ok {
		panic(fmt.Sprintf("repository: unknown reaction target %q", target))
	}
	return &sqliteReactionRepo{db: db, table: table}
}

// Get, kullanıcının hedefteki mevcut tepkisini döner. Yoksa pkg.ErrNotFound.
func (r *sqliteReactionRepo) Get(ctx context.Context, targetID, userID string) (*models.Reaction, error) {
	query := fmt.Sprintf(`
		SELECT target_id, user_id, kind, created_at
		FROM %s
		WHERE target_id = ? AND user_id = ?`, r.table)

	var reaction models.Reaction
	err := r.db.QueryRowContext(ctx, query, targetID, userID).Scan(
		&reaction.TargetID, &reaction.UserID, &reaction.Kind, &reaction.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reaction: %w", err)
	}
	return &reaction, nil
}

// Upsert, tepkiyi ekler veya mevcut satırın kind'ını değiştirir.
//
// ON CONFLICT (target_id, user_id) DO UPDATE — tek atomik ifade.
// created_at ilk tepki zamanını korur; sadece kind güncellenir.
func (r *sqliteReactionRepo) Upsert(ctx context.Context, targetID, userID string, kind models.ReactionKind) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (target_id, user_id, kind, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (target_id, user_id) DO UPDATE SET kind = excluded.kind`, r.table)

	if _, err := r.db.ExecContext(ctx, query, targetID, userID, string(kind), time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert reaction: %w", err)
	}
	return nil
}

// Delete, kullanıcının hedefteki tepkisini kaldırır.
// Satır yoksa (false, nil) döner — silme idempotent'tir.
func (r *sqliteReactionRepo) Delete(ctx context.Context, targetID, userID string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE target_id = ? AND user_id = ?`, r.table)

	result, err := r.db.ExecContext(ctx, query, targetID, userID)
	if err != nil {
		return false, fmt.Errorf("delete reaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete reaction rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListByTargetIDs, birden fazla hedefin ham tepki satırlarını batch olarak yükler.
//
// WHERE target_id IN (?, ?, ...) ile tek sorgu yapılır.
func (r *sqliteReactionRepo) ListByTargetIDs(ctx context.Context, targetIDs []string) (map[string][]models.Reaction, error) {
	result := make(map[string][]models.Reaction)
	if len(targetIDs) == 0 {
		return result, nil
	}

	// Dinamik placeholder oluştur: (?, ?, ?, ...)
	placeholders := make([]string, len(targetIDs))
	args := make([]any, len(targetIDs))
	for i, id := range targetIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT target_id, user_id, kind, created_at
		FROM %s
		WHERE target_id IN (%s)
		ORDER BY target_id, created_at ASC`,
		r.table, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reactions by target ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reaction models.Reaction
		if err := rows.Scan(&reaction.TargetID, &reaction.UserID, &reaction.Kind, &reaction.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		result[reaction.TargetID] = append(result[reaction.TargetID], reaction)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reaction rows: %w", err)
	}

	return result, nil
}

// GroupsByTargetID, tek bir hedefin tepkilerini kind bazında gruplanmış döner.
//
// GROUP BY kind + GROUP_CONCAT(user_id) ile tek sorgu.
// Sonuç: [{kind: "like", count: 3, users: ["u1","u2","u3"]}]
func (r *sqliteReactionRepo) GroupsByTargetID(ctx context.Context, targetID string) ([]models.ReactionGroup, error) {
	query := fmt.Sprintf(`
		SELECT kind, COUNT(*) AS count, GROUP_CONCAT(user_id) AS users
		FROM %s
		WHERE target_id = ?
		GROUP BY kind
		ORDER BY MIN(created_at) ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, targetID)
	if err != nil {
		return nil, fmt.Errorf("get reaction groups: %w", err)
	}
	defer rows.Close()

	groups := []models.ReactionGroup{}
	for rows.Next() {
		var (
			kind     models.ReactionKind
			count    int
			usersStr string
		)
		if err := rows.Scan(&kind, &count, &usersStr); err != nil {
			return nil, fmt.Errorf("scan reaction group: %w", err)
		}

		groups = append(groups, models.ReactionGroup{
			Kind:  kind,
			Emoji: kind.Emoji(),
			Count: count,
			Users: strings.Split(usersStr, ","),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reaction group rows: %w", err)
	}

	return groups, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akinalp/oddsroom/database"
	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
)

// sqliteCommentRepo, CommentRepository interface'inin SQLite implementasyonu.
type sqliteCommentRepo struct {
	db database.TxQuerier
}

// NewSQLiteCommentRepo, constructor — interface döner.
func NewSQLiteCommentRepo(db database.TxQuerier) CommentRepository {
	return &sqliteCommentRepo{db: db}
}

func (r *sqliteCommentRepo) Create(ctx context.Context, comment *models.Comment) error {
	comment.ID = uuid.NewString()
	comment.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO comments (id, fixture_id, user_id, author_name, content, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query,
		comment.ID,
		comment.FixtureID,
		comment.UserID,
		comment.AuthorName,
		comment.Content,
		comment.ParentID,
		comment.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (r *sqliteCommentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	query := `
		SELECT id, fixture_id, user_id, author_name, content, parent_id, created_at
		FROM comments
		WHERE id = ?`

	comment, err := scanComment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment by id: %w", err)
	}
	return comment, nil
}

func (r *sqliteCommentRepo) ListByFixture(ctx context.Context, fixtureID int64) ([]models.Comment, error) {
	query := `
		SELECT id, fixture_id, user_id, author_name, content, parent_id, created_at
		FROM comments
		WHERE fixture_id = ?
		ORDER BY created_at ASC, rowid ASC`

	rows, err := r.db.QueryContext(ctx, query, fixtureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		comments = append(comments, *comment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comment rows: %w", err)
	}
	return comments, nil
}

// Delete, yorumu ve (cascade ile) yanıtlarını siler.
//
// Silinecek satır sayısı DELETE'ten önce sayılır — RowsAffected sadece
// doğrudan silinen satırı (1) sayar, cascade ile silinenleri saymaz.
// Tutarlı sonuç için service bu metodu WithTx içinde çağırır.
func (r *sqliteCommentRepo) Delete(ctx context.Context, id string) (int, error) {
	var removed int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE id = ? OR parent_id = ?`, id, id,
	).Scan(&removed); err != nil {
		return 0, fmt.Errorf("failed to count comment subtree: %w", err)
	}
	if removed == 0 {
		return 0, pkg.ErrNotFound
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to delete comment: %w", err)
	}
	return removed, nil
}

// CountByFixtures, verilen fixture'ların yorum sayılarını döner.
// Hiç yorumu olmayan fixture'lar 0 ile döner (map'te key olarak bulunur).
func (r *sqliteCommentRepo) CountByFixtures(ctx context.Context, fixtureIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(fixtureIDs))
	if len(fixtureIDs) == 0 {
		return counts, nil
	}

	placeholders := make([]string, len(fixtureIDs))
	args := make([]any, len(fixtureIDs))
	for i, id := range fixtureIDs {
		placeholders[i] = "?"
		args[i] = id
		counts[id] = 0
	}

	query := fmt.Sprintf(`
		SELECT fixture_id, COUNT(*)
		FROM comments
		WHERE fixture_id IN (%s)
		GROUP BY fixture_id`, strings.Join(placeholders, ","))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			fixtureID int64
			count     int
		)
		if err := rows.Scan(&fixtureID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan comment count: %w", err)
		}
		counts[fixtureID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comment counts: %w", err)
	}
	return counts, nil
}

func (r *sqliteCommentRepo) CountAll(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count all comments: %w", err)
	}
	return total, nil
}

func scanComment(row rowScanner) (*models.Comment, error) {
	var (
		comment  models.Comment
		parentID sql.NullString
	)
	if err := row.Scan(
		&comment.ID, &comment.FixtureID, &comment.UserID, &comment.AuthorName,
		&comment.Content, &parentID, &comment.CreatedAt,
	); err != nil {
		return nil, err
	}

	if parentID.Valid {
		p := parentID.String
		comment.ParentID = &p
	}
	comment.CreatedAt = comment.CreatedAt.UTC()
	return &comment, nil
}

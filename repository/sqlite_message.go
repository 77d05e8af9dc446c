package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/akinalp/oddsroom/database"
	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
)

// sqliteMessageRepo, MessageRepository interface'inin SQLite implementasyonu.
type sqliteMessageRepo struct {
	db database.TxQuerier
}

// NewSQLiteMessageRepo, constructor — interface döner.
func NewSQLiteMessageRepo(db database.TxQuerier) MessageRepository {
	return &sqliteMessageRepo{db: db}
}

// Create, mesajı kaydeder ve ID + created_at alanlarını doldurur.
// Zaman damgası sunucu saatinden (UTC) alınır — client saatine güvenilmez.
func (r *sqliteMessageRepo) Create(ctx context.Context, message *models.Message) error {
	message.ID = uuid.NewString()
	message.CreatedAt = time.Now().UTC()
	message.FixtureID = message.Room.FixtureIDPtr()

	query := `
		INSERT INTO messages (id, fixture_id, user_id, sender_name, content, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query,
		message.ID,
		message.FixtureID,
		message.UserID,
		message.SenderName,
		message.Content,
		message.Role,
		message.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

func (r *sqliteMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := `
		SELECT id, fixture_id, user_id, sender_name, content, role, created_at
		FROM messages
		WHERE id = ?`

	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message by id: %w", err)
	}
	return msg, nil
}

// ListByRoom, odanın en yeni mesajlarını getirir.
//
// Sorgu en yeni limit satırı DESC seçer, sonuç Go tarafında ters çevrilir
// (en eski üstte). Aynı anda oluşan mesajlar için rowid ikinci sıralama
// anahtarıdır — böylece sıra insert sırasıyla tutarlı kalır.
func (r *sqliteMessageRepo) ListByRoom(ctx context.Context, room models.RoomScope, limit int) ([]models.Message, error) {
	var (
		where string
		args  []any
	)
	if fixtureID, ok := room.FixtureID(); ok {
		where = "fixture_id = ?"
		args = append(args, fixtureID)
	} else {
		where = "fixture_id IS NULL"
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, fixture_id, user_id, sender_name, content, role, created_at
		FROM messages
		WHERE %s
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages by room: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, *msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	// DB'den DESC gelir, caller ASC bekler
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// rowScanner, *sql.Row ve *sql.Rows'un ortak Scan metodu.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		msg       models.Message
		fixtureID sql.NullInt64
		role      sql.NullString
	)
	if err := row.Scan(
		&msg.ID, &fixtureID, &msg.UserID, &msg.SenderName, &msg.Content, &role, &msg.CreatedAt,
	); err != nil {
		return nil, err
	}

	if fixtureID.Valid {
		id := fixtureID.Int64
		msg.FixtureID = &id
	}
	if role.Valid {
		r := role.String
		msg.Role = &r
	}
	msg.Room = models.RoomFromFixtureID(msg.FixtureID)
	msg.CreatedAt = msg.CreatedAt.UTC()
	return &msg, nil
}

// Package database, SQLite bağlantısını ve embedded migration'ları yönetir.
//
// Foreign key'ler bağlantı açılırken aktif edilir; tepki ve yanıt cascade
// silmeleri bunlara dayanır.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "modernc.org/sqlite"
)

// DB, SQLite connection pool'unu sarar.
type DB struct {
	Conn *sql.DB
}

// New, dbPath'teki SQLite dosyasını açar ve uygulanmamış migration'ları çalıştırır.
func New(dbPath string, migrationsFS fs.FS) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// busy_timeout: WAL altında eşzamanlı yazmalarda SQLITE_BUSY yerine bekle.
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{Conn: conn}
	if err := db.migrate(context.Background(), migrationsFS); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("[database] connected and migrations applied")
	return db, nil
}

// Close, bağlantıyı kapatır.
func (db *DB) Close() error {
	return db.Conn.Close()
}

// migrate, migrationsFS kökündeki .sql dosyalarını ada göre sırayla uygular.
// Her dosya ve schema_migrations kaydı tek transaction'dır.
func (db *DB) migrate(ctx context.Context, migrationsFS fs.FS) error {
	if _, err := db.Conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	files, err := fs.Glob(migrationsFS, "*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	slices.Sort(files)

	for _, file := range files {
		var done int
		if err := db.Conn.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", file,
		).Scan(&done); err != nil {
			return fmt.Errorf("failed to check migration %s: %w", file, err)
		}
		if done > 0 {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		err = WithTx(ctx, db.Conn, func(tx *sql.Tx) error {
			for i, stmt := range splitStatements(string(content)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("statement %d: %w", i+1, err)
				}
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", file)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", file, err)
		}
		log.Printf("[database] migration applied: %s", file)
	}
	return nil
}

// splitStatements, SQL metnini ';' ile böler. Tek tırnaklı literal içindeki
// ';' ayırıcı sayılmaz ('' kaçışı literal içinde kalır).
func splitStatements(script string) []string {
	var out []string
	inQuote := false
	start := 0

	for i := 0; i < len(script); i++ {
		switch script[i] {
		case '\'':
			inQuote = !inQuote
		case ';':
			if inQuote {
				continue
			}
			if stmt := strings.TrimSpace(script[start:i]); stmt != "" {
				out = append(out, stmt)
			}
			start = i + 1
		}
	}
	if stmt := strings.TrimSpace(script[start:]); stmt != "" {
		out = append(out, stmt)
	}
	return out
}

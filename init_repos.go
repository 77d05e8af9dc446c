// Package main — Repository katmanı başlatma.
//
// initRepositories, tüm repository implementasyonlarını oluşturur.
// Her repository aynı *sql.DB'yi alır ve interface döner.
package main

import (
	"database/sql"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/repository"
)

// Repositories, tüm repository instance'larını tutan container struct.
type Repositories struct {
	Message         repository.MessageRepository
	Comment         repository.CommentRepository
	MessageReaction repository.ReactionRepository
	CommentReaction repository.ReactionRepository
}

// initRepositories, veritabanı bağlantısından tüm repository'leri oluşturur.
//
// Mesaj ve yorum tepkileri aynı şekle sahip iki ayrı tabloda tutulur;
// ReactionRepository target parametresiyle doğru tabloya bağlanır.
func initRepositories(conn *sql.DB) *Repositories {
	return &Repositories{
		Message:         repository.NewSQLiteMessageRepo(conn),
		Comment:         repository.NewSQLiteCommentRepo(conn),
		MessageReaction: repository.NewSQLiteReactionRepo(conn, models.TargetMessage),
		CommentReaction: repository.NewSQLiteReactionRepo(conn, models.TargetComment),
	}
}

// Package main — Service katmanı başlatma.
//
// initServices, tüm service implementasyonlarını oluşturur.
// Her service, ihtiyaç duyduğu repository interface'lerini ve Hub'ı
// constructor injection ile alır.
package main

import (
	"database/sql"
	"time"

	"github.com/akinalp/oddsroom/config"
	"github.com/akinalp/oddsroom/pkg/ratelimit"
	"github.com/akinalp/oddsroom/services"
	"github.com/akinalp/oddsroom/ws"
)

// Services, tüm service instance'larını tutan container struct.
type Services struct {
	Auth     services.AuthService
	Message  services.MessageService
	Reaction services.ReactionService
	Comment  services.CommentService
}

// RateLimiters, rate limiter instance'larını tutan container struct.
//
// Message ve Comment ayrı limiter'lardır: chat'te hızlı yazan bir kullanıcı
// yorum yazma hakkını tüketmez.
type RateLimiters struct {
	Message   *ratelimit.MessageRateLimiter
	Comment   *ratelimit.MessageRateLimiter
	WSConnect *ratelimit.IPLimiter
}

// Close, limiter'ların cleanup goroutine'lerini durdurur.
func (l *RateLimiters) Close() {
	l.Message.Close()
	l.Comment.Close()
	l.WSConnect.Close()
}

// initServices, tüm service'leri oluşturur.
func initServices(conn *sql.DB, repos *Repositories, hub *ws.Hub, cfg *config.Config) *Services {
	return &Services{
		Auth:    services.NewAuthService(cfg.JWT.Secret, cfg.JWT.Issuer),
		Message: services.NewMessageService(repos.Message, hub),
		Reaction: services.NewReactionService(
			conn,
			repos.MessageReaction,
			repos.CommentReaction,
			repos.Message,
			repos.Comment,
			hub,
		),
		Comment: services.NewCommentService(conn, repos.Comment, hub),
	}
}

// initRateLimiters, config'teki değerlerle limiter'ları oluşturur.
func initRateLimiters(cfg *config.Config) *RateLimiters {
	window := time.Duration(cfg.RateLimit.MessageWindow) * time.Second
	cooldown := time.Duration(cfg.RateLimit.MessageCooldown) * time.Second

	return &RateLimiters{
		Message:   ratelimit.NewMessageRateLimiter(cfg.RateLimit.MessageLimit, window, cooldown),
		Comment:   ratelimit.NewMessageRateLimiter(cfg.RateLimit.MessageLimit, window, cooldown),
		WSConnect: ratelimit.NewIPLimiter(cfg.RateLimit.WSConnectRPS, cfg.RateLimit.WSConnectBurst, 10*time.Minute),
	}
}

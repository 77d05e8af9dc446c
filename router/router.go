// Package router, HTTP route'larını ve middleware chain'ini kurar.
//
// main.go bu paketi kullanarak server handler'ını oluşturur; entegrasyon
// testleri de aynı route tablosunu httptest.Server üzerinde çalıştırır.
package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/akinalp/oddsroom/handlers"
	"github.com/akinalp/oddsroom/middleware"
	"github.com/akinalp/oddsroom/ws"
)

// Handlers, route'lara bağlanan handler instance'larını tutan container.
type Handlers struct {
	Health   *handlers.HealthHandler
	Message  *handlers.MessageHandler
	Reaction *handlers.ReactionHandler
	Comment  *handlers.CommentHandler
	WS       *ws.Handler
}

// New, tüm endpoint'leri mux'a bağlar ve CORS ile sarılmış handler döner.
//
// Route sıralama kuralı: Literal path'ler parametrik path'lerle çakışmamalı.
// "/api/comments/counts" (GET) ile "/api/comments/{id}" (DELETE) farklı
// method'larda olduğu için ServeMux ikisini ayırt eder.
func New(h *Handlers, authMw *middleware.AuthMiddleware, corsOrigins []string) http.Handler {
	mux := http.NewServeMux()

	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(handler)
	}

	// Health + metrics (auth yok)
	mux.HandleFunc("GET /api/health", h.Health.Check)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Chat mesajları, {room}: "global" veya "fixture:<id>"
	mux.Handle("GET /api/rooms/{room}/messages", auth(h.Message.List))
	mux.Handle("POST /api/rooms/{room}/messages", auth(h.Message.Create))

	// Tepkiler, {target}: "message" veya "comment"
	mux.Handle("GET /api/reactions/{target}", auth(h.Reaction.List))
	mux.Handle("PUT /api/reactions/{target}/{id}", auth(h.Reaction.Upsert))
	mux.Handle("DELETE /api/reactions/{target}/{id}", auth(h.Reaction.Delete))
	mux.Handle("POST /api/reactions/{target}/{id}/toggle", auth(h.Reaction.Toggle))

	// Yorumlar
	mux.Handle("GET /api/fixtures/{fixtureId}/comments", auth(h.Comment.List))
	mux.Handle("POST /api/fixtures/{fixtureId}/comments", auth(h.Comment.Create))
	mux.Handle("GET /api/comments/counts", auth(h.Comment.Counts))
	mux.Handle("DELETE /api/comments/{id}", auth(h.Comment.Delete))

	// WebSocket: token query parameter ile doğrulanır, auth middleware'den geçmez
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	})

	return corsHandler.Handler(mux)
}

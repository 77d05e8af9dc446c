// Package main — Handler katmanı başlatma.
//
// initHandlers, tüm HTTP handler'larını oluşturur.
// Handler'lar "thin" dir — sadece HTTP parse + service call + response write.
package main

import (
	"net/http"
	"slices"

	"github.com/akinalp/oddsroom/config"
	"github.com/akinalp/oddsroom/database"
	"github.com/akinalp/oddsroom/handlers"
	"github.com/akinalp/oddsroom/router"
	"github.com/akinalp/oddsroom/ws"
)

// initHandlers, tüm handler'ları service ve rate limiter dependency'leri ile oluşturur.
func initHandlers(db *database.DB, svcs *Services, limiters *RateLimiters, hub *ws.Hub, cfg *config.Config) *router.Handlers {
	return &router.Handlers{
		Health:   handlers.NewHealthHandler(db.Conn),
		Message:  handlers.NewMessageHandler(svcs.Message, limiters.Message),
		Reaction: handlers.NewReactionHandler(svcs.Reaction),
		Comment:  handlers.NewCommentHandler(svcs.Comment, limiters.Comment),
		WS:       ws.NewHandler(hub, svcs.Auth, limiters.WSConnect, originChecker(cfg.CORS.Origins)),
	}
}

// originChecker, WS upgrade'inde Origin header'ını CORS listesine göre kontrol eder.
// Origin header'ı olmayan istekler (native client, CLI) kabul edilir.
func originChecker(origins []string) func(r *http.Request) bool {
	if slices.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

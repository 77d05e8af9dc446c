// Package main, oddsroom backend uygulamasının giriş noktasıdır.
//
// Bu dosyanın görevi — Dependency Injection "wire-up":
//  1. Config'i yükle
//  2. Database'i başlat (embed edilmiş migration'lar ile)
//  3. Repository'leri oluştur
//  4. WebSocket Hub'ı başlat, callback'leri bağla
//  5. Service'leri ve rate limiter'ları oluştur
//  6. Handler'ları ve middleware'i oluştur
//  7. Router'ı kur (CORS + /metrics dahil)
//  8. HTTP Server'ı başlat
//  9. Graceful shutdown
//
// Global değişken YOK — her şey bu fonksiyonda oluşturulup birbirine bağlanıyor.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akinalp/oddsroom/config"
	"github.com/akinalp/oddsroom/database"
	"github.com/akinalp/oddsroom/middleware"
	"github.com/akinalp/oddsroom/router"
	"github.com/akinalp/oddsroom/ws"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] oddsroom server starting...")

	// ─── 1. Config ───
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load config: %v", err)
	}
	log.Printf("[main] config loaded (port=%d)", cfg.Server.Port)

	// ─── 2. Database ───
	db, err := database.New(cfg.Database.Path, database.Migrations())
	if err != nil {
		log.Fatalf("[main] failed to initialize database: %v", err)
	}
	defer db.Close()

	// ─── 3. Repository Layer ───
	repos := initRepositories(db.Conn)

	// ─── 4. WebSocket Hub ───
	hub := ws.NewHub()
	registerHubCallbacks(hub)
	go hub.Run()

	// ─── 5. Service Layer ───
	svcs := initServices(db.Conn, repos, hub, cfg)
	limiters := initRateLimiters(cfg)
	defer limiters.Close()

	// ─── 6. Handler + Middleware ───
	h := initHandlers(db, svcs, limiters, hub, cfg)
	authMiddleware := middleware.NewAuthMiddleware(svcs.Auth)

	// ─── 7. Router ───
	handler := router.New(h, authMiddleware, cfg.CORS.Origins)

	// ─── 8. HTTP Server ───
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─── 9. Graceful Shutdown ───
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[main] server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-done
	log.Println("[main] shutting down...")

	// Önce WebSocket bağlantılarını kapat — abone client'lar polling'e düşer.
	// Sonra HTTP server'ı kapat — mevcut request'lerin bitmesini bekler (5sn timeout).
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] forced shutdown: %v", err)
		return
	}

	log.Println("[main] server stopped gracefully")
}

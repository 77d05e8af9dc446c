// Package config, uygulamanın tüm konfigürasyonunu merkezi olarak yönetir.
// Environment variable'lardan okur, .env dosyasını da destekler.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config, uygulamanın tüm konfigürasyon değerlerini taşır.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

// ServerConfig, HTTP server ayarları.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig, SQLite database ayarları.
type DatabaseConfig struct {
	Path string // SQLite dosya yolu (ör: ./data/oddsroom.db)
}

// JWTConfig, token doğrulama ayarları.
// Token'lar harici identity provider tarafından imzalanır; secret onunla paylaşılır.
type JWTConfig struct {
	Secret string // GİZLİ TUTULMALI
	Issuer string // Boşsa "iss" kontrol edilmez
}

// CORSConfig, izin verilen origin'ler.
type CORSConfig struct {
	Origins []string
}

// RateLimitConfig, gönderim ve WS connect limitleri.
type RateLimitConfig struct {
	MessageLimit    int // Window başına mesaj/yorum
	MessageWindow   int // Saniye
	MessageCooldown int // Saniye
	WSConnectRPS    float64
	WSConnectBurst  int
}

// Load, environment variable'lardan Config oluşturur.
// .env dosyası varsa önce onu yükler (development kolaylığı için).
func Load() (*Config, error) {
	// .env yoksa hata vermez — production'da gerçek env variable'lar kullanılır.
	_ = godotenv.Load()

	port, err := getEnvInt("SERVER_PORT", 9090)
	if err != nil {
		return nil, err
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	messageLimit, err := getEnvInt("MESSAGE_RATE_LIMIT", 5)
	if err != nil {
		return nil, err
	}
	messageWindow, err := getEnvInt("MESSAGE_RATE_WINDOW_SECONDS", 5)
	if err != nil {
		return nil, err
	}
	messageCooldown, err := getEnvInt("MESSAGE_RATE_COOLDOWN_SECONDS", 15)
	if err != nil {
		return nil, err
	}

	wsRPS, err := strconv.ParseFloat(getEnv("WS_CONNECT_RPS", "2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid WS_CONNECT_RPS: %w", err)
	}
	wsBurst, err := getEnvInt("WS_CONNECT_BURST", 5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/oddsroom.db"),
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
			Issuer: getEnv("JWT_ISSUER", ""),
		},
		CORS: CORSConfig{
			Origins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		},
		RateLimit: RateLimitConfig{
			MessageLimit:    messageLimit,
			MessageWindow:   messageWindow,
			MessageCooldown: messageCooldown,
			WSConnectRPS:    wsRPS,
			WSConnectBurst:  wsBurst,
		},
	}

	return cfg, nil
}

// Addr, HTTP server'ın dinleyeceği adresi döner (ör: "0.0.0.0:9090").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv, environment variable'ı okur, yoksa fallback değeri döner.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return val, nil
}

// splitList, virgülle ayrılmış listeyi boşlukları atarak böler.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg/ratelimit"
)

// TokenValidator, WebSocket handler'ın JWT doğrulaması için kullandığı interface.
//
// services paketi ws.RoomBroadcaster'ı kullandığı için ws, services'i import edemez
// (döngü). Sadece ValidateAccessToken yeterli — authService bunu implicit olarak karşılar.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*models.TokenClaims, error)
}

// ConnectLimiter, bağlantı denemelerini IP bazlı sınırlar.
type ConnectLimiter interface {
	Allow(key string) bool
}

// Handler, WebSocket bağlantı isteklerini işleyen HTTP handler'ı.
type Handler struct {
	hub            *Hub
	tokenValidator TokenValidator
	limiter        ConnectLimiter
	upgrader       websocket.Upgrader
}

// NewHandler, yeni bir WebSocket handler oluşturur.
//
// limiter nil olabilir — bu durumda connect rate limit uygulanmaz.
// checkOrigin nil ise tüm origin'lere izin verilir (development).
func NewHandler(hub *Hub, tokenValidator TokenValidator, limiter ConnectLimiter, checkOrigin func(r *http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Handler{
		hub:            hub,
		tokenValidator: tokenValidator,
		limiter:        limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// HandleConnection, HTTP bağlantısını WebSocket'e yükseltir ve client'ı Hub'a kaydeder.
//
// Tarayıcılar WS upgrade'de header gönderemediği için token query parameter'ıdır:
//
//	ws://server/ws?token=JWT_TOKEN
//
// Bağlantı kurulduktan sonra client hiçbir odaya abone değildir —
// "subscribe" event'i göndermesi gerekir.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow(ratelimit.ExtractIP(r)) {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokenValidator.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for user %s: %v", claims.Subject, err)
		return
	}

	client := newClient(h.hub, conn, claims.Subject)

	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	// WritePump ayrı goroutine'de, ReadPump mevcut goroutine'de çalışır.
	// ReadPump bağlantı kapanana kadar bloklar.
	go client.WritePump()
	client.ReadPump()
}

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/pkg/ratelimit"
	"github.com/akinalp/oddsroom/services"
)

// MessageHandler, chat mesajı endpoint'lerini yöneten struct.
type MessageHandler struct {
	messageService services.MessageService
	limiter        *ratelimit.MessageRateLimiter
}

// NewMessageHandler, constructor.
// limiter nil ise gönderim rate limit'i uygulanmaz.
func NewMessageHandler(messageService services.MessageService, limiter *ratelimit.MessageRateLimiter) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		limiter:        limiter,
	}
}

func parseRoom(w http.ResponseWriter, r *http.Request) (models.RoomScope, bool) {
	room, err := models.ParseRoomScope(r.PathValue("room"))
	if err != nil {
		pkg.Error(w, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err))
		return "", false
	}
	return room, true
}

// List godoc
// GET /api/rooms/{room}/messages?limit=50
//
// Odanın en yeni mesajlarını kronolojik sırayla döner.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	room, ok := parseRoom(w, r)
	if !ok {
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	messages, err := h.messageService.List(r.Context(), room, limit)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, messages)
}

// Create godoc
// POST /api/rooms/{room}/messages
//
// Body:
//
//	{ "sender_name": "A", "content": "great match" }
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	room, ok := parseRoom(w, r)
	if !ok {
		return
	}

	user, ok := userFromContext(w, r)
	if !ok {
		return
	}

	if rateLimited(w, h.limiter, "messages", user.ID) {
		return
	}

	var req models.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.messageService.Create(r.Context(), room, user, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, message)
}

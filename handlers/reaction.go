package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/services"
)

// ReactionHandler, mesaj ve yorum tepkisi endpoint'lerini yöneten struct.
// {target} path parametresi "message" veya "comment" olabilir.
type ReactionHandler struct {
	reactionService services.ReactionService
}

// NewReactionHandler, constructor.
func NewReactionHandler(reactionService services.ReactionService) *ReactionHandler {
	return &ReactionHandler{reactionService: reactionService}
}

func parseTarget(w http.ResponseWriter, r *http.Request) (models.ReactionTarget, bool) {
	target, err := models.ParseReactionTarget(r.PathValue("target"))
	if err != nil {
		pkg.Error(w, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err))
		return "", false
	}
	return target, true
}

// decodeKind, body'deki kind'ı okur. Kind adı ("like") veya emoji ("👍") kabul edilir.
func decodeKind(w http.ResponseWriter, r *http.Request) (models.ReactionKind, bool) {
	var body models.ReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	kind, err := models.ParseReactionKind(body.Kind)
	if err != nil {
		pkg.Error(w, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err))
		return "", false
	}
	return kind, true
}

// List godoc
// GET /api/reactions/{target}?ids=a,b,c
//
// Birden fazla hedefin ham tepki satırlarını tek istekte döner:
// { "a": [ {target_id, user_id, kind, created_at} ], "b": [] }
func (h *ReactionHandler) List(w http.ResponseWriter, r *http.Request) {
	target, ok := parseTarget(w, r)
	if !ok {
		return
	}

	ids := splitIDs(r.URL.Query().Get("ids"))
	rows, err := h.reactionService.List(r.Context(), target, ids)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	// İstenen her id yanıtta bulunur — tepkisi olmayanlar boş liste ile.
	for _, id := range ids {
		if _, ok := rows[id]; !ok {
			rows[id] = []models.Reaction{}
		}
	}

	pkg.JSON(w, http.StatusOK, rows)
}

// Upsert godoc
// PUT /api/reactions/{target}/{id}
//
// Body: { "kind": "love" }
func (h *ReactionHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	target, ok := parseTarget(w, r)
	if !ok {
		return
	}
	user, ok := userFromContext(w, r)
	if !ok {
		return
	}
	kind, ok := decodeKind(w, r)
	if !ok {
		return
	}

	result, err := h.reactionService.Upsert(r.Context(), target, r.PathValue("id"), user.ID, kind)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, result)
}

// Delete godoc
// DELETE /api/reactions/{target}/{id}
func (h *ReactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	target, ok := parseTarget(w, r)
	if !ok {
		return
	}
	user, ok := userFromContext(w, r)
	if !ok {
		return
	}

	result, err := h.reactionService.Delete(r.Context(), target, r.PathValue("id"), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, result)
}

// Toggle godoc
// POST /api/reactions/{target}/{id}/toggle
//
// Üç yollu toggle: ekle / değiştir / kaldır. Sonuç yapılan işlemi ve güncel grupları içerir.
func (h *ReactionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	target, ok := parseTarget(w, r)
	if !ok {
		return
	}
	user, ok := userFromContext(w, r)
	if !ok {
		return
	}
	kind, ok := decodeKind(w, r)
	if !ok {
		return
	}

	result, err := h.reactionService.Toggle(r.Context(), target, r.PathValue("id"), user.ID, kind)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, result)
}

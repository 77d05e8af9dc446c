package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/pkg/ratelimit"
	"github.com/akinalp/oddsroom/services"
)

// CommentHandler, fixture yorum endpoint'lerini yöneten struct.
type CommentHandler struct {
	commentService services.CommentService
	limiter        *ratelimit.MessageRateLimiter
}

// NewCommentHandler, constructor.
func NewCommentHandler(commentService services.CommentService, limiter *ratelimit.MessageRateLimiter) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		limiter:        limiter,
	}
}

// List godoc
// GET /api/fixtures/{fixtureId}/comments
//
// Üst seviye yorumlar, her biri kronolojik yanıt listesiyle.
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	fixtureID, err := parseFixtureID(r.PathValue("fixtureId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	thread, err := h.commentService.ListThread(r.Context(), fixtureID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, thread)
}

// Create godoc
// POST /api/fixtures/{fixtureId}/comments
//
// Body:
//
//	{ "content": "...", "parent_id": "optional top-level comment id" }
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	fixtureID, err := parseFixtureID(r.PathValue("fixtureId"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	user, ok := userFromContext(w, r)
	if !ok {
		return
	}

	if rateLimited(w, h.limiter, "comments", user.ID) {
		return
	}

	var req models.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	comment, err := h.commentService.Create(r.Context(), fixtureID, user, &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, comment)
}

// Delete godoc
// DELETE /api/comments/{id}
//
// Yanıt: { "comment_id": "...", "fixture_id": 555, "removed": 3 }
// removed, silinen yorum + cascade ile silinen yanıtlar.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(w, r)
	if !ok {
		return
	}

	deletion, err := h.commentService.Delete(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, deletion)
}

// Counts godoc
// GET /api/comments/counts?fixture_ids=1,2,3
func (h *CommentHandler) Counts(w http.ResponseWriter, r *http.Request) {
	var fixtureIDs []int64
	for _, raw := range splitIDs(r.URL.Query().Get("fixture_ids")) {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id <= 0 {
			pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid fixture id: "+raw)
			return
		}
		fixtureIDs = append(fixtureIDs, id)
	}

	counts, err := h.commentService.Counts(r.Context(), fixtureIDs)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, counts)
}

package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
)

// HTTPStore, oddsroom server'ının REST API'si ve /ws endpoint'i üzerinden
// Store sözleşmesini uygular.
//
// Kimlik bearer token'dan gelir: token harici identity provider tarafından
// imzalanır, HTTPStore sadece taşır.
type HTTPStore struct {
	baseURL *url.URL
	token   string
	client  *http.Client
	dialer  *websocket.Dialer

	heartbeatInterval time.Duration
}

// HTTPOption, HTTPStore'un opsiyonel ayarları.
type HTTPOption func(*HTTPStore)

// WithHTTPClient, REST çağrıları için kullanılacak http.Client'ı değiştirir.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) { s.client = c }
}

// WithDialer, WebSocket dialer'ını değiştirir.
func WithDialer(d *websocket.Dialer) HTTPOption {
	return func(s *HTTPStore) { s.dialer = d }
}

// WithHeartbeatInterval, abonelik bağlantısında heartbeat aralığını ayarlar.
func WithHeartbeatInterval(d time.Duration) HTTPOption {
	return func(s *HTTPStore) { s.heartbeatInterval = d }
}

// NewHTTPStore, baseURL (ör: "https://odds.example/") üzerinde çalışan store oluşturur.
func NewHTTPStore(baseURL, token string, opts ...HTTPOption) (*HTTPStore, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url scheme %q", u.Scheme)
	}

	s := &HTTPStore{
		baseURL:           u,
		token:             token,
		client:            &http.Client{Timeout: 10 * time.Second},
		dialer:            websocket.DefaultDialer,
		heartbeatInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// envelope, server'ın {success, data, error} yanıt zarfı.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// do, tek bir REST çağrısı yapar ve zarfın data alanını out'a decode eder.
// Başarısız yanıtlar pkg sentinel error'larına çevrilir.
func (s *HTTPStore) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *s.baseURL
	u.Path = s.baseURL.Path + path
	u.RawPath = ""
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return pkg.ErrorFromStatus(resp.StatusCode, "")
		}
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		status := resp.StatusCode
		if status < 400 {
			status = http.StatusInternalServerError
		}
		return pkg.ErrorFromStatus(status, env.Error)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode data: %w", method, path, err)
	}
	return nil
}

func roomPath(room models.RoomScope) string {
	return "/api/rooms/" + string(room) + "/messages"
}

// FetchMessages, odanın son limit mesajını artan zaman sırasında döner.
func (s *HTTPStore) FetchMessages(ctx context.Context, room models.RoomScope, limit int) ([]models.Message, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var messages []models.Message
	if err := s.do(ctx, http.MethodGet, roomPath(room), query, nil, &messages); err != nil {
		return nil, err
	}
	return validMessages(room, messages), nil
}

// InsertMessage, mesajı persist eder ve server'ın authoritative kaydını döner.
func (s *HTTPStore) InsertMessage(ctx context.Context, room models.RoomScope, senderName, content string) (*models.Message, error) {
	req := models.CreateMessageRequest{SenderName: senderName, Content: content}

	var message models.Message
	if err := s.do(ctx, http.MethodPost, roomPath(room), nil, req, &message); err != nil {
		return nil, err
	}
	if err := message.Valid(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrInternal, err)
	}
	return &message, nil
}

// FetchReactions, verilen hedeflerin tüm tepki satırlarını tek çağrıda getirir.
func (s *HTTPStore) FetchReactions(ctx context.Context, target models.ReactionTarget, ids []string) (map[string][]models.Reaction, error) {
	if len(ids) == 0 {
		return map[string][]models.Reaction{}, nil
	}

	query := url.Values{"ids": {strings.Join(ids, ",")}}

	var rows map[string][]models.Reaction
	if err := s.do(ctx, http.MethodGet, "/api/reactions/"+string(target), query, nil, &rows); err != nil {
		return nil, err
	}
	return validReactions(rows), nil
}

func reactionPath(target models.ReactionTarget, targetID string) string {
	return "/api/reactions/" + string(target) + "/" + targetID
}

// UpsertReaction, kullanıcının hedefteki tepkisini kind olarak ayarlar.
func (s *HTTPStore) UpsertReaction(ctx context.Context, target models.ReactionTarget, targetID string, kind models.ReactionKind) error {
	return s.do(ctx, http.MethodPut, reactionPath(target, targetID), nil, models.ReactionRequest{Kind: string(kind)}, nil)
}

// DeleteReaction, kullanıcının hedefteki tepkisini kaldırır.
func (s *HTTPStore) DeleteReaction(ctx context.Context, target models.ReactionTarget, targetID string) error {
	return s.do(ctx, http.MethodDelete, reactionPath(target, targetID), nil, nil, nil)
}

func commentsPath(fixtureID int64) string {
	return "/api/fixtures/" + strconv.FormatInt(fixtureID, 10) + "/comments"
}

// FetchComments, fixture'ın iki seviyeli thread'ini döner (yanıtlar gömülü).
func (s *HTTPStore) FetchComments(ctx context.Context, fixtureID int64) ([]models.Comment, error) {
	var thread []models.Comment
	if err := s.do(ctx, http.MethodGet, commentsPath(fixtureID), nil, nil, &thread); err != nil {
		return nil, err
	}
	return validThread(fixtureID, thread), nil
}

// InsertComment, yorum veya yanıt oluşturur.
func (s *HTTPStore) InsertComment(ctx context.Context, fixtureID int64, content string, parentID *string) (*models.Comment, error) {
	req := models.CreateCommentRequest{Content: content, ParentID: parentID}

	var comment models.Comment
	if err := s.do(ctx, http.MethodPost, commentsPath(fixtureID), nil, req, &comment); err != nil {
		return nil, err
	}
	if err := comment.Valid(); err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrInternal, err)
	}
	return &comment, nil
}

// DeleteComment, yorumu (ve yanıtlarını) siler; silinen satır sayısını ve
// yorumun fixture'ını döner.
func (s *HTTPStore) DeleteComment(ctx context.Context, commentID string) (*models.CommentDeletion, error) {
	var out models.CommentDeletion
	if err := s.do(ctx, http.MethodDelete, "/api/comments/"+commentID, nil, nil, &out); err != nil {
		return nil, err
	}
	if out.FixtureID <= 0 {
		return nil, fmt.Errorf("%w: delete response has no fixture id", pkg.ErrInternal)
	}
	return &out, nil
}

// CommentCounts, global toplam ve verilen fixture'ların yorum sayılarını döner.
func (s *HTTPStore) CommentCounts(ctx context.Context, fixtureIDs []int64) (*models.CommentCounts, error) {
	query := url.Values{}
	if len(fixtureIDs) > 0 {
		parts := make([]string, len(fixtureIDs))
		for i, id := range fixtureIDs {
			parts[i] = strconv.FormatInt(id, 10)
		}
		query.Set("fixture_ids", strings.Join(parts, ","))
	}

	var counts models.CommentCounts
	if err := s.do(ctx, http.MethodGet, "/api/comments/counts", query, nil, &counts); err != nil {
		return nil, err
	}
	if counts.PerFixture == nil {
		counts.PerFixture = map[int64]int{}
	}
	return &counts, nil
}

package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxCommentLength, bir yorumun rune cinsinden üst sınırı.
const MaxCommentLength = 2000

// Comment, bir maça (fixture) yazılmış yorum veya yanıt.
// DB'deki "comments" tablosunun Go karşılığı.
//
// ParentID nil ise üst seviye yorumdur, değilse bir yanıttır.
// Model tek seviye iç içeliği destekler — yanıtların yanıtı olmaz.
// Replies alanı sadece okuma modelinde (thread) doldurulur.
type Comment struct {
	ID         string    `json:"id"`
	FixtureID  int64     `json:"fixture_id"`
	UserID     string    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	ParentID   *string   `json:"parent_id"`
	CreatedAt  time.Time `json:"created_at"`
	Replies    []Comment `json:"replies,omitempty"`
}

// IsReply, yorumun bir yanıt olup olmadığını döner.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

// Valid, store sınırından gelen bir yorum satırını doğrular.
func (c *Comment) Valid() error {
	if c.ID == "" || c.UserID == "" {
		return fmt.Errorf("comment requires id and user_id")
	}
	if c.FixtureID <= 0 {
		return fmt.Errorf("comment %s has invalid fixture id", c.ID)
	}
	return nil
}

// CreateCommentRequest, yeni yorum isteği.
type CreateCommentRequest struct {
	Content    string  `json:"content"`
	ParentID   *string `json:"parent_id,omitempty"`
	AuthorName string  `json:"author_name,omitempty"`
}

// Validate, CreateCommentRequest'i normalize eder ve doğrular.
func (r *CreateCommentRequest) Validate() error {
	r.Content = strings.TrimSpace(r.Content)
	r.AuthorName = strings.TrimSpace(r.AuthorName)

	contentLen := utf8.RuneCountInString(r.Content)
	if contentLen < 1 {
		return fmt.Errorf("comment content is required")
	}
	if contentLen > MaxCommentLength {
		return fmt.Errorf("comment content must be at most %d characters", MaxCommentLength)
	}
	if utf8.RuneCountInString(r.AuthorName) > MaxSenderNameLength {
		return fmt.Errorf("author name must be at most %d characters", MaxSenderNameLength)
	}

	if r.ParentID != nil && strings.TrimSpace(*r.ParentID) == "" {
		r.ParentID = nil
	}
	return nil
}

// CommentCounts, yorum sayaçları — global toplam ve fixture bazlı sayılar.
// Fixture bazlı sayılar özet rozetlerinde (badge) kullanılır.
type CommentCounts struct {
	Total      int           `json:"total"`
	PerFixture map[int64]int `json:"per_fixture"`
}

// CommentDeletion, silme işleminin sonucu.
// Removed, silinen yorum + cascade ile silinen yanıtların toplamı.
type CommentDeletion struct {
	CommentID string `json:"comment_id"`
	FixtureID int64  `json:"fixture_id"`
	Removed   int    `json:"removed"`
}

// ThreadSize, bir thread'deki toplam yorum sayısını (yanıtlar dahil) döner.
func ThreadSize(thread []Comment) int {
	n := 0
	for _, c := range thread {
		n += 1 + len(c.Replies)
	}
	return n
}

// BuildThread, kronolojik düz yorum listesini iki seviyeli thread'e dönüştürür.
// Parent'ı listede olmayan yanıtlar atlanır.
func BuildThread(flat []Comment) []Comment {
	thread := []Comment{}
	index := make(map[string]int)

	for _, c := range flat {
		if c.IsReply() {
			continue
		}
		c.Replies = nil
		index[c.ID] = len(thread)
		thread = append(thread, c)
	}

	for _, c := range flat {
		if !c.IsReply() {
			continue
		}
		i, ok := index[*c.ParentID]
		if !ok {
			continue
		}
		thread[i].Replies = append(thread[i].Replies, c)
	}

	return thread
}

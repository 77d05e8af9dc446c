// Package handlers, HTTP endpoint'lerini barındırır.
//
// Thin handler pattern: handler'lar sadece request parse + response yazımı yapar.
// İş mantığı services paketindedir.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg"
	"github.com/akinalp/oddsroom/pkg/metrics"
	"github.com/akinalp/oddsroom/pkg/ratelimit"
)

// contextKey, context'te değer taşımak için kullanılan özel key tipi.
// String key kullanmak başka paketlerle çakışmaya neden olabilir.
type contextKey string

// UserContextKey, AuthMiddleware'in doğruladığı *models.User'ı taşır.
const UserContextKey contextKey = "user"

// userFromContext, AuthMiddleware'in eklediği kullanıcıyı döner.
// Kullanıcı yoksa 401 yazar ve false döner.
func userFromContext(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return nil, false
	}
	return user, true
}

// rateLimited, kullanıcı limiti aştıysa 429 + Retry-After yazar ve true döner.
func rateLimited(w http.ResponseWriter, limiter *ratelimit.MessageRateLimiter, endpoint, userID string) bool {
	if limiter == nil || limiter.Allow(userID) {
		return false
	}

	metrics.RateLimited.WithLabelValues(endpoint).Inc()

	retryAfter := limiter.CooldownSeconds(userID)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	pkg.ErrorWithMessage(w, http.StatusTooManyRequests,
		fmt.Sprintf("you are sending too fast, please try again in %s", ratelimit.FormatRetryMessage(retryAfter)))
	return true
}

// splitIDs, "a,b,,c" biçimindeki query parametresini boş olmayan parçalara böler.
func splitIDs(raw string) []string {
	ids := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

// parseFixtureID, path'teki fixture id'sini pozitif int64'e çevirir.
func parseFixtureID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid fixture id %q", pkg.ErrBadRequest, raw)
	}
	return id, nil
}

// Package reactions, düz tepki satırlarını hedef ve tür bazlı özetlere çevirir
// ve üç yollu toggle kararını verir.
//
// Aggregator fonksiyonları saftır: gizli state yoktur, aynı girdi her zaman
// aynı çıktıyı verir. Optimistic UI state'i Tracker'da tutulur.
package reactions

import "github.com/akinalp/oddsroom/models"

// Action, toggle'ın hangi dala girdiği.
type Action = models.ToggleAction

const (
	ActionAdded    = models.ToggleAdded
	ActionReplaced = models.ToggleReplaced
	ActionRemoved  = models.ToggleRemoved
)

// KindSummary, bir hedefteki tek tepki türünün özeti.
type KindSummary struct {
	Count int  `json:"count"`
	Mine  bool `json:"mine"` // Mevcut kullanıcı bu türle tepki vermiş mi
}

// Summary, bir hedefin tür → özet eşlemesi. Tepki yoksa boş map'tir.
type Summary map[models.ReactionKind]KindSummary

// Summarize, targetID'ye ait satırları türlere göre sayar.
// Başka hedeflere ait satırlar ve bilinmeyen türler yok sayılır.
func Summarize(targetID string, rows []models.Reaction, currentUserID string) Summary {
	summary := Summary{}
	for _, r := range rows {
		if r.TargetID != targetID || !r.Kind.Valid() {
			continue
		}
		ks := summary[r.Kind]
		ks.Count++
		if currentUserID != "" && r.UserID == currentUserID {
			ks.Mine = true
		}
		summary[r.Kind] = ks
	}
	return summary
}

// SummarizeAll, birden fazla hedefi tek seferde özetler.
func SummarizeAll(rowsByTarget map[string][]models.Reaction, currentUserID string) map[string]Summary {
	out := make(map[string]Summary, len(rowsByTarget))
	for id, rows := range rowsByTarget {
		out[id] = Summarize(id, rows, currentUserID)
	}
	return out
}

// Total, özetteki tüm tepkilerin toplamı.
func (s Summary) Total() int {
	n := 0
	for _, ks := range s {
		n += ks.Count
	}
	return n
}

// MineKind, mevcut kullanıcının tepki türünü döner.
func (s Summary) MineKind() (models.ReactionKind, bool) {
	for kind, ks := range s {
		if ks.Mine {
			return kind, true
		}
	}
	return "", false
}

// Current, userID'nin targetID üzerindeki mevcut tepki türünü döner.
func Current(rows []models.Reaction, targetID, userID string) (models.ReactionKind, bool) {
	for _, r := range rows {
		if r.TargetID == targetID && r.UserID == userID {
			return r.Kind, true
		}
	}
	return "", false
}

// Apply, üç yollu toggle'ı satırlara uygular ve yeni satır listesini döner.
// Girdi slice'ı değiştirilmez.
//
//   - Kullanıcının tepkisi yok → yeni satır eklenir (added)
//   - Farklı türde tepkisi var → aynı satırın türü değişir (replaced)
//   - Aynı türde tepkisi var → satır silinir (removed)
//
// Sonuçta (target, user) başına en fazla bir satır kalır; girdide aynı
// kullanıcının birden fazla satırı varsa ilki dışındakiler atılır.
// Optimistic eklenen satırın CreatedAt'i sıfır değerdir.
func Apply(rows []models.Reaction, targetID, userID string, kind models.ReactionKind) ([]models.Reaction, Action) {
	out := make([]models.Reaction, 0, len(rows)+1)
	var action Action
	seen := false

	for _, r := range rows {
		if r.TargetID != targetID || r.UserID != userID {
			out = append(out, r)
			continue
		}
		if seen {
			continue
		}
		seen = true

		if r.Kind == kind {
			action = ActionRemoved
			continue
		}
		r.Kind = kind
		out = append(out, r)
		action = ActionReplaced
	}

	if !seen {
		out = append(out, models.Reaction{TargetID: targetID, UserID: userID, Kind: kind})
		action = ActionAdded
	}
	return out, action
}

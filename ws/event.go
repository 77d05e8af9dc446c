// Package ws, WebSocket bağlantı yönetimi ve oda bazlı gerçek zamanlı event dağıtımını sağlar.
//
// Mimari:
// - Hub: Tüm bağlantıları ve oda aboneliklerini yöneten merkezi yapı
// - Client: Her WebSocket bağlantısını temsil eder
// - Event: Client-server arası iletilen mesaj formatı
//
// Event akışı:
// 1. Client bağlanır ve {op: "subscribe", d: {room: "fixture:555"}} gönderir
// 2. Hub aboneliği kaydeder ve {op: "subscribed", d: {room}} ile onaylar
// 3. Kullanıcı mesaj gönderir → HTTP POST → Service → DB kayıt
// 4. Service, Hub'ın BroadcastToRoom metodunu çağırır
// 5. Hub, event'i sadece o odaya abone olan client'lara iletir
//
// "subscribed" onayı client tarafındaki Delivery Channel Supervisor için
// "push kanalı hazır" sinyalidir — gelmezse client polling'e düşer.
package ws

import "github.com/akinalp/oddsroom/models"

// Event, WebSocket üzerinden iletilen bir mesajı temsil eder.
//
// Op: Event türü — "message_create", "heartbeat" vb.
// Data: Event'e özgü payload.
// Seq: Her outbound event'e verilen artan sayı (eksik event tespiti için).
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// ────────────────────────────────────────────
// Operation sabitleri
// ────────────────────────────────────────────

// Client → Server operasyonları
const (
	OpHeartbeat   = "heartbeat"   // Client periyodik olarak gönderir — "hâlâ bağlıyım" sinyali
	OpSubscribe   = "subscribe"   // Bir odaya abone ol
	OpUnsubscribe = "unsubscribe" // Odadan ayrıl
)

// Server → Client operasyonları
const (
	OpHeartbeatAck   = "heartbeat_ack"   // Heartbeat'e yanıt
	OpSubscribed     = "subscribed"      // Abonelik kabul edildi — push teslimatı başladı
	OpSubscribeError = "subscribe_error" // Abonelik reddedildi (geçersiz oda vb.)
	OpMessageCreate  = "message_create"  // Odaya yeni mesaj geldi
	OpReactionUpdate = "reaction_update" // Bir mesajın veya yorumun tepkileri değişti
	OpCommentUpdate  = "comment_update"  // Fixture'ın yorum thread'i değişti
)

// RoomData, subscribe / unsubscribe / subscribed payload'ı.
type RoomData struct {
	Room models.RoomScope `json:"room"`
}

// SubscribeErrorData, abonelik reddedildiğinde gönderilen payload.
type SubscribeErrorData struct {
	Room  string `json:"room"`
	Error string `json:"error"`
}

// ReactionUpdateData, reaction_update payload'ı.
// Groups, hedefin toggle sonrası güncel tepki grupları.
type ReactionUpdateData struct {
	Target   models.ReactionTarget  `json:"target"`
	TargetID string                 `json:"target_id"`
	Room     models.RoomScope       `json:"room"`
	ActorID  string                 `json:"actor_id"`
	Action   models.ToggleAction    `json:"action"`
	Groups   []models.ReactionGroup `json:"groups"`
}

// CommentUpdateData, comment_update payload'ı.
// Client thread'i artımlı olarak yamamaz — bu event'i görünce tamamen yeniden yükler.
type CommentUpdateData struct {
	FixtureID int64  `json:"fixture_id"`
	CommentID string `json:"comment_id"`
	Action    string `json:"action"` // "created" | "deleted"
	Removed   int    `json:"removed,omitempty"`
}

// Package metrics, Prometheus metriklerini tanımlar ve default registry'e kaydeder.
// /metrics endpoint'i promhttp.Handler() ile bu metrikleri sunar.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "oddsroom"

var (
	// WSConnections, açık WebSocket bağlantı sayısı.
	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Number of open WebSocket connections.",
	})

	// RoomSubscriptions, aktif oda aboneliği sayısı (tüm odalar toplamı).
	RoomSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "room_subscriptions",
		Help:      "Number of active room subscriptions across all rooms.",
	})

	MessagesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_created_total",
		Help:      "Chat messages persisted, by room kind.",
	}, []string{"room_kind"})

	ReactionToggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaction_toggles_total",
		Help:      "Reaction changes, by target and action.",
	}, []string{"target", "action"})

	CommentsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "comments_created_total",
		Help:      "Comments and replies persisted.",
	})

	// CommentsDeleted, cascade ile silinen yanıtlar dahil silinen satır sayısı.
	CommentsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "comments_deleted_total",
		Help:      "Comment rows removed, replies included.",
	})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate limiter, by endpoint.",
	}, []string{"endpoint"})

	// SupervisorTransitions, client tarafı delivery supervisor state geçişleri.
	SupervisorTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "supervisor_transitions_total",
		Help:      "Delivery channel supervisor state transitions, by target state.",
	}, []string{"to"})
)

func init() {
	prometheus.MustRegister(
		WSConnections,
		RoomSubscriptions,
		MessagesCreated,
		ReactionToggles,
		CommentsCreated,
		CommentsDeleted,
		RateLimited,
		SupervisorTransitions,
	)
}

// RoomKind, metrik label'ı olarak kullanılan oda türü: "global" veya "fixture".
// Fixture ID'leri label'a yazılmaz (cardinality).
func RoomKind(room string) string {
	if room == "global" || room == "" {
		return "global"
	}
	return "fixture"
}

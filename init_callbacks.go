// Package main — WebSocket Hub callback wire-up.
//
// registerHubCallbacks, Hub'ın bağlantı ve abonelik callback'lerini metric'lere bağlar.
// Hub ws paketinde yaşıyor, metric'ler pkg/metrics'te — main package ikisini birbirine bağlar.
//
// Callback'ler Hub'ın mutex'i dışında, ayrı goroutine'de çalışır.
package main

import (
	"log"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/pkg/metrics"
	"github.com/akinalp/oddsroom/ws"
)

func registerHubCallbacks(hub *ws.Hub) {
	hub.OnClientConnect(func(userID string) {
		metrics.WSConnections.Inc()
		log.Printf("[ws] client connected user=%s", userID)
	})

	hub.OnClientDisconnect(func(userID string) {
		metrics.WSConnections.Dec()
		log.Printf("[ws] client disconnected user=%s", userID)
	})

	hub.OnRoomSubscribe(func(room models.RoomScope, subscribers int) {
		metrics.RoomSubscriptions.Inc()
		log.Printf("[ws] room %s subscribers=%d", room, subscribers)
	})

	hub.OnRoomUnsubscribe(func(room models.RoomScope, subscribers int) {
		metrics.RoomSubscriptions.Dec()
		if subscribers == 0 {
			log.Printf("[ws] room %s is empty", room)
		}
	})
}

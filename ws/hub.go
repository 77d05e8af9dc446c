package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"github.com/akinalp/oddsroom/models"
)

// RoomBroadcaster, service katmanının oda bazlı event yayınlamak için
// kullandığı interface.
//
// Service'ler Hub'ın concrete struct'ına değil bu interface'e bağımlıdır —
// test edilirken kaydedici (recording) bir fake kullanılabilir.
type RoomBroadcaster interface {
	BroadcastToRoom(room models.RoomScope, event Event)
}

// Hub, tüm WebSocket bağlantılarını ve oda aboneliklerini yöneten merkezi yapıdır.
//
// İki indeks tutulur:
//   - clients: userID → Client set (bir kullanıcının birden fazla sekmesi olabilir)
//   - rooms:   RoomScope → Client set (o odaya abone olan bağlantılar)
//
// Bir client'ın send channel'ı sadece mu Lock altında kapatılır ve bütün
// gönderimler RLock altında yapılır — kapalı channel'a yazma olmaz.
type Hub struct {
	clients map[string]map[*Client]bool
	rooms   map[models.RoomScope]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once

	// seq: Her outbound event'e verilen artan sayaç.
	seq atomic.Int64

	onClientConnect    func(userID string)
	onClientDisconnect func(userID string)
	onRoomSubscribe    func(room models.RoomScope, subscribers int)
	onRoomUnsubscribe  func(room models.RoomScope, subscribers int)
}

// NewHub, yeni bir Hub oluşturur.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		rooms:      make(map[models.RoomScope]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// OnClientConnect, yeni bir WS bağlantısı kaydedildiğinde çağrılacak callback.
// Callback'ler Run() goroutine'inden ayrı goroutine'de çalışır.
func (h *Hub) OnClientConnect(fn func(userID string)) { h.onClientConnect = fn }

// OnClientDisconnect, bir WS bağlantısı kapandığında çağrılacak callback.
func (h *Hub) OnClientDisconnect(fn func(userID string)) { h.onClientDisconnect = fn }

// OnRoomSubscribe, bir client odaya abone olduğunda güncel abone sayısıyla çağrılır.
func (h *Hub) OnRoomSubscribe(fn func(room models.RoomScope, subscribers int)) {
	h.onRoomSubscribe = fn
}

// OnRoomUnsubscribe, bir abonelik kalktığında güncel abone sayısıyla çağrılır.
func (h *Hub) OnRoomUnsubscribe(fn func(room models.RoomScope, subscribers int)) {
	h.onRoomUnsubscribe = fn
}

// Run, Hub'ın ana event loop'udur. main.go'da `go hub.Run()` ile başlatılır.
// Shutdown çağrılınca döner.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case <-h.done:
			return
		}
	}
}

// Register, client'ı Hub'a kaydeder. Hub kapanmışsa false döner.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister, client'ı Hub'dan çıkarır. Bloklamaz — Hub kapanmışsa sessizce döner.
func (h *Hub) Unregister(client *Client) {
	go func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
	total := len(h.clients[client.userID])
	h.mu.Unlock()

	log.Printf("[ws] client connected: user=%s (total connections for user: %d)", client.userID, total)

	if h.onClientConnect != nil {
		go h.onClientConnect(client.userID)
	}
}

// removeClient, client'ı tüm odalardan ve Hub'dan çıkarır, send channel'ını kapatır.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.clients[client.userID]
	if !ok || !clients[client] {
		h.mu.Unlock()
		return
	}

	left := make(map[models.RoomScope]int, len(client.rooms))
	for room := range client.rooms {
		left[room] = h.leaveRoomLocked(client, room)
	}

	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.userID)
	}
	close(client.send)
	h.mu.Unlock()

	log.Printf("[ws] client disconnected: user=%s", client.userID)

	if h.onRoomUnsubscribe != nil {
		for room, n := range left {
			go h.onRoomUnsubscribe(room, n)
		}
	}
	if h.onClientDisconnect != nil {
		go h.onClientDisconnect(client.userID)
	}
}

// Subscribe, client'ı odaya ekler. Client Hub'da kayıtlı değilse false döner.
func (h *Hub) Subscribe(client *Client, room models.RoomScope) bool {
	h.mu.Lock()
	if !h.clients[client.userID][client] {
		h.mu.Unlock()
		return false
	}

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.rooms[room] = true
	n := len(h.rooms[room])
	h.mu.Unlock()

	if h.onRoomSubscribe != nil {
		go h.onRoomSubscribe(room, n)
	}
	return true
}

// Unsubscribe, client'ı odadan çıkarır.
func (h *Hub) Unsubscribe(client *Client, room models.RoomScope) {
	h.mu.Lock()
	if !client.rooms[room] {
		h.mu.Unlock()
		return
	}
	n := h.leaveRoomLocked(client, room)
	h.mu.Unlock()

	if h.onRoomUnsubscribe != nil {
		go h.onRoomUnsubscribe(room, n)
	}
}

// leaveRoomLocked, h.mu Lock altında çağrılmalıdır. Kalan abone sayısını döner.
func (h *Hub) leaveRoomLocked(client *Client, room models.RoomScope) int {
	delete(client.rooms, room)
	subscribers, ok := h.rooms[room]
	if !ok {
		return 0
	}
	delete(subscribers, client)
	if len(subscribers) == 0 {
		delete(h.rooms, room)
		return 0
	}
	return len(subscribers)
}

// BroadcastToRoom, sadece odaya abone olan client'lara event gönderir.
// Başka bir odanın abonesi bu event'i asla almaz.
func (h *Hub) BroadcastToRoom(room models.RoomScope, event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal room event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		h.enqueueLocked(client, data)
	}
}

// SendToClient, tek bir client'a event gönderir (subscribed, heartbeat_ack vb.).
func (h *Hub) SendToClient(client *Client, event Event) {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal client event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.clients[client.userID][client] {
		h.enqueueLocked(client, data)
	}
}

// enqueueLocked, h.mu RLock altında çağrılmalıdır.
func (h *Hub) enqueueLocked(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		// Buffer dolu — bu client yavaş, kapat
		log.Printf("[ws] send buffer full for user %s, dropping connection", client.userID)
		h.Unregister(client)
	}
}

// RoomSubscribers, odadaki abone bağlantı sayısını döner.
func (h *Hub) RoomSubscribers(room models.RoomScope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[room])
}

// Shutdown, tüm client bağlantılarını kapatır ve Run loop'unu durdurur (graceful shutdown).
func (h *Hub) Shutdown() {
	h.closeOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()

		for _, clients := range h.clients {
			for client := range clients {
				close(client.send)
			}
		}
		h.clients = make(map[string]map[*Client]bool)
		h.rooms = make(map[models.RoomScope]map[*Client]bool)
		log.Println("[ws] hub shut down, all connections closed")
	})
}

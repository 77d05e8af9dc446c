package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akinalp/oddsroom/models"
)

// WebSocket bağlantı sabitleri
const (
	// writeWait: Bir mesajı yazmak için maksimum bekleme süresi.
	writeWait = 10 * time.Second

	// pongWait: Client'ın heartbeat göndermesi için beklenen maksimum süre.
	// 3 heartbeat kaçırma = 30s × 3 = 90s.
	pongWait = 90 * time.Second

	// maxMessageSize: Client'ın gönderebileceği maksimum mesaj boyutu (byte).
	// Mesaj gönderimi HTTP ile yapılır, WS'ten sadece kontrol event'leri gelir.
	maxMessageSize = 4096

	// sendBufferSize: Her client'ın send channel'ının buffer boyutu.
	// Buffer doluysa (client yavaş) client disconnect edilir.
	sendBufferSize = 256
)

// Client, tek bir WebSocket bağlantısını temsil eder.
//
// Her bağlantı için iki goroutine çalışır:
// - ReadPump: Client'dan gelen kontrol event'lerini okur (heartbeat, subscribe)
// - WritePump: Hub'dan gelen mesajları client'a yazar
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string

	// rooms, client'ın abone olduğu odalar. hub.mu ile korunur.
	rooms map[models.RoomScope]bool

	send chan []byte
	mu   sync.Mutex // conn.WriteMessage çağrılarını korur
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		rooms:  make(map[models.RoomScope]bool),
		send:   make(chan []byte, sendBufferSize),
	}
}

// ReadPump, WebSocket bağlantısından gelen mesajları okur ve işler.
// Bağlantı kapandığında Hub'dan çıkış yapar.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
		return
	}

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for user %s: %v", c.userID, err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(rawMessage, &event); err != nil {
			log.Printf("[ws] invalid message from user %s: %v", c.userID, err)
			continue
		}

		c.handleEvent(event)
	}
}

// handleEvent, client'dan gelen event'leri türüne göre işler.
func (c *Client) handleEvent(event Event) {
	switch event.Op {
	case OpHeartbeat:
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
			return
		}
		c.hub.SendToClient(c, Event{Op: OpHeartbeatAck})

	case OpSubscribe:
		c.handleSubscribe(event)

	case OpUnsubscribe:
		c.handleUnsubscribe(event)

	default:
		log.Printf("[ws] unknown op from user %s: %s", c.userID, event.Op)
	}
}

// handleSubscribe, subscribe event'ini işler.
//
// Client { op: "subscribe", d: { room: "fixture:555" } } gönderir.
// Oda geçerliyse "subscribed", değilse "subscribe_error" ile yanıt verilir.
func (c *Client) handleSubscribe(event Event) {
	raw, ok := decodeRoom(event.Data)
	if !ok {
		c.hub.SendToClient(c, Event{
			Op:   OpSubscribeError,
			Data: SubscribeErrorData{Error: "invalid subscribe payload"},
		})
		return
	}

	room, err := models.ParseRoomScope(raw)
	if err != nil {
		c.hub.SendToClient(c, Event{
			Op:   OpSubscribeError,
			Data: SubscribeErrorData{Room: raw, Error: err.Error()},
		})
		return
	}

	if !c.hub.Subscribe(c, room) {
		return
	}
	c.hub.SendToClient(c, Event{Op: OpSubscribed, Data: RoomData{Room: room}})
}

func (c *Client) handleUnsubscribe(event Event) {
	raw, ok := decodeRoom(event.Data)
	if !ok {
		return
	}
	room, err := models.ParseRoomScope(raw)
	if err != nil {
		return
	}
	c.hub.Unsubscribe(c, room)
}

// decodeRoom, event.Data içindeki "room" alanını çıkarır.
// event.Data tipi `any` olduğu için JSON'a çevirip tekrar parse edilir.
func decodeRoom(data any) (string, bool) {
	if data == nil {
		return "", false
	}
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return "", false
	}

	var payload struct {
		Room string `json:"room"`
	}
	if err := json.Unmarshal(dataBytes, &payload); err != nil {
		return "", false
	}
	return payload.Room, true
}

// WritePump, Hub'dan gelen mesajları WebSocket bağlantısına yazar.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			// Channel kapatıldı — Hub client'ı çıkardı
			c.writeMessage(websocket.CloseMessage, nil)
			return
		}

		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// writeMessage, WebSocket'e mesaj yazar (mutex ile korunur).
// gorilla/websocket conn'a aynı anda birden fazla yazma desteklemez.
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

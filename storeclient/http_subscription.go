package storeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/akinalp/oddsroom/models"
	"github.com/akinalp/oddsroom/ws"
)

const (
	subscriptionWriteWait = 10 * time.Second
	messageBufferSize     = 64
	statusBufferSize      = 8
)

// wireEvent, /ws üzerinden gelen ham event: Data op'a göre sonradan decode edilir.
type wireEvent struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d"`
	Seq  int64           `json:"seq"`
}

// wsSubscription, tek bir WebSocket bağlantısı üzerinden tek odanın aboneliği.
//
// readLoop tek goroutine'dir, iki kanala da sadece o yazar ve çıkarken ikisini kapatır.
// Yazma işlemleri writeMu ile serialize edilir (gorilla/websocket tek writer kabul eder).
type wsSubscription struct {
	room models.RoomScope
	conn *websocket.Conn

	messages chan models.Message
	status   chan Status

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Subscribe, /ws'e bağlanır ve odaya abone olur.
//
// Dönen Subscription önce StatusConnecting yayınlar. Server "subscribed"
// onayını gönderdiğinde StatusSubscribed, reddettiğinde veya bağlantı
// koptuğunda StatusError gelir. Onay için bekleme süresini çağıran belirler.
func (s *HTTPStore) Subscribe(ctx context.Context, room models.RoomScope) (Subscription, error) {
	u := *s.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = s.baseURL.Path + "/ws"
	u.RawQuery = url.Values{"token": {s.token}}.Encode()

	conn, resp, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("ws dial failed: %w", err)
	}

	sub := &wsSubscription{
		room:     room,
		conn:     conn,
		messages: make(chan models.Message, messageBufferSize),
		status:   make(chan Status, statusBufferSize),
		done:     make(chan struct{}),
	}
	sub.status <- StatusConnecting

	if err := sub.write(ws.Event{Op: ws.OpSubscribe, Data: ws.RoomData{Room: room}}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ws subscribe failed: %w", err)
	}

	sub.wg.Add(2)
	go sub.readLoop()
	go sub.heartbeatLoop(s.heartbeatInterval)

	return sub, nil
}

func (s *wsSubscription) Messages() <-chan models.Message { return s.messages }
func (s *wsSubscription) Status() <-chan Status           { return s.status }

// Close, aboneliği sonlandırır ve goroutine'ler durana kadar bekler.
func (s *wsSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)

		s.writeMu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()

		err = s.conn.Close()
		s.wg.Wait()
	})
	return err
}

func (s *wsSubscription) write(event ws.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(subscriptionWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// emitStatus, status'u iletir. Abonelik kapanıyorsa bırakır.
func (s *wsSubscription) emitStatus(st Status) {
	select {
	case s.status <- st:
	case <-s.done:
	}
}

func (s *wsSubscription) closing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *wsSubscription) readLoop() {
	defer s.wg.Done()
	defer close(s.messages)
	defer close(s.status)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.closing() {
				s.emitStatus(StatusClosed)
				return
			}
			log.Printf("[storeclient] room=%s connection lost: %v", s.room, err)
			s.emitStatus(StatusError)
			return
		}

		var event wireEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[storeclient] room=%s invalid event: %v", s.room, err)
			continue
		}

		switch event.Op {
		case ws.OpSubscribed:
			var d ws.RoomData
			if json.Unmarshal(event.Data, &d) == nil && d.Room == s.room {
				s.emitStatus(StatusSubscribed)
			}

		case ws.OpSubscribeError:
			var d ws.SubscribeErrorData
			_ = json.Unmarshal(event.Data, &d)
			log.Printf("[storeclient] room=%s subscribe rejected: %s", s.room, d.Error)
			s.emitStatus(StatusError)

		case ws.OpMessageCreate:
			var m models.Message
			if err := json.Unmarshal(event.Data, &m); err != nil {
				continue
			}
			if m.Valid() != nil || m.Room != s.room {
				continue
			}
			select {
			case s.messages <- m:
			case <-s.done:
				return
			}
		}
	}
}

// heartbeatLoop, server'ın read deadline'ını yenilemek için periyodik heartbeat gönderir.
func (s *wsSubscription) heartbeatLoop(interval time.Duration) {
	defer s.wg.Done()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.write(ws.Event{Op: ws.OpHeartbeat}); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

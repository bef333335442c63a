package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Lm7452/UniEats/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type session struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	// Guarded by hub.mu.
	actor   types.Actor
	targets []Target
}

func newSession(h *Hub, conn *websocket.Conn) *session {
	return &session{
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.sendQueue),
		done: make(chan struct{}),
	}
}

// enqueue never blocks. A session that cannot keep up is dropped; the
// client reconnects and refetches state over HTTP.
func (s *session) enqueue(frame []byte) {
	select {
	case <-s.done:
	case s.send <- frame:
	default:
		s.hub.log.Warn("realtime: send queue full, closing session", "user_id", s.actorID())
		s.close()
	}
}

func (s *session) actorID() types.ID {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return s.actor.UserID
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
		s.hub.remove(s)
	})
}

func (s *session) readPump() {
	defer s.close()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.reply(FrameError, map[string]string{"error": "malformed frame"})
			continue
		}
		switch f.Type {
		case FrameRegister:
			var msg RegisterMessage
			if err := json.Unmarshal(f.Data, &msg); err != nil {
				s.reply(FrameError, map[string]string{"error": "malformed register"})
				continue
			}
			if err := s.hub.register(s, msg); err != nil {
				s.hub.log.Debug("realtime: register refused", "user_id", msg.UserID, "role", msg.Role, "err", err)
				s.reply(FrameError, map[string]string{"error": err.Error()})
				continue
			}
			s.reply(FrameRegistered, RegisterMessage{UserID: msg.UserID, Role: msg.Role})
		default:
			s.reply(FrameError, map[string]string{"error": "unknown frame type " + f.Type})
		}
	}
}

func (s *session) reply(kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	frame, err := json.Marshal(Frame{Type: kind, Data: data})
	if err != nil {
		return
	}
	s.enqueue(frame)
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			return
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

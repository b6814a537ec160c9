package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	eventBuffer  = 64
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// hello is the first message on every event stream.
type hello struct {
	Client string   `json:"client"`
	Order  []string `json:"order"`
	Tags   []string `json:"tags"`
}

// handleEvents upgrades to a websocket and streams registry events as JSON
// event.Event values after an initial hello.
// Events are buffered per client; a client that falls behind loses events
// rather than stalling the registry.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	client := uuid.NewString()
	s.mu.Lock()
	events, cancel := s.reg.Bus().Channel(eventBuffer)
	greeting := hello{Client: client, Order: s.reg.Order(), Tags: s.reg.Table().Tags()}
	s.mu.Unlock()
	defer cancel()

	s.logger.Info("event client connected", "client", client)
	defer s.logger.Info("event client disconnected", "client", client)

	if err := s.send(conn, greeting); err != nil {
		return
	}

	// The read loop only notices the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := s.send(conn, e); err != nil {
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(v); err != nil {
		s.logger.Debug("websocket write failed", "err", err)
		return err
	}
	return nil
}

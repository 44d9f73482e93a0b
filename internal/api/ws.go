package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"routeopt/internal/logging"
	"routeopt/internal/progress"
)

// Progress over WebSocket using graphql-transport-ws style framing:
// connection_init/connection_ack, ping/pong, subscribe/next/complete.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	RunID string `json:"runId"`
	// Events restricts the subscription to these event types. Empty means all.
	Events []string `json:"events,omitempty"`
}

// WSHandler handles /v1/progress/ws.
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	log := s.Log.WithValues("remote", r.RemoteAddr)

	type sub struct {
		runID string
		ch    chan progress.Event
	}
	subs := map[string]sub{}

	// gorilla connections support one concurrent writer
	var wmu sync.Mutex
	write := func(v wsMessage) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}
	done := make(chan struct{})
	defer close(done)

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if err := write(wsMessage{Type: "ping"}); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl subscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			if pl.RunID == "" && s.Status != nil {
				pl.RunID = s.Status.RunID()
			}
			if msg.ID == "" || pl.RunID == "" {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`[{"message":"id and runId required"}]`)})
				continue
			}
			if _, dup := subs[msg.ID]; dup {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`[{"message":"subscriber already exists"}]`)})
				continue
			}
			ch := s.Broker.Subscribe(pl.RunID)
			subs[msg.ID] = sub{runID: pl.RunID, ch: ch}
			log.V(logging.DEBUG).Info("Progress subscription started", "id", msg.ID, "runId", pl.RunID)
			go func(id string, c chan progress.Event, filter []string) {
				for evt := range c {
					if !wanted(filter, evt.Type) {
						continue
					}
					payload, err := json.Marshal(map[string]any{"data": evt})
					if err != nil {
						continue
					}
					if err := write(wsMessage{Type: "next", ID: id, Payload: payload}); err != nil {
						return
					}
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch, pl.Events)
		case "complete":
			if s0, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(s0.runID, s0.ch)
				delete(subs, msg.ID)
			}
		}
	}
	for id, s0 := range subs {
		s.Broker.Unsubscribe(s0.runID, s0.ch)
		delete(subs, id)
	}
}

func wanted(filter []string, typ string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == typ {
			return true
		}
	}
	return false
}

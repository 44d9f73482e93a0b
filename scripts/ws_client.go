// Package main watches a routeopt run's progress over WebSocket.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	host := flag.String("host", "localhost:"+port, "routeopt HTTP address")
	runID := flag.String("run", "", "run id to watch; empty watches the active run")
	rounds := flag.Bool("rounds-only", false, "only print round summaries")
	wait := flag.Duration("for", 0, "stop after this long; 0 waits until interrupted")
	flag.Parse()

	if *runID == "" {
		*runID = activeRun(*host)
	}

	u := url.URL{Scheme: "ws", Host: *host, Path: "/v1/progress/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), http.Header{})
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()
	var wmu sync.Mutex
	write := func(m wsMessage) error {
		wmu.Lock()
		defer wmu.Unlock()
		return c.WriteJSON(m)
	}

	if err := write(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	sub := map[string]any{"runId": *runID}
	if *rounds {
		sub["events"] = []string{"round.finished"}
	}
	pl, _ := json.Marshal(sub)
	if err := write(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}
	log.Printf("Watching run %s on %s", *runID, u.String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			switch m.Type {
			case "ping":
				_ = write(wsMessage{Type: "pong"})
			case "connection_ack", "pong":
			default:
				log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
			}
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	var timeout <-chan time.Time
	if *wait > 0 {
		timeout = time.After(*wait)
	}
	select {
	case <-done:
		return
	case <-interrupt:
	case <-timeout:
	}
	_ = write(wsMessage{Type: "complete", ID: "1"})
	wmu.Lock()
	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	wmu.Unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func activeRun(host string) string {
	resp, err := http.Get("http://" + host + "/v1/progress")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var p struct {
		RunID string `json:"runId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		log.Fatal(err)
	}
	if p.RunID == "" {
		log.Fatal("no active run")
	}
	return p.RunID
}

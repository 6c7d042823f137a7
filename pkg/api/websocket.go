package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"video-to-text/pkg/pipeline"
)

const eventPollInterval = 250 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	URL       string          `json:"url,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// WebSocketHandler streams pipeline events and transcription state of one
// session. Clients may send "ping", "cancel" and "transcribe" messages.
func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	session := mux.Vars(r)["id"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan WebSocketMessage, 16)
	go h.readMessages(ctx, cancel, conn, session, out)
	h.writeMessages(ctx, conn, session, out)
}

func (h *Handlers) readMessages(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, session string, out chan<- WebSocketMessage) {
	defer cancel()

	send := func(msg WebSocketMessage) {
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	}

	for {
		var msg WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "ping":
			send(WebSocketMessage{Type: "pong"})
		case "cancel":
			h.cancelRun(session)
			send(WebSocketMessage{Type: "cancelled", SessionID: session})
		case "transcribe":
			if msg.URL == "" {
				send(WebSocketMessage{Type: "error", Error: "url is required"})
				continue
			}
			h.controller(session).Start(context.Background(), msg.URL)
		default:
			send(WebSocketMessage{Type: "error", Error: "Unknown message type"})
		}
	}
}

// writeMessages is the only writer on conn.
func (h *Handlers) writeMessages(ctx context.Context, conn *websocket.Conn, session string, out <-chan WebSocketMessage) {
	ticker := time.NewTicker(eventPollInterval)
	defer ticker.Stop()

	updates, unsubscribe := h.controller(session).Subscribe()
	defer unsubscribe()

	var lastSeq int64
	flush := func() bool {
		for _, event := range h.pipeline.Events().Since(session, lastSeq) {
			lastSeq = event.Seq
			if !h.sendMessage(conn, WebSocketMessage{
				Type:      "stage_" + string(event.Type),
				SessionID: session,
				Data:      mustMarshal(event),
			}) {
				return false
			}
			if event.Type == pipeline.EventTypeResult {
				log.Printf("WS PROCESSING COMPLETED: SessionID=%s, RunID=%s", session, event.RunID)
			}
		}
		return true
	}

	if !flush() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-out:
			if !h.sendMessage(conn, msg) {
				return
			}
		case state := <-updates:
			if !h.sendMessage(conn, WebSocketMessage{
				Type:      "transcription",
				SessionID: session,
				Data:      mustMarshal(state),
			}) {
				return
			}
		case <-ticker.C:
			if !flush() {
				return
			}
		}
	}
}

func (h *Handlers) sendMessage(conn *websocket.Conn, msg WebSocketMessage) bool {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("WS: write failed: %v", err)
		return false
	}
	return true
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

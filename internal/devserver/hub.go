// Package devserver implements a reference assistant service speaking the
// flowmate wire protocol: REST session persistence, a WebSocket endpoint
// with per-session rooms, presence and typing fan-out, and a canned
// assistant that streams replies token by token. It exists so the client
// can be exercised end-to-end without the production assistant.
package devserver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// wsClient is one connected editor instance.
type wsClient struct {
	id   string
	conn *websocket.Conn
}

// Hub tracks which clients are watching which session.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*wsClient]struct{}
	in    map[*wsClient]string
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*wsClient]struct{}),
		in:    make(map[*wsClient]string),
	}
}

// Join moves a client into a session room and returns the room it left,
// if any.
func (h *Hub) Join(c *wsClient, sessionID string) (prior string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prior = h.in[c]
	if prior == sessionID {
		return ""
	}
	h.leaveLocked(c)
	if _, ok := h.rooms[sessionID]; !ok {
		h.rooms[sessionID] = make(map[*wsClient]struct{})
	}
	h.rooms[sessionID][c] = struct{}{}
	h.in[c] = sessionID
	slog.Info("Client joined session room", "client_id", c.id, "session_id", sessionID)
	return prior
}

// Leave removes a client from its room and returns the room it was in.
func (h *Hub) Leave(c *wsClient) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	prior := h.in[c]
	h.leaveLocked(c)
	return prior
}

func (h *Hub) leaveLocked(c *wsClient) {
	sessionID, ok := h.in[c]
	if !ok {
		return
	}
	delete(h.in, c)
	if room, ok := h.rooms[sessionID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, sessionID)
		}
	}
}

// Session returns the session a client currently observes.
func (h *Hub) Session(c *wsClient) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.in[c]
}

// Broadcast writes a frame to every client in the session room, optionally
// excluding one. Slow or dead peers only cost their own write timeout.
func (h *Hub) Broadcast(sessionID string, frame []byte, except *wsClient) {
	h.mu.RLock()
	room := h.rooms[sessionID]
	peers := make([]*wsClient, 0, len(room))
	for c := range room {
		if c != except {
			peers = append(peers, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range peers {
		writeFrame(c, frame)
	}
}

func writeFrame(c *wsClient, frame []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := c.conn.Write(ctx, websocket.MessageText, frame); err != nil {
		slog.Debug("WebSocket write failed", "client_id", c.id, "error", err)
	}
}

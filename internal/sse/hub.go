package sse

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/lobbysync/internal/model"
)

// Frame is a formatted SSE event. Row frames carry the table row they
// render and its version; a client never receives a row version at or
// below one it has already been sent.
type Frame struct {
	row     string
	version uint64
	data    []byte
}

// message routes a frame. An empty lobby reaches every client.
type message struct {
	lobby model.LobbyCode
	frame Frame
}

// Hub fans table updates out to every open connection stream
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a Hub; call Run to start delivering
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "sse")),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns after Close.
func (h *Hub) Run() {
	h.logger.Info("sse hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("sse client registered",
				slog.String("identity", string(client.identity)),
				slog.String("lobby", string(client.lobby)),
				slog.Int("total_clients", clientCount))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				clientCount := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("sse client unregistered",
					slog.String("identity", string(client.identity)),
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", clientCount))
			} else {
				h.mu.Unlock()
			}

		case msg := <-h.broadcast:
			h.mu.RLock()
			dropped := 0
			for client := range h.clients {
				if !client.wants(msg.lobby) || !client.advance(msg.frame) {
					continue
				}
				select {
				case client.send <- msg.frame.data:
				default:
					dropped++
					h.logger.Warn("sse message dropped - client buffer full",
						slog.String("identity", string(client.identity)))
				}
			}
			h.mu.RUnlock()
			if dropped > 0 {
				h.logger.Warn("sse broadcast partial failure", slog.Int("dropped", dropped))
			}

		case <-h.done:
			h.mu.Lock()
			clientCount := len(h.clients)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("sse hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

// Register adds a client. It reports false once the hub is closed.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastEvent queues an event for every client
func (h *Hub) BroadcastEvent(eventName, data string) {
	h.enqueue(message{frame: Frame{data: formatSSEMessage(eventName, data)}})
}

// BroadcastLobbyEvent queues an event for clients watching code or all lobbies
func (h *Hub) BroadcastLobbyEvent(code model.LobbyCode, eventName, data string) {
	h.enqueue(message{lobby: code, frame: Frame{data: formatSSEMessage(eventName, data)}})
}

// BroadcastFrame queues a row frame, scoped to code when it is not empty
func (h *Hub) BroadcastFrame(code model.LobbyCode, frame Frame) {
	h.enqueue(message{lobby: code, frame: frame})
}

func (h *Hub) enqueue(msg message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("sse broadcast dropped - hub buffer full")
	}
}

// Close disconnects every client and stops Run. Safe to call twice.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// formatSSEMessage formats an SSE message with event name and data.
// Each data line gets its own "data: " prefix.
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteString("\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits on \n, dropping \r and a trailing empty line
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

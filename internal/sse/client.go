package sse

import (
	"net/http"
	"time"

	"github.com/mcoot/lobbysync/internal/model"
)

const (
	// Time between keepalive comments
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 256
)

// Client is one open connection stream
type Client struct {
	identity    model.Identity
	lobby       model.LobbyCode // empty watches every lobby
	send        chan []byte
	connectedAt time.Time

	// last row version sent, keyed by Frame.row; owned by the hub loop
	// once the client is registered
	sent map[string]uint64
}

// NewClient creates a client for identity, optionally watching a single lobby
func NewClient(identity model.Identity, lobby model.LobbyCode) *Client {
	return &Client{
		identity:    identity,
		lobby:       lobby,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
		sent:        make(map[string]uint64),
	}
}

func (c *Client) wants(lobby model.LobbyCode) bool {
	return lobby == "" || c.lobby == "" || c.lobby == lobby
}

// advance records frame as sent, reporting false for a stale row version.
// Frames without a row always pass.
func (c *Client) advance(frame Frame) bool {
	if frame.row == "" {
		return true
	}
	if frame.version <= c.sent[frame.row] {
		return false
	}
	c.sent[frame.row] = frame.version
	return true
}

// ServeSSE streams hub events to w until the request ends or the hub closes.
// snapshot frames are written right after the connected event so the
// client starts from the current table contents.
func ServeSSE(w http.ResponseWriter, r *http.Request, hub *Hub, client *Client, snapshot []Frame) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// live updates older than the snapshot rows are dropped
	for _, frame := range snapshot {
		client.advance(frame)
	}

	if !hub.Register(client) {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	_, _ = w.Write(formatSSEMessage(EventConnected, `{"identity":"`+string(client.identity)+`"}`))
	for _, frame := range snapshot {
		_, _ = w.Write(frame.data)
	}
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

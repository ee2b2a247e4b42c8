package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/fingerspell/internal/app"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const (
	// clientBuffer is how many events a slow client may fall behind.
	clientBuffer = 64
	writeTimeout = 5 * time.Second
)

// client is one WebSocket subscriber.
type client struct {
	conn *websocket.Conn
	send chan []byte
	// observations is set when the client asked for every observation,
	// not just commits.
	observations bool
}

// EventsHandler pushes translation events to WebSocket clients.
// Commits, clears and edits are always sent; observations (with hand
// landmarks) only to clients connecting with ?observations=1.
type EventsHandler struct {
	clients     map[*client]bool
	mu          sync.RWMutex
	unsubscribe func()
}

// NewEventsHandler creates a new EventsHandler subscribed to a.
func NewEventsHandler(a *app.App) *EventsHandler {
	h := &EventsHandler{
		clients: make(map[*client]bool),
	}
	h.unsubscribe = a.Subscribe(h.broadcast)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &client{
		conn:         conn,
		send:         make(chan []byte, clientBuffer),
		observations: r.URL.Query().Get("observations") == "1",
	}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	done := make(chan struct{})
	go h.writePump(c, done)

	defer func() {
		h.remove(c)
		<-done
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *EventsHandler) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// writePump writes queued events until the send channel is closed.
func (h *EventsHandler) writePump(c *client, done chan<- struct{}) {
	defer close(done)
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

// broadcast runs on the App's loop and must not block: events for a client
// whose buffer is full are dropped.
func (h *EventsHandler) broadcast(e app.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(e)
	if err != nil {
		log.Printf("Failed to encode event: %v", err)
		return
	}

	for c := range h.clients {
		if e.Type == app.EventObservation && !c.observations {
			continue
		}
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from the App and disconnects every client.
func (h *EventsHandler) Close() {
	h.unsubscribe()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
	}
}

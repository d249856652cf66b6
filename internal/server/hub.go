package server

import (
	"context"
	"encoding/json"
	"sync"

	"slmchat/internal/events"
	"slmchat/internal/logger"
)

// Hub fans turn events out to the websocket connections of each session.
type Hub struct {
	// Registered clients: session id -> connections (several tabs may watch one session)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client
	// done is closed when Run returns so pumps never block on a stopped hub.
	done     chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	logger logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run serves registrations and forwards bus events until ctx is done.
func (h *Hub) Run(ctx context.Context, bus *events.Bus) error {
	turns, err := bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer h.stopOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("HUB", "Client registered", map[string]interface{}{"session": client.SessionID})

		case client := <-h.unregister:
			h.remove(client)

		case ev, ok := <-turns:
			if !ok {
				h.closeAll()
				return nil
			}
			h.Send(ev)
		}
	}
}

// Send delivers ev to every connection watching its session. A client whose
// buffer is full misses the event.
func (h *Hub) Send(ev events.TurnEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients[ev.SessionID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("HUB", "Client send buffer full, dropping event", map[string]interface{}{"session": ev.SessionID})
		}
	}
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Connections returns the number of clients watching sessionID.
func (h *Hub) Connections(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.clients[client.SessionID]
	for i, c := range clients {
		if c == client {
			h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.SessionID]) == 0 {
		delete(h.clients, client.SessionID)
		h.logger.Info("HUB", "Session has no more clients", map[string]interface{}{"session": client.SessionID})
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, clients := range h.clients {
		for _, c := range clients {
			close(c.Send)
		}
		delete(h.clients, id)
	}
}

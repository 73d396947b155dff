package ws

import (
	"encoding/json"
	"sync"

	"github.com/AxelBaudrand/Pedidos/internal/service"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Every connected dashboard sees every order event: a single restaurant
// floor, not a multi-tenant fan-out.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan Event

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, exists := h.clients[client]; exists {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			// Marshal event to JSON once
			message, err := json.Marshal(event)
			if err != nil {
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(event Event) {
	h.broadcast <- event
}

// orderPayload is the wire shape of an order inside a lifecycle event.
type orderPayload struct {
	OrderID string `json:"order_id"`
	Code    string `json:"code"`
	TableID string `json:"table_id"`
	State   string `json:"state"`
}

// PublishOrderEvent adapts lifecycle events onto the hub, so the order
// engine stays unaware of WebSocket wiring.
func (h *Hub) PublishOrderEvent(evt service.OrderEvent) {
	payload, err := json.Marshal(orderPayload{
		OrderID: evt.Order.ID.String(),
		Code:    evt.Order.Code,
		TableID: evt.Order.TableID.String(),
		State:   evt.Order.State,
	})
	if err != nil {
		return
	}
	h.Broadcast(Event{Type: evt.Type, Payload: payload})
}

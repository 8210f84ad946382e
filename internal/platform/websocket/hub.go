// Package websocket pushes inventory events to connected pharmacy
// dashboards. Clients subscribe to hospitals; an event for a hospital reaches
// every client subscribed to it.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opdcare/opd/internal/platform/auth"
)

// Event types.
const (
	EventInventoryChanged = "inventory.changed"
	EventSubscribed       = "subscribed"
)

type Event struct {
	Type       string          `json:"type"`
	HospitalID uuid.UUID       `json:"hospitalId"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ClientMessage is an inbound subscribe or unsubscribe request.
type ClientMessage struct {
	Action      string      `json:"action"`
	HospitalIDs []uuid.UUID `json:"hospitalIds"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connected dashboard. Its principal bounds which hospitals it
// may follow.
type Client struct {
	ID        string
	Principal auth.Principal
	Hospitals []uuid.UUID
	Send      chan []byte
	conn      Conn
}

func NewClient(p auth.Principal, conn Conn) *Client {
	return &Client{
		ID:        uuid.New().String(),
		Principal: p,
		Send:      make(chan []byte, 64),
		conn:      conn,
	}
}

type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}
	all     map[*Client]struct{}
	logger  zerolog.Logger
	now     func() time.Time
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger.With().Str("component", "live-feed").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[client] = struct{}{}
}

// Unregister drops the client from every hospital and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, id := range client.Hospitals {
		h.remove(id, client)
	}
	delete(h.all, client)
	close(client.Send)
}

func (h *Hub) remove(id uuid.UUID, client *Client) {
	if subs, ok := h.clients[id]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.clients, id)
		}
	}
}

// Subscribe adds the hospitals the client's principal may access and returns
// the ones it refused.
func (h *Hub) Subscribe(client *Client, ids []uuid.UUID) (refused []uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range ids {
		if !client.Principal.CanAccessHospital(id) {
			refused = append(refused, id)
			continue
		}
		subs := h.clients[id]
		if subs == nil {
			subs = make(map[*Client]struct{})
			h.clients[id] = subs
		}
		if _, already := subs[client]; already {
			continue
		}
		subs[client] = struct{}{}
		client.Hospitals = append(client.Hospitals, id)
	}
	return refused
}

func (h *Hub) Unsubscribe(client *Client, ids []uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	drop := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
		h.remove(id, client)
	}
	kept := client.Hospitals[:0]
	for _, id := range client.Hospitals {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	client.Hospitals = kept
}

func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if refused := h.Subscribe(client, msg.HospitalIDs); len(refused) > 0 {
			h.logger.Warn().
				Str("client_id", client.ID).
				Str("user_id", client.Principal.UserID).
				Int("refused", len(refused)).
				Msg("subscription to foreign hospital refused")
		}
	case "unsubscribe":
		h.Unsubscribe(client, msg.HospitalIDs)
	}
}

// Broadcast delivers event to the subscribers of its hospital. Clients whose
// buffer is full miss the event.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("type", event.Type).Msg("failed to marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for client := range h.clients[event.HospitalID] {
		select {
		case client.Send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn().
			Str("hospital_id", event.HospitalID.String()).
			Int("dropped", dropped).
			Msg("slow live feed clients skipped")
	}
}

// SendTo queues event for one client only.
func (h *Hub) SendTo(client *Client, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("type", event.Type).Msg("failed to marshal event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.all[client]; !ok {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

// Notify broadcasts an event without payload.
func (h *Hub) Notify(_ context.Context, hospitalID uuid.UUID, eventType string) {
	h.Broadcast(Event{Type: eventType, HospitalID: hospitalID, Timestamp: h.now()})
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// SubscriberCount returns how many clients follow hospital id.
func (h *Hub) SubscriberCount(id uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[id])
}

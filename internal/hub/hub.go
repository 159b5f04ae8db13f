package hub

import (
	"encoding/json"
	"sync"

	"github.com/AnkitKumarMitra/Discordia/internal/config"
	pkglog "github.com/AnkitKumarMitra/Discordia/pkg/log"
)

// Hub owns all WebSocket connections of this instance and their room
// subscriptions. Membership maps are mutated only by the hub's own
// goroutines; cross-instance coordination goes through the backplane.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	rooms      map[string]map[string]*Client // roomID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *RoomMessage
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

// RoomMessage is a message to be delivered to a room's local members.
// An empty RoomID addresses every connected client.
type RoomMessage struct {
	RoomID  string
	Message []byte
	Exclude string // Client ID to exclude from delivery
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *RoomMessage, 256),
		config:     cfg,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	l := pkglog.L()
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l.Debug().Str(pkglog.FieldClientID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for roomID, roomClients := range h.rooms {
					delete(roomClients, client.ID)
					if len(roomClients) == 0 {
						delete(h.rooms, roomID)
					}
				}
				delete(h.clients, client.ID)
				// Send stays open: concurrent senders (signal relay,
				// fan-out) may still hold this client.
				client.close()
			}
			h.mu.Unlock()
			l.Debug().Str(pkglog.FieldClientID, client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			if msg.RoomID == "" {
				for clientID, client := range h.clients {
					if clientID == msg.Exclude {
						continue
					}
					h.deliver(client, msg.Message)
				}
			} else if roomClients, ok := h.rooms[msg.RoomID]; ok {
				for clientID, client := range roomClients {
					if clientID == msg.Exclude {
						continue
					}
					h.deliver(client, msg.Message)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) deliver(client *Client, data []byte) {
	if client.isClosed() {
		return
	}
	select {
	case client.Send <- data:
	default:
		// Send buffer full; drop the connection rather than block fan-out.
		go h.removeClient(client)
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// JoinRoom subscribes a client to a room's delivery domain.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][client.ID] = client
	l := pkglog.L()
	l.Info().Str(pkglog.FieldClientID, client.ID).Str(pkglog.FieldRoomID, roomID).Msg("client joined room")
}

// LeaveRoom unsubscribes a client from a room.
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if roomClients, ok := h.rooms[roomID]; ok {
		delete(roomClients, client.ID)
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	l := pkglog.L()
	l.Info().Str(pkglog.FieldClientID, client.ID).Str(pkglog.FieldRoomID, roomID).Msg("client left room")
}

// BroadcastToRoom sends a message to all local members of a room.
func (h *Hub) BroadcastToRoom(roomID string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.broadcast <- &RoomMessage{
		RoomID:  roomID,
		Message: data,
		Exclude: exclude,
	}
	return nil
}

// BroadcastRaw sends pre-marshaled bytes to all local members of a room.
func (h *Hub) BroadcastRaw(roomID string, data []byte, exclude string) {
	h.broadcast <- &RoomMessage{
		RoomID:  roomID,
		Message: data,
		Exclude: exclude,
	}
}

// BroadcastAll sends a message to every connected client on this instance.
func (h *Hub) BroadcastAll(message interface{}, exclude string) error {
	return h.BroadcastToRoom("", message, exclude)
}

// SendToClient sends a message to one specific client.
func (h *Hub) SendToClient(clientID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()

	if !ok {
		return nil
	}

	h.deliver(client, data)
	return nil
}

// RoomMembers returns a snapshot of the clients locally subscribed to
// a room. Voice rosters are reconstructed from this on demand.
func (h *Hub) RoomMembers(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomClients, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]*Client, 0, len(roomClients))
	for _, client := range roomClients {
		members = append(members, client)
	}
	return members
}

// RoomMemberCount returns the number of local members of a room.
func (h *Hub) RoomMemberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) removeClient(client *Client) {
	h.unregister <- client
}

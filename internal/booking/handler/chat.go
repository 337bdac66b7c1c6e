package handler

import (
	"sync"
	"time"

	"carpool/pkg/logger"
	"carpool/pkg/websocket"
)

// ChatHub relays messages between the participants of a ride. Access is
// decided before a connection reaches the hub: the websocket authorize hook
// asks the access gate whether the user is the driver or holds a seat.
type ChatHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*websocket.Connection]bool
	log   logger.Logger
}

func NewChatHub(log logger.Logger) *ChatHub {
	return &ChatHub{
		rooms: make(map[string]map[*websocket.Connection]bool),
		log:   log,
	}
}

// ChatMessage is the wire shape of a relayed chat message
type ChatMessage struct {
	Type    string `json:"type"`
	RideID  string `json:"ride_id"`
	UserID  string `json:"user_id"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
	SentAt  string `json:"sent_at"`
}

// Join adds a connection to a ride's room
func (h *ChatHub) Join(rideID string, conn *websocket.Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[rideID]
	if !ok {
		room = make(map[*websocket.Connection]bool)
		h.rooms[rideID] = room
	}
	room[conn] = true

	h.log.WithFields(logger.LogFields{
		"ride_id": rideID,
		"user_id": conn.Claims.UserID,
		"size":    len(room),
	}).Info("chat_joined", "Participant joined ride chat")
}

// Leave removes a connection from a ride's room
func (h *ChatHub) Leave(rideID string, conn *websocket.Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[rideID]
	if !ok {
		return
	}
	delete(room, conn)
	if len(room) == 0 {
		delete(h.rooms, rideID)
	}
}

// Broadcast relays a message to everyone in the ride's room, sender included
// so their own client renders the delivered message.
func (h *ChatHub) Broadcast(rideID string, from *websocket.Connection, text string) {
	msg := ChatMessage{
		Type:    "chat",
		RideID:  rideID,
		UserID:  from.Claims.UserID,
		Name:    from.Claims.Name,
		Message: text,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.rooms[rideID] {
		if err := conn.WriteJSON(msg); err != nil {
			h.log.WithFields(logger.LogFields{
				"ride_id": rideID,
				"user_id": conn.Claims.UserID,
			}).Error("chat_relay_failed", err)
		}
	}
}

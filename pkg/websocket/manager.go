package websocket

import (
	"sync"

	"carpool/pkg/logger"
)

// Manager tracks one live connection per user.
type Manager struct {
	connections map[string]*Connection // user_id -> connection
	mu          sync.RWMutex
	log         logger.Logger
}

func NewManager(log logger.Logger) *Manager {
	return &Manager{
		connections: make(map[string]*Connection),
		log:         log,
	}
}

// AddConnection registers a connection, replacing any existing one for the
// same user.
func (m *Manager) AddConnection(userID string, conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.connections[userID]; ok {
		existing.Close()
	}

	m.connections[userID] = conn
	m.log.WithFields(logger.LogFields{
		"user_id": userID,
		"total":   len(m.connections),
	}).Info("websocket_connected", "Connection added")
}

// RemoveConnection drops and closes a user's connection.
func (m *Manager) RemoveConnection(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.connections[userID]; ok {
		conn.Close()
		delete(m.connections, userID)
	}
}

// SendToUser pushes a message to a connected user. A user without a live
// connection is not an error; the durable notification still exists.
func (m *Manager) SendToUser(userID string, message interface{}) error {
	m.mu.RLock()
	conn, ok := m.connections[userID]
	m.mu.RUnlock()

	if !ok {
		return nil
	}

	if err := conn.WriteJSON(message); err != nil {
		m.RemoveConnection(userID)
		return err
	}
	return nil
}

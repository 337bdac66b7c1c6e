package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"carpool/pkg/auth"
	"carpool/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024

	// Time allowed for the client to send its auth message
	authTime = 5 * time.Second
)

type wsErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type authRequest struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Connection is one authenticated client socket with a buffered send queue.
type Connection struct {
	conn       *websocket.Conn
	log        logger.Logger
	send       chan []byte
	done       chan struct{}
	writeMutex sync.Mutex
	Claims     *auth.AppClaims
}

func newConnection(conn *websocket.Conn, log logger.Logger, claims *auth.AppClaims) *Connection {
	return &Connection{
		conn:   conn,
		log:    log,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		Claims: claims,
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.log.Error("websocket_write", err)
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, []byte{}); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Connection) write(mt int, payload []byte) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(mt, payload)
}

// WriteJSON queues a JSON message for the peer. A full send buffer drops
// the message rather than blocking the caller.
func (c *Connection) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errors.New("connection closed")
	default:
		c.log.WithFields(logger.LogFields{"user_id": c.Claims.UserID}).Error("websocket_send_buffer_full", errors.New("dropping message"))
		return errors.New("send buffer full")
	}
}

// ReadPump reads until the peer disconnects, invoking onMessage per frame.
func (c *Connection) ReadPump(onMessage func(msgType int, p []byte), onDisconnect func()) {
	defer func() {
		onDisconnect()
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway) {
				c.log.Error("websocket_read_error", err)
			}
			break
		}
		onMessage(msgType, msg)
	}
}

func (c *Connection) Close() {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	select {
	case <-c.done:
		return
	default:
		close(c.done)
		close(c.send)
		c.conn.Close()
	}
}

// Handler upgrades an HTTP request, waits for the client's auth message and
// hands the authenticated connection to onConnect. An optional authorize
// hook runs after token verification (used to gate ride chat streams on
// roster membership).
type Handler struct {
	log        logger.Logger
	jwtManager *auth.JWTManager
	authorize  func(r *http.Request, claims *auth.AppClaims) error
	onConnect  func(conn *Connection)
}

func NewHandler(
	log logger.Logger,
	jwtManager *auth.JWTManager,
	authorize func(r *http.Request, claims *auth.AppClaims) error,
	onConnect func(conn *Connection),
) *Handler {
	return &Handler{
		log:        log,
		jwtManager: jwtManager,
		authorize:  authorize,
		onConnect:  onConnect,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket_upgrade_failed", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(authTime))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		sendErrorAndClose(conn, "Authentication timeout")
		return
	}

	var req authRequest
	if err := json.Unmarshal(msg, &req); err != nil || req.Type != "auth" || req.Token == "" {
		sendErrorAndClose(conn, "Invalid authentication request format")
		return
	}

	tokenString := strings.TrimPrefix(req.Token, "Bearer ")
	claims, err := h.jwtManager.ParseToken(tokenString)
	if err != nil {
		h.log.Error("websocket_auth_token_invalid", err)
		sendErrorAndClose(conn, "Invalid or expired token")
		return
	}

	if h.authorize != nil {
		if err := h.authorize(r, claims); err != nil {
			h.log.WithFields(logger.LogFields{"user_id": claims.UserID}).Error("websocket_auth_denied", err)
			sendErrorAndClose(conn, "Not allowed")
			return
		}
	}

	h.log.WithFields(logger.LogFields{"user_id": claims.UserID}).Info("websocket_auth_success", "Client authenticated")
	wsConn := newConnection(conn, h.log, claims)
	go wsConn.writePump()
	go h.onConnect(wsConn)
}

func sendErrorAndClose(conn *websocket.Conn, msg string) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteJSON(wsErrorResponse{
		Type:    "error",
		Message: msg,
	})
	conn.Close()
}

package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeSnapshot  = "snapshot"
	MsgTypePong      = "pong"
)

const wsWriteTimeout = 10 * time.Second

// WSMessage is the envelope of every websocket frame
type WSMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocketHandlerImpl streams panel snapshots to the browser
type WebSocketHandlerImpl struct {
	upgrader websocket.Upgrader
	sessions SessionManager
}

// NewWebSocketHandler creates a new websocket handler. Client pings keep
// the session alive in sessions.
func NewWebSocketHandler(sessions SessionManager) WebSocketHandler {
	return &WebSocketHandlerImpl{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) send(msg WSMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg.Timestamp = time.Now().UnixMilli()
	_ = w.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.ws.WriteJSON(msg)
}

// HandleWebSocket upgrades the connection and sends a snapshot after every
// change of the caller's panel, starting with the current state.
func (h *WebSocketHandlerImpl) HandleWebSocket(c echo.Context) error {
	panel, err := panelFrom(c)
	if err != nil {
		return err
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	logger := c.Logger()
	id := shortID(panel.ID())
	logger.Debugf("[WebSocket %s] client connected", id)

	conn := &wsConn{ws: ws}
	if err := conn.send(WSMessage{Type: MsgTypeConnected}); err != nil {
		return nil
	}

	snapshots, unsubscribe := panel.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg WSMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warnf("[WebSocket %s] connection error: %v", id, err)
				}
				return
			}
			if msg.Type == MsgTypePing {
				h.sessions.Touch(panel.ID())
				_ = conn.send(WSMessage{Type: MsgTypePong})
			}
		}
	}()

	for {
		select {
		case <-closed:
			logger.Debugf("[WebSocket %s] client disconnected", id)
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				// session closed
				conn.mu.Lock()
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session expired"),
					time.Now().Add(wsWriteTimeout))
				conn.mu.Unlock()
				return nil
			}
			payload, err := json.Marshal(snap)
			if err != nil {
				logger.Errorf("[WebSocket %s] failed to encode snapshot: %v", id, err)
				continue
			}
			if err := conn.send(WSMessage{Type: MsgTypeSnapshot, Payload: payload}); err != nil {
				return nil
			}
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

package notifications

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/classboard/classboard/pkg/logger"
)

// writeWait bounds a single frame write so one stuck socket surfaces as a
// write error (and gets evicted) instead of blocking forever.
const writeWait = 10 * time.Second

// wsConn adapts *websocket.Conn to the Hub's Conn interface. gorilla
// connections do not allow concurrent writers, so writes are serialized
// with a mutex: the read-loop pong replies and hub pushes share the socket.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// WSHandler upgrades HTTP requests to WebSocket connections, registers them
// with the Hub, and runs the inbound frame loop.
type WSHandler struct {
	hub      *Hub
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates the /ws endpoint handler.
func NewWSHandler(hub *Hub, log *slog.Logger) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement belongs to the gateway in front of this
			// service; the subsystem trusts the identity it is handed.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements GET /ws?userId=&role=.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	role := r.URL.Query().Get("role")
	if userID == "" {
		http.Error(w, "userId query parameter is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		h.log.Warn("websocket upgrade failed", logger.UserID(userID), logger.Error(err))
		return
	}

	wc := &wsConn{conn: conn}
	h.hub.Register(userID, wc)
	h.log.Info("websocket connected", logger.UserID(userID), logger.Role(role))

	if err := wc.WriteJSON(ConnectedEnvelope(userID)); err != nil {
		h.hub.Unregister(userID, wc)
		_ = wc.Close()
		return
	}

	h.readLoop(userID, wc)
}

// readLoop consumes inbound frames until the connection drops. Malformed
// frames are dropped with a warning; the connection stays open.
func (h *WSHandler) readLoop(userID string, wc *wsConn) {
	defer func() {
		h.hub.Unregister(userID, wc)
		_ = wc.Close()
		h.log.Info("websocket disconnected", logger.UserID(userID))
	}()

	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.log.Warn("dropping malformed frame", logger.UserID(userID), logger.Error(err))
			continue
		}

		switch frame.Type {
		case FrameAuth:
			// Authentication is handled upstream; the frame is acknowledged
			// for protocol symmetry and logged for diagnostics only.
			h.log.Debug("client authenticated",
				logger.UserID(frame.UserID),
				logger.Role(frame.UserRole),
			)
		case FramePing:
			if err := wc.WriteJSON(PongEnvelope()); err != nil {
				return
			}
		default:
			h.log.Warn("dropping frame of unknown type",
				logger.UserID(userID),
				logger.Event(string(frame.Type)),
			)
		}
	}
}

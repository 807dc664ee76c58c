package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"NoticeBoard/internal/apperror"
	"NoticeBoard/internal/user"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	userID string
	role   string
	conn   *websocket.Conn
	send   chan []byte
}

func (cl *client) writePump() {
	for msg := range cl.send {
		if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Hub tracks connected clients by user so published notices can be
// delivered only to their matched audience instead of broadcast to
// everyone.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *zap.Logger
}

func NewHub(lc fx.Lifecycle, log *zap.Logger) *Hub {
	h := &Hub{clients: make(map[*client]struct{}), log: log}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			h.closeAll()
			return nil
		},
	})
	return h
}

// ServeWS authenticates the token query parameter, upgrades the
// connection, and keeps it registered until the client disconnects.
func (h *Hub) ServeWS(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return apperror.Forbidden("Missing token")
	}
	claims, err := user.ParseJWT(token)
	if err != nil {
		return apperror.Forbidden("Invalid token")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Error("Websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	cl := &client{
		userID: claims.UserID,
		role:   claims.Role,
		conn:   conn,
		send:   make(chan []byte, 16),
	}
	h.register(cl)
	defer h.unregister(cl)
	go cl.writePump()

	h.log.Info("Websocket client connected", zap.String("user", cl.userID))

	// Read loop only watches for the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[cl] = struct{}{}
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		close(cl.send)
		delete(h.clients, cl)
	}
}

// Deliver sends one event to every connection belonging to a recipient.
// Admin connections always receive it. Clients that cannot keep up are
// skipped rather than blocking the publish path.
func (h *Hub) Deliver(event string, payload interface{}, recipients map[string]struct{}) {
	msg, err := json.Marshal(map[string]interface{}{"event": event, "data": payload})
	if err != nil {
		h.log.Error("Failed to encode websocket event", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		if cl.role != user.RoleAdmin {
			if _, ok := recipients[cl.userID]; !ok {
				continue
			}
		}
		select {
		case cl.send <- msg:
		default:
			h.log.Warn("Dropping event for slow websocket client", zap.String("user", cl.userID))
		}
	}
}

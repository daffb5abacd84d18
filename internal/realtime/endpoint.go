package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReadLimit caps inbound frame size.
const DefaultReadLimit = 4096

// UserResolver authenticates the upgrade request.
type UserResolver func(r *http.Request) (int64, bool)

// Endpoint upgrades HTTP requests to websockets, registers them with the
// hub and answers the liveness protocol until the client goes away.
type Endpoint struct {
	hub          *Hub
	resolve      UserResolver
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

// NewEndpoint creates a new Endpoint.
func NewEndpoint(hub *Hub, resolve UserResolver, writeTimeout time.Duration) *Endpoint {
	return &Endpoint{
		hub:     hub,
		resolve: resolve,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
	}
}

// ServeHTTP handles GET /ws/messages.
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := e.resolve(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	conn := newWSConn(ws, e.writeTimeout)
	e.hub.Connect(userID, conn)
	defer func() {
		e.hub.Disconnect(userID, conn)
		_ = conn.Close()
	}()

	ws.SetReadLimit(DefaultReadLimit)

	for {
		msgType, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket read failed", "user_id", userID, "conn_id", conn.ID(), "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if err := conn.WriteText(Reply(frame)); err != nil {
			slog.Warn("websocket reply failed", "user_id", userID, "conn_id", conn.ID(), "error", err)
			return
		}
	}
}

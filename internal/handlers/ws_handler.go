package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"relaychat-backend/internal/events"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// WSHandler streams a user's events over a WebSocket.
type WSHandler struct {
	hub      *events.Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWSHandler creates the handler. checkOrigin may be nil to accept any origin.
func NewWSHandler(hub *events.Hub, checkOrigin func(r *http.Request) bool, logger *zap.Logger) *WSHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WSHandler{
		hub:      hub,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		log:      logger.Named("ws_handler"),
	}
}

// HandleWS handles GET /v1/ws. The client only listens; anything it sends is
// read and discarded so pongs and close frames are processed.
func (h *WSHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	// subscribe first so nothing published after the handshake is missed
	sub := h.hub.Subscribe(userID)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.log.Debug("websocket connected", zap.String("user_id", userID.String()), zap.String("subscription_id", sub.ID.String()))

	go h.writePump(conn, sub)
	h.readPump(conn, sub)
}

func (h *WSHandler) readPump(conn *websocket.Conn, sub *events.Subscription) {
	defer func() {
		sub.Close()
		conn.Close()
	}()

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *WSHandler) writePump(conn *websocket.Conn, sub *events.Subscription) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case evt, ok := <-sub.C():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hyakumasu/pokedrill/internal/types"
	"github.com/hyakumasu/pokedrill/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Local single-player backend; browsers on any origin may connect.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Ticks handles GET /v1/sessions/current/ticks. It upgrades to a WebSocket
// and pushes the session state after every transition, starting with the
// current one.
func (h *Handler) Ticks(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		h.logger.Warn("WebSocket upgrade failed", logger.F("error", err.Error()))
		return
	}
	defer conn.Close()

	updates, cancel := h.game.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go h.readPump(conn, done)

	if err := h.writeState(conn, types.NewSessionStateResponse(h.game.Current(), h.now())); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case st, ok := <-updates:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := h.writeState(conn, types.NewSessionStateResponse(st, h.now())); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readPump discards client messages and closes done once the client goes away
func (h *Handler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket closed", logger.F("error", err.Error()))
			}
			return
		}
	}
}

func (h *Handler) writeState(conn *websocket.Conn, resp types.SessionStateResponse) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(resp)
}

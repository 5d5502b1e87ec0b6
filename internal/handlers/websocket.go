package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams a player's game events over a websocket.
type WebSocketHandler struct {
	gameEngine *services.GameEngine
	bus        *services.EventBus
	log        logrus.FieldLogger
}

type Message struct {
	Type string          `json:"type"`
	Game models.GameType `json:"game,omitempty"`
	Data any             `json:"data,omitempty"`
	At   int64           `json:"at"`
}

func NewWebSocketHandler(gameEngine *services.GameEngine, bus *services.EventBus, log logrus.FieldLogger) *WebSocketHandler {
	return &WebSocketHandler{
		gameEngine: gameEngine,
		bus:        bus,
		log:        log,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetInt64("user_id")
	log := h.log.WithField("user_id", userID)

	if _, ok := playerSession(c, h.gameEngine); !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to upgrade to WebSocket")
		return
	}

	sub := h.bus.Subscribe(userID)
	out := make(chan Message, 8)
	done := make(chan struct{})
	go h.writeLoop(conn, sub, out, done, log)

	defer func() {
		close(done)
		sub.Close()
	}()

	out <- h.snapshot(c, userID)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("WebSocket closed")
			}
			return
		}

		var reply Message
		switch msg.Type {
		case "PING":
			reply = Message{Type: "PONG", At: time.Now().UnixMilli()}
		case "STATE":
			reply = h.snapshot(c, userID)
		default:
			continue
		}

		select {
		case out <- reply:
		default:
			log.WithField("type", msg.Type).Debug("Reply buffer full, dropping")
		}
	}
}

func (h *WebSocketHandler) snapshot(c *gin.Context, userID int64) Message {
	session, err := h.gameEngine.Session(c.Request.Context(), userID)
	if err != nil {
		return Message{
			Type: "ERROR",
			Data: gin.H{"error": "Account unavailable", "details": err.Error()},
			At:   time.Now().UnixMilli(),
		}
	}
	return Message{
		Type: "STATE",
		Data: gin.H{
			"balances": session.Ledger.Balances(),
			"mines":    session.Mines.State(),
			"crash":    session.Crash.State(),
			"drop":     session.Rewards.PendingDrop(),
		},
		At: time.Now().UnixMilli(),
	}
}

// writeLoop owns all writes to conn.
func (h *WebSocketHandler) writeLoop(conn *websocket.Conn, sub *services.Subscription, out <-chan Message, done <-chan struct{}, log logrus.FieldLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	write := func(msg Message) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.WithError(err).Debug("WebSocket write failed")
			return false
		}
		return true
	}

	for {
		select {
		case <-done:
			return
		case msg := <-out:
			if !write(msg) {
				return
			}
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if !write(Message{Type: string(ev.Type), Game: ev.Game, Data: ev.Payload, At: ev.At.UnixMilli()}) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

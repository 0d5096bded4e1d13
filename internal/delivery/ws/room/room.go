package ws_room

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/berkist/linkroyale/core/internal/delivery/dto"
	http_common "github.com/berkist/linkroyale/core/internal/delivery/http/common"
	"github.com/berkist/linkroyale/core/internal/hub"
	"github.com/berkist/linkroyale/core/internal/model"
	"github.com/berkist/linkroyale/core/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type MessageType string

const (
	StateUpdate MessageType = "state_update"
)

type Message struct {
	Type   MessageType `json:"type"`
	RoomID string      `json:"room_id"`
	Room   dto.Room    `json:"room"`
}

type Controller struct {
	hub    *hub.Hub
	logger *slog.Logger

	upgrader websocket.Upgrader
}

func New(h *hub.Hub, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		hub:    h,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/rooms/:room_id/live", c.live)
}

// live upgrades the connection and streams every committed state of the
// room until the client hangs up. The first message is always the current
// snapshot, so a reconnecting client needs no extra fetch.
func (c *Controller) live(ctx *gin.Context) {
	roomID := model.RoomID(ctx.Param("room_id"))

	sub, err := c.hub.Subscribe(ctx, roomID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, http_common.ErrorResponse{Message: "cannot subscribe"})
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		sub.Close()
		c.logger.Error("upgrade failed",
			slog.String("room_id", string(roomID)),
			slog.String("error", err.Error()))
		return
	}

	client := &client{
		sub:    sub,
		conn:   conn,
		roomID: roomID,
		logger: c.logger,
	}
	go client.readPump()
	go client.writePump()
}

type client struct {
	sub    *hub.Subscription
	conn   *websocket.Conn
	roomID model.RoomID
	logger *slog.Logger
}

// readPump discards inbound frames; the socket is push-only. It exists to
// service close frames and pongs and to tear the subscription down when the
// peer goes away.
func (c *client) readPump() {
	defer func() {
		c.sub.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sub.Close()
		c.conn.Close()
	}()

	for {
		select {
		case room, ok := <-c.sub.States():
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}

			payload, err := json.Marshal(Message{
				Type:   StateUpdate,
				RoomID: string(c.roomID),
				Room:   dto.FromRoom(room),
			})
			if err != nil {
				c.logger.Error("marshal state failed",
					slog.String("room_id", string(c.roomID)),
					slog.String("error", err.Error()))
				continue
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"group_chat/internal/config"
	"group_chat/pkg/logger"
)

// Client - одно websocket-соединение. closed и rooms защищены мьютексом Hub.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	closed bool
	rooms  map[string]struct{}
	log    logger.Logger
}

func newClient(id string, conn *websocket.Conn, buffer int, log logger.Logger) *Client {
	return &Client{
		id:    id,
		conn:  conn,
		send:  make(chan []byte, buffer),
		rooms: make(map[string]struct{}),
		log:   log.With("conn_id", id),
	}
}

// readPump читает кадры и отдает их обработчику строго по одному:
// события одного соединения обрабатываются последовательно.
func (c *Client) readPump(cfg config.RealtimeConfig, onActivity func(), onFrame func([]byte)) {
	c.conn.SetReadLimit(cfg.MaxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	// pong только продлевает дедлайн чтения; активностью считаются лишь события
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn("Unexpected close", "error", err)
			}
			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		onActivity()
		onFrame(frame)
	}
}

// writePump - единственный писатель в соединение
func (c *Client) writePump(cfg config.RealtimeConfig) {
	ticker := time.NewTicker(cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Failed to write frame", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Failed to send ping", "error", err)
				return
			}
		}
	}
}

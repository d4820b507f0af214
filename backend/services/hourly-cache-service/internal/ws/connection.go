package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Connection is one dashboard subscribed to recalculation results.
type Connection struct {
	id            uint64
	machineSerial int64 // 0 subscribes to every machine
	ws            *websocket.Conn
	send          chan []byte
	logger        *zap.Logger
	writeTimeout  time.Duration
	onClose       func(id uint64)
}

// NewConnection builds connection wrapper.
func NewConnection(id uint64, machineSerial int64, ws *websocket.Conn, writeTimeout time.Duration, logger *zap.Logger, onClose func(uint64)) *Connection {
	return &Connection{
		id:            id,
		machineSerial: machineSerial,
		ws:            ws,
		send:          make(chan []byte, 16),
		logger:        logger,
		writeTimeout:  writeTimeout,
		onClose:       onClose,
	}
}

// ID returns identifier.
func (c *Connection) ID() uint64 {
	return c.id
}

// Wants reports whether the subscriber follows machineSerial.
func (c *Connection) Wants(machineSerial int64) bool {
	return c.machineSerial == 0 || c.machineSerial == machineSerial
}

// Start launches read/write pumps.
func (c *Connection) Start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump only watches for the client going away; dashboards never send data.
func (c *Connection) readPump(ctx context.Context) {
	defer c.cleanup()
	c.ws.SetReadLimit(4096)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.logger.Debug("dashboard connection closed", zap.Uint64("conn_id", c.id), zap.Error(err))
			return
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send enqueues a message for writing.
func (c *Connection) Send(msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("attempted to send on closed channel", zap.Uint64("conn_id", c.id))
		}
	}()
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("dropping outgoing message, buffer full", zap.Uint64("conn_id", c.id))
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	if c.onClose != nil {
		c.onClose(c.id)
	}
	close(c.send)
	_ = c.ws.Close()
}

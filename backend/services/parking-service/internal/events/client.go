package events

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 32
	readLimit    = 4096
	pongWaitMult = 2
)

// Client is one WebSocket subscriber. Inbound messages are discarded; the read
// pump only keeps the connection alive and notices when it goes away.
type Client struct {
	ws           *websocket.Conn
	outbox       chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	pingInterval time.Duration
	writeTimeout time.Duration
	logger       *zap.Logger
	onClose      func(*Client)
}

func newClient(ws *websocket.Conn, pingInterval, writeTimeout time.Duration, logger *zap.Logger, onClose func(*Client)) *Client {
	return &Client{
		ws:           ws,
		outbox:       make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		logger:       logger,
		onClose:      onClose,
	}
}

func (c *Client) start() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer c.close()

	pongWait := c.pingInterval * pongWaitMult
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.logger.Debug("event subscriber read closed", zap.Error(err))
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.write(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.outbox:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// send enqueues msg without blocking.
func (c *Client) send(msg []byte) {
	select {
	case <-c.done:
	case c.outbox <- msg:
	default:
		c.logger.Warn("dropping event, subscriber buffer full")
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.onClose != nil {
			c.onClose(c)
		}
		// Let the write pump send the close frame before the socket goes away.
		time.AfterFunc(c.writeTimeout, func() { _ = c.ws.Close() })
	})
}

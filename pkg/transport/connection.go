package transport

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// callback executed when a message is received.
type MessageHandler func(ctx context.Context, connID uuid.UUID, msg []byte)

type OnCloseHandler func(connID uuid.UUID, err error)

type ConnectionConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Connection represents a single, thread-safe WebSocket connection.
type Connection struct {
	id     uuid.UUID
	conn   *websocket.Conn
	config ConnectionConfig
	send   chan []byte

	onMessage MessageHandler
	onClose   OnCloseHandler

	done      chan struct{}
	wg        *sync.WaitGroup
	ctx       context.Context
	closeOnce sync.Once
	cancel    context.CancelFunc

	logger *slog.Logger
}

func NewConnection(parentCtx context.Context, wg *sync.WaitGroup, conn *websocket.Conn, config ConnectionConfig, logger *slog.Logger) *Connection {
	id := uuid.New()
	connCtx, cancel := context.WithCancel(parentCtx)
	connLogger := logger.With(slog.String("connID", id.String()))

	return &Connection{
		id:     id,
		conn:   conn,
		logger: connLogger,
		config: config,
		send:   make(chan []byte, 256), // Buffered channel
		done:   make(chan struct{}),
		ctx:    connCtx,
		cancel: cancel,
		wg:     wg,
	}
}

func (c *Connection) Run() {
	c.wg.Add(1)
	go c.readPump()
	go c.writePump()

	c.logger.Debug("connection established")
}

// readPump pumps messages from the WebSocket connection to the message handler.
func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	for {
		message, err := c.readOne()
		if err != nil {
			readErr = err
			return
		}
		if message == nil {
			// Non-data frame, keep reading.
			continue
		}
		if c.onMessage != nil {
			// Handlers run to completion on this connection's read loop;
			// a slow handler backpressures only its own connection.
			c.onMessage(c.ctx, c.id, message)
		}
	}
}

func (c *Connection) readOne() ([]byte, error) {
	readCtx, cancelRead := context.WithTimeout(c.ctx, c.config.ReadTimeout)
	defer cancelRead()

	typ, r, err := c.conn.Reader(readCtx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageText && typ != websocket.MessageBinary {
		return nil, nil
	}
	return io.ReadAll(r)
}

// writePump pumps messages from the send channel to the WebSocket connection.
func (c *Connection) writePump() {
	var writeErr error

	defer func() {
		c.Close(writeErr)
	}()

	for {
		select {
		case message := <-c.send:
			writeCtx, cancelWrite := context.WithTimeout(c.ctx, c.config.WriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancelWrite()
			if err != nil {
				writeErr = err
				return
			}
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusNormalClosure, "request cancelled")
			return
		}
	}
}

// Send queues a message for delivery to the client. Safe for concurrent use,
// including concurrently with Close: the send channel stays open for the
// connection's lifetime, so a racing Send can never hit a closed channel.
// Messages queued after close are dropped with the context.
func (c *Connection) Send(message []byte) {
	select {
	case <-c.ctx.Done():
		c.logger.Warn("Attempted to send on a closed connection")
	case c.send <- message:
	}
}

// Close gracefully shuts down the connection and its resources. Idempotent.
// The send channel is deliberately never closed; the write pump exits on the
// cancelled context instead.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		status := websocket.CloseStatus(err)
		c.logger.Debug("Transport connection closing", slog.Any("reason", err), slog.String("status", status.String()))

		c.cancel() // Signal goroutines to stop.
		c.conn.Close(websocket.StatusNormalClosure, "")
		if c.onClose != nil {
			c.onClose(c.id, err)
		}
		c.wg.Done()
		close(c.done)
	})
}

// Done returns a channel that is closed when the connection is fully terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ID returns the unique identifier of the connection.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// Context is cancelled once the connection begins closing.
func (c *Connection) Context() context.Context {
	return c.ctx
}

func (c *Connection) SetOnMessageHandler(handler MessageHandler) {
	c.onMessage = handler
}

func (c *Connection) SetOnCloseHandler(handler OnCloseHandler) {
	c.onClose = handler
}

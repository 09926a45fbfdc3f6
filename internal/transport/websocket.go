package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Shugur-Network/relay-pool/internal/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketDialer dials relays over WebSocket.
type WebSocketDialer struct {
	// WriteTimeout bounds every frame write. Zero means 10 seconds.
	WriteTimeout time.Duration
	// FrameBufferSize is the inbound frame channel capacity. Zero means 64.
	FrameBufferSize int
}

// Dial connects to a relay URL and starts the read pump.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	writeTimeout := d.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}
	bufSize := d.FrameBufferSize
	if bufSize == 0 {
		bufSize = 64
	}

	c := &wsConn{
		ws:           ws,
		url:          url,
		writeTimeout: writeTimeout,
		frames:       make(chan []byte, bufSize),
		log:          logger.New("transport").With(zap.String("relay", url)),
	}

	ws.SetPingHandler(func(appData string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		// Echo back the same ping data in the pong response
		_ = c.ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
		return nil
	})

	go c.readPump()
	return c, nil
}

// wsConn wraps a gorilla connection behind the Conn interface.
type wsConn struct {
	ws           *websocket.Conn
	url          string
	writeTimeout time.Duration
	frames       chan []byte
	log          *zap.Logger

	writeMu  sync.Mutex
	closeMu  sync.Once
	isClosed atomic.Bool
}

func (c *wsConn) Send(payload []byte) error {
	if c.isClosed.Load() {
		return ErrConnClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)) // nolint:errcheck // deadline is non-critical
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) Ping() error {
	if c.isClosed.Load() {
		return ErrConnClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), time.Now().Add(5*time.Second))
	_ = c.ws.SetWriteDeadline(time.Time{})
	return err
}

// Close attempts a polite close handshake before tearing the socket down.
func (c *wsConn) Close() error {
	c.closeMu.Do(func() {
		c.isClosed.Store(true)

		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		closeChan := make(chan struct{})
		go func() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			c.writeMu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			_ = c.ws.SetWriteDeadline(time.Time{})
			c.writeMu.Unlock()
			close(closeChan)
		}()

		select {
		case <-closeChan:
		case <-closeCtx.Done():
			c.log.Debug("Close message timeout")
		}

		_ = c.ws.Close()
	})
	return nil
}

func (c *wsConn) Frames() <-chan []byte {
	return c.frames
}

// readPump pumps inbound text frames into the frames channel until the
// stream ends.
func (c *wsConn) readPump() {
	defer close(c.frames)

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("Relay closed connection normally")
			} else if !c.isClosed.Load() {
				c.log.Debug("WS read error, stream ended", zap.Error(err))
			}
			return
		}
		c.frames <- raw
	}
}

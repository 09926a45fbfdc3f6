package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Shugur-Network/relay-pool/internal/logger"
	"github.com/Shugur-Network/relay-pool/internal/metrics"
	"github.com/Shugur-Network/relay-pool/internal/transport"
	nostr "github.com/nbd-wtf/go-nostr"
	"go.uber.org/zap"
)

// command is a writer loop instruction.
type command struct {
	close   bool
	label   string // message type for metrics ("EVENT", "REQ", "CLOSE")
	payload []byte
}

// session holds the channels of one live connection. A new session is
// created on every successful dial.
type session struct {
	cmd  chan command
	done chan struct{}
}

// Relay is the per-relay connection actor. A writer goroutine owns the
// outbound side of the transport, a reader goroutine owns the inbound
// side. All interaction goes through the bounded command queue.
type Relay struct {
	url    string
	dialer transport.Dialer
	events chan<- poolEvent
	wg     *sync.WaitGroup
	log    *zap.Logger

	keepAlive time.Duration
	cmdSize   int

	mu      sync.RWMutex
	status  Status
	session *session
}

func newRelay(url string, dialer transport.Dialer, events chan<- poolEvent, wg *sync.WaitGroup, keepAlive time.Duration, cmdSize int) *Relay {
	return &Relay{
		url:       url,
		dialer:    dialer,
		events:    events,
		wg:        wg,
		keepAlive: keepAlive,
		cmdSize:   cmdSize,
		log:       logger.New("relay").With(zap.String("relay", url)),
		status:    StatusDisconnected,
	}
}

// URL returns the relay URL.
func (r *Relay) URL() string {
	return r.url
}

// Status returns the current connection state.
func (r *Relay) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Connect dials the relay and starts the reader and writer loops. It is
// a no-op when a connection attempt or connection already exists.
func (r *Relay) Connect(ctx context.Context) error {
	r.mu.Lock()
	if r.status != StatusDisconnected {
		r.mu.Unlock()
		return nil
	}
	r.status = StatusConnecting
	r.mu.Unlock()

	r.log.Debug("Dialing relay")
	conn, err := r.dialer.Dial(ctx, r.url)
	if err != nil {
		r.mu.Lock()
		r.status = StatusDisconnected
		r.mu.Unlock()
		return fmt.Errorf("dial %s: %w", r.url, err)
	}

	sess := &session{
		cmd:  make(chan command, r.cmdSize),
		done: make(chan struct{}),
	}

	r.mu.Lock()
	r.status = StatusConnected
	r.session = sess
	r.mu.Unlock()
	metrics.ConnectedRelays.Inc()
	r.log.Info("Relay connected")

	r.wg.Add(2)
	go r.writerLoop(conn, sess)
	go r.readerLoop(conn, sess)
	return nil
}

// Disconnect asks the writer loop to close the connection. It is a
// no-op when the relay is not connected.
func (r *Relay) Disconnect() {
	r.mu.RLock()
	sess := r.session
	r.mu.RUnlock()
	if sess == nil {
		return
	}

	select {
	case sess.cmd <- command{close: true}:
	case <-sess.done:
	}
}

// Send enqueues a message for the writer loop without blocking. A full
// queue rejects the command.
func (r *Relay) Send(label string, payload []byte) error {
	r.mu.RLock()
	sess := r.session
	status := r.status
	r.mu.RUnlock()
	if status != StatusConnected || sess == nil {
		return fmt.Errorf("%w: %s", ErrNotConnected, r.url)
	}

	select {
	case sess.cmd <- command{label: label, payload: payload}:
		return nil
	case <-sess.done:
		return fmt.Errorf("%w: %s", ErrNotConnected, r.url)
	default:
		metrics.CommandsDropped.Inc()
		return fmt.Errorf("%w: %s", ErrQueueFull, r.url)
	}
}

// writerLoop owns the outbound side: command queue plus keepalive ticker.
func (r *Relay) writerLoop(conn transport.Conn, sess *session) {
	defer r.wg.Done()
	defer r.teardown(conn, sess)

	ticker := time.NewTicker(r.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-sess.cmd:
			if cmd.close {
				r.log.Debug("Close command received")
				return
			}
			if err := conn.Send(cmd.payload); err != nil {
				r.log.Error("Failed to write message", zap.Error(err))
				continue
			}
			metrics.MessagesSent.WithLabelValues(cmd.label).Inc()
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				r.log.Debug("Failed to send ping, closing connection", zap.Error(err))
				return
			}
			metrics.PingsSent.Inc()
			r.log.Debug("Sent ping to relay")
		}
	}
}

// readerLoop pumps inbound frames to the aggregator until the stream ends.
func (r *Relay) readerLoop(conn transport.Conn, sess *session) {
	defer r.wg.Done()

	for frame := range conn.Frames() {
		env := nostr.ParseMessage(string(frame))
		if env == nil {
			metrics.ParseErrors.Inc()
			r.log.Debug("Skipping malformed relay payload", zap.ByteString("payload", frame))
			continue
		}
		metrics.MessagesReceived.WithLabelValues(env.Label()).Inc()
		r.events <- messageReceived{RelayURL: r.url, Message: env}
	}

	metrics.RelayDisconnects.Inc()
	r.log.Info("Relay stream ended")
	r.events <- peerDisconnected{RelayURL: r.url}

	// Wake this session's writer so it tears down. The relay may have
	// reconnected by now; a fresh session must not be touched.
	select {
	case sess.cmd <- command{close: true}:
	case <-sess.done:
	}
}

// teardown closes the transport and marks the relay disconnected.
func (r *Relay) teardown(conn transport.Conn, sess *session) {
	_ = conn.Close()

	r.mu.Lock()
	if r.session == sess {
		r.session = nil
	}
	wasConnected := r.status == StatusConnected
	r.status = StatusDisconnected
	r.mu.Unlock()

	close(sess.done)
	if wasConnected {
		metrics.ConnectedRelays.Dec()
	}
	r.log.Info("Relay disconnected")
}

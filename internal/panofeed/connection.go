package panofeed

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendChSize     = 256
	maxReconnect   = 10
	maxBackoff     = 30 * time.Second
	defaultBackoff = time.Second
	writeWait      = 10 * time.Second
)

// connection owns one WebSocket with a single writer goroutine. The latest
// message of each type is remembered and replayed when the socket is
// re-established, so a viewer that reconnects catches up at once.
type connection struct {
	sendCh chan []byte
	done   chan struct{}

	// quit stops the writer of the current socket.
	mu     sync.Mutex
	conn   *ws.Conn
	quit   chan struct{}
	closed bool

	wsURL   string
	secret  string
	backoff time.Duration

	replay map[string][]byte

	log zerolog.Logger
}

func newConnection(backoff time.Duration, log zerolog.Logger) *connection {
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &connection{
		sendCh:  make(chan []byte, sendChSize),
		done:    make(chan struct{}),
		backoff: backoff,
		replay:  make(map[string][]byte),
		log:     log,
	}
}

func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	quit := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.quit = quit
	c.mu.Unlock()

	go c.writeLoop(conn, quit)
	go c.readLoop(conn)
	return nil
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (c *connection) writeLoop(conn *ws.Conn, quit <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-quit:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Warn().Err(err).Msg("WebSocket SetWriteDeadline error")
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.log.Warn().Err(err).Msg("WebSocket write error")
				go c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop notices a dropped socket. The viewer has nothing to tell us.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.log.Warn().Err(err).Msg("WebSocket read error")
			go c.reconnect(conn)
			return
		}
		c.log.Trace().Int("bytes", len(message)).Msg("Ignoring message from viewer")
	}
}

// reconnect replaces failed with a fresh socket, backing off exponentially.
// Only the first caller for a given failed socket does the work. The queue
// is emptied before the replay snapshot is taken: what was queued while
// disconnected is covered by the replay, and sending it afterwards could
// leave the viewer on an older message than the replay delivered.
func (c *connection) reconnect(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != failed {
		c.mu.Unlock()
		return
	}
	close(c.quit)
	_ = c.conn.Close()
	c.conn = nil
	c.mu.Unlock()

	backoff := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.log.Info().Int("attempt", attempt).Dur("backoff", backoff).Msg("Reconnecting to panorama viewer")
		conn, err := c.dialOnce()
		if err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("Reconnect dial failed")
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		if n := c.drain(); n > 0 {
			c.log.Debug().Int("messages", n).Msg("Discarded queue superseded by replay")
		}
		if err := c.replayTo(conn); err != nil {
			c.log.Warn().Err(err).Msg("Failed to replay state after reconnect")
			_ = conn.Close()
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		quit := make(chan struct{})
		c.conn = conn
		c.quit = quit
		c.mu.Unlock()

		c.log.Info().Int("attempt", attempt).Msg("Panorama viewer reconnected")
		go c.writeLoop(conn, quit)
		go c.readLoop(conn)
		return
	}

	c.log.Error().Int("maxAttempts", maxReconnect).Msg("Panorama viewer reconnect failed after max attempts")
}

// drain empties the send queue and returns how many messages it held.
func (c *connection) drain() int {
	n := 0
	for {
		select {
		case <-c.sendCh:
			n++
		default:
			return n
		}
	}
}

func (c *connection) replayTo(conn *ws.Conn) error {
	c.mu.Lock()
	var msgs [][]byte
	for _, t := range replayOrder {
		if data, ok := c.replay[t]; ok {
			msgs = append(msgs, data)
		}
	}
	c.mu.Unlock()

	for _, data := range msgs {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
			return err
		}
	}
	return nil
}

// publish remembers data as the latest msgType message and queues it. It
// never blocks; a full queue drops the message.
func (c *connection) publish(msgType string, data []byte) {
	c.mu.Lock()
	c.replay[msgType] = data
	c.mu.Unlock()

	select {
	case c.sendCh <- data:
	default:
		c.log.Warn().Str("type", msgType).Msg("Panorama feed send channel full, dropping message")
	}
}

func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}

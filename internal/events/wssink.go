package events

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gale-deploy/agent/internal/logging"
	"github.com/gale-deploy/agent/internal/secmem"
)

var wslog = logging.L("events.ws")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.3
	queueSize      = 256
)

// frame is the wire envelope for one event.
type frame struct {
	Type  string `json:"type"`
	Event Event  `json:"event"`
}

// WebsocketSink forwards events to a management server over a WebSocket.
// Publish never blocks: when the queue is full or the sink is stopped,
// events are dropped and counted.
type WebsocketSink struct {
	serverURL string
	token     *secmem.SecureString

	// TLSConfig optionally carries a client identity and pinned roots.
	// Set before Start.
	TLSConfig *tls.Config

	conn   *websocket.Conn
	connMu sync.RWMutex

	queue    chan []byte
	done     chan struct{}
	stopOnce sync.Once

	droppedMu sync.Mutex
	dropped   int64
}

func NewWebsocketSink(serverURL string, token *secmem.SecureString) *WebsocketSink {
	return &WebsocketSink{
		serverURL: serverURL,
		token:     token,
		queue:     make(chan []byte, queueSize),
		done:      make(chan struct{}),
	}
}

// Start runs the connection loop until Stop is called.
func (s *WebsocketSink) Start() {
	go s.reconnectLoop()
}

// Stop closes the connection, wipes the token, and stops delivery.
func (s *WebsocketSink) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)

		s.connMu.Lock()
		if s.conn != nil {
			s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			s.conn.Close()
			s.conn = nil
		}
		s.connMu.Unlock()

		s.token.Zero()
		wslog.Info("sink stopped")
	})
}

func (s *WebsocketSink) Publish(e Event) {
	data, err := json.Marshal(frame{Type: e.Kind(), Event: e})
	if err != nil {
		wslog.Error("failed to marshal event", "kind", e.Kind(), "error", err)
		return
	}

	select {
	case <-s.done:
		s.countDrop()
		return
	default:
	}

	select {
	case s.queue <- data:
	default:
		s.countDrop()
	}
}

// Dropped returns how many events were discarded because the queue was
// full or the sink was stopped.
func (s *WebsocketSink) Dropped() int64 {
	s.droppedMu.Lock()
	defer s.droppedMu.Unlock()
	return s.dropped
}

func (s *WebsocketSink) countDrop() {
	s.droppedMu.Lock()
	s.dropped++
	s.droppedMu.Unlock()
}

func (s *WebsocketSink) connect() error {
	wsURL, err := s.buildWSURL()
	if err != nil {
		return fmt.Errorf("failed to build WebSocket URL: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		TLSClientConfig:  s.TLSConfig,
	}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	wslog.Info("connected", "server", s.serverURL)
	return nil
}

func (s *WebsocketSink) buildWSURL() (string, error) {
	u, err := url.Parse(s.serverURL)
	if err != nil {
		return "", err
	}

	if tok := s.token.Reveal(); tok != "" {
		q := u.Query()
		q.Set("token", tok)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

func (s *WebsocketSink) reconnectLoop() {
	backoff := initialBackoff

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := s.connect(); err != nil {
			wslog.Warn("connection failed", "error", err)

			jitter := time.Duration(float64(backoff) * jitterFactor * (rand.Float64()*2 - 1))
			sleep := backoff + jitter
			if sleep < 0 {
				sleep = backoff
			}

			wslog.Info("retrying", "delay", sleep)
			select {
			case <-s.done:
				return
			case <-time.After(sleep):
			}

			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		// Reset backoff on successful connection
		backoff = initialBackoff

		done := make(chan struct{})
		go s.readPump(done)
		s.writePump(done)
		close(done)

		select {
		case <-s.done:
			return
		default:
		}
	}
}

// readPump discards inbound messages. The sink is outbound-only but the
// connection still needs a reader to process control frames and notice
// closes.
func (s *WebsocketSink) readPump(done chan struct{}) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-done:
			return
		default:
		}

		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wslog.Warn("read error", "error", err)
			}
			return
		}
	}
}

func (s *WebsocketSink) writePump(done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-s.done:
			return

		case data := <-s.queue:
			s.connMu.RLock()
			conn := s.conn
			s.connMu.RUnlock()

			if conn == nil {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				wslog.Warn("write error", "error", err)
				return
			}

		case <-ticker.C:
			s.connMu.RLock()
			conn := s.conn
			s.connMu.RUnlock()

			if conn == nil {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package websocket

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"water-monitor/internal/logger"
	"water-monitor/internal/models"
	"water-monitor/internal/supervisor"
)

// TransportConfig configures the sensor-facing websocket client.
type TransportConfig struct {
	Path             string // request path, "/" by default
	HandshakeTimeout time.Duration
	ReadLimit        int64
}

// DefaultTransportConfig matches the sensor firmware's websocket server.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Path:             "/",
		HandshakeTimeout: 10 * time.Second,
		ReadLimit:        4096,
	}
}

// Transport is a single websocket connection attempt to the sensor.
type Transport struct {
	cfg    TransportConfig
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewTransportFactory returns a factory producing one Transport per attempt.
func NewTransportFactory(cfg TransportConfig) supervisor.TransportFactory {
	return func() supervisor.Transport { return NewTransport(cfg) }
}

func NewTransport(cfg TransportConfig) *Transport {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return &Transport{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		log:  logger.WithComponent("ws-transport"),
		done: make(chan struct{}),
	}
}

// URL returns the websocket URL for target.
func (t *Transport) URL(target models.Target) string {
	u := url.URL{Scheme: "ws", Host: target.Addr(), Path: t.cfg.Path}
	return u.String()
}

// Open dials in the background and reports through events.
func (t *Transport) Open(target models.Target, events supervisor.Events) error {
	addr := t.URL(target)
	t.log.Debug().Str("url", addr).Msg("dialing")
	go t.run(addr, events)
	return nil
}

func (t *Transport) run(addr string, events supervisor.Events) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	conn, _, err := t.dialer.DialContext(ctx, addr, nil)
	cancel()
	if err != nil {
		if !t.isClosed() {
			events.OnError(err)
		}
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.mu.Unlock()

	if t.cfg.ReadLimit > 0 {
		conn.SetReadLimit(t.cfg.ReadLimit)
	}
	events.OnOpen()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if t.isClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				events.OnClose()
			} else {
				events.OnError(err)
			}
			return
		}
		events.OnMessage(message)
	}
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Close is idempotent and may be called before the dial completes.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		conn := t.conn
		t.mu.Unlock()
		close(t.done)

		if conn == nil {
			return
		}
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = conn.Close()
	})
	return err
}

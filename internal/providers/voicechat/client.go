package voicechat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"voicechat/internal/domain"
	"voicechat/internal/ports"
)

var ErrSendClosed = errors.New("voice chat socket is closed")

const (
	defaultBaseURL   = "ws://localhost:8000"
	defaultPath      = "/voice_chat"
	defaultHandshake = 10 * time.Second
	defaultWrite     = 10 * time.Second
	closeGrace       = time.Second
)

// Config controls the voice chat websocket.
type Config struct {
	BaseURL          string
	Path             string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Dialer implements ports.Transport over gorilla/websocket.
type Dialer struct {
	cfg Config
	log zerolog.Logger
}

func NewDialer(cfg Config, log zerolog.Logger) *Dialer {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Path == "" {
		cfg.Path = defaultPath
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshake
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWrite
	}
	return &Dialer{cfg: cfg, log: log.With().Str("component", "transport").Logger()}
}

// Dial opens the socket. Cancelling ctx closes the connection.
func (d *Dialer) Dial(ctx context.Context) (ports.Connection, error) {
	wsURL, err := buildURL(d.cfg)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.cfg.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w (status %s)", wsURL, err, resp.Status)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	d.log.Debug().Str("url", wsURL).Msg("socket connected")

	c := &connection{
		conn:         conn,
		writeTimeout: d.cfg.WriteTimeout,
		log:          d.log,
		events:       make(chan domain.TransportEvent, 64),
		outbound:     make(chan []byte, 8),
		closing:      make(chan struct{}),
		readDone:     make(chan struct{}),
		done:         make(chan struct{}),
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()
	go func() {
		c.wg.Wait()
		_ = conn.Close()
		c.finish()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.done:
		}
	}()

	return c, nil
}

type connection struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	log          zerolog.Logger

	events   chan domain.TransportEvent
	outbound chan []byte
	closing  chan struct{}
	readDone chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func (c *connection) SendSegment(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	select {
	case <-c.closing:
		return ErrSendClosed
	case <-c.done:
		if err := c.waitErr(); err != nil {
			return err
		}
		return ErrSendClosed
	default:
	}

	copied := append([]byte(nil), data...)
	select {
	case c.outbound <- copied:
		return nil
	case <-c.closing:
		return ErrSendClosed
	case <-c.done:
		if err := c.waitErr(); err != nil {
			return err
		}
		return ErrSendClosed
	}
}

func (c *connection) Events() <-chan domain.TransportEvent {
	return c.events
}

// Close sends a normal close frame, waits briefly for the peer to answer and
// then drops the connection. Safe to call more than once.
func (c *connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))

		select {
		case <-c.done:
		case <-time.After(closeGrace):
			_ = c.conn.Close()
		}
	})
	<-c.done
	return c.waitErr()
}

func (c *connection) waitErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// setErr records the first failure and reports whether err became it. Normal
// close codes are not failures.
func (c *connection) setErr(err error) bool {
	if err == nil {
		return false
	}
	if normalClose(err) {
		return false
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err != nil {
		return false
	}
	c.err = err
	return true
}

// normalClose unwraps err looking for a close frame with a normal code.
func normalClose(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	switch closeErr.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
		return true
	default:
		return false
	}
}

func (c *connection) locallyClosed() bool {
	select {
	case <-c.closing:
		return true
	default:
		return false
	}
}

func (c *connection) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case data := <-c.outbound:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				if !c.locallyClosed() && c.setErr(fmt.Errorf("failed to send segment: %w", err)) {
					c.emit(domain.TransportEvent{Kind: domain.TransportEventError, Err: c.waitErr()})
				}
				_ = c.conn.Close()
				return
			}
			c.log.Debug().Int("bytes", len(data)).Msg("segment written")
		case <-c.closing:
			return
		case <-c.readDone:
			return
		}
	}
}

func (c *connection) readLoop() {
	defer c.wg.Done()
	defer close(c.readDone)

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if !c.locallyClosed() && c.setErr(fmt.Errorf("socket read failed: %w", err)) {
				c.emit(domain.TransportEvent{Kind: domain.TransportEventError, Err: c.waitErr()})
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			var msg domain.ServerMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				c.log.Debug().Err(err).Int("bytes", len(payload)).Msg("dropping malformed text frame")
				continue
			}
			c.emit(domain.TransportEvent{Kind: domain.TransportEventMessage, Message: msg})
		case websocket.BinaryMessage:
			c.emit(domain.TransportEvent{Kind: domain.TransportEventAudio, Audio: payload})
		}
	}
}

// emit delivers in arrival order; it gives up only once the connection is
// being closed locally.
func (c *connection) emit(event domain.TransportEvent) {
	select {
	case c.events <- event:
	case <-c.closing:
	}
}

func (c *connection) finish() {
	select {
	case c.events <- domain.TransportEvent{Kind: domain.TransportEventClosed}:
	default:
	}
	close(c.events)
	close(c.done)
}

func buildURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "ws://"), strings.HasPrefix(base, "wss://"):
	default:
		return "", fmt.Errorf("invalid voice chat server URL %q: scheme must be http(s) or ws(s)", cfg.BaseURL)
	}
	base = strings.TrimRight(base, "/")

	path := cfg.Path
	if path == "" {
		path = defaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	parsed, err := url.Parse(base + path)
	if err != nil {
		return "", fmt.Errorf("invalid voice chat server URL: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid voice chat server URL %q: missing host", cfg.BaseURL)
	}
	return parsed.String(), nil
}

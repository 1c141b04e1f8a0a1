package hume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"calmly/internal/domain"
	"calmly/internal/ports"
)

const (
	DefaultStreamURL      = "wss://api.hume.ai/v0/evi2/stream"
	defaultConnectTimeout = 10 * time.Second
	closeGrace            = time.Second
	writeTimeout          = 2 * time.Second
)

var ErrHandshakeSent = errors.New("session start already sent")

// Config controls the EVI websocket settings.
type Config struct {
	APIKey         string
	ConfigID       string
	StreamURL      string
	ConnectTimeout time.Duration
}

// Provider implements ports.VoiceService for the Hume EVI stream.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
	log    zerolog.Logger
}

func NewProvider(cfg Config, log zerolog.Logger) *Provider {
	if cfg.StreamURL == "" {
		cfg.StreamURL = DefaultStreamURL
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	return &Provider{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout},
		log:    log.With().Str("component", "hume").Logger(),
	}
}

// Connect dials the stream endpoint and returns an open connection. The wait
// is bounded by the configured connect timeout.
func (p *Provider) Connect(ctx context.Context) (ports.SessionConnection, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: HUME_API_KEY is not configured", domain.ErrConnection)
	}

	streamURL, err := buildStreamURL(p.cfg)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	conn, resp, err := p.dialer.DialContext(dialCtx, streamURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: failed to connect to EVI stream: %v (status %d)", domain.ErrConnection, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: failed to connect to EVI stream: %v", domain.ErrConnection, err)
	}

	return newConnection(conn, p.log), nil
}

// Connection is one EVI session transport.
type Connection struct {
	conn *websocket.Conn
	log  zerolog.Logger

	state     atomic.Int32
	handshake atomic.Bool
	dropped   atomic.Uint64
	sent      atomic.Uint64

	writeMu      sync.Mutex
	writeTimeout time.Duration

	messages chan []byte
	closing  chan struct{}
	done     chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func newConnection(conn *websocket.Conn, log zerolog.Logger) *Connection {
	c := &Connection{
		conn:         conn,
		log:          log,
		writeTimeout: writeTimeout,
		messages:     make(chan []byte, 64),
		closing:      make(chan struct{}),
		done:         make(chan struct{}),
	}
	c.state.Store(int32(ports.ReadyStateOpen))
	go c.readLoop()
	return c
}

type startMessage struct {
	Type string `json:"type"`
}

// SendHandshake writes the session start control message. It may only be sent
// once per connection and must precede every audio frame.
func (c *Connection) SendHandshake() error {
	payload, err := json.Marshal(startMessage{Type: "start"})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if state := c.ReadyState(); state != ports.ReadyStateOpen {
		return fmt.Errorf("%w: connection is %s", domain.ErrConnection, state)
	}
	if c.handshake.Load() {
		return ErrHandshakeSent
	}
	if err := c.write(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: failed to send session start: %v", domain.ErrConnection, err)
	}
	c.handshake.Store(true)
	c.log.Debug().Msg("session start sent")
	return nil
}

// Send writes one frame as a binary message. Frames are dropped, never queued,
// when the transport is not open or the session start has not been sent.
func (c *Connection) Send(frame domain.AudioFrame) error {
	if c.ReadyState() != ports.ReadyStateOpen {
		c.drop(frame)
		return nil
	}

	payload := frame.Bytes()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.ReadyState() != ports.ReadyStateOpen || !c.handshake.Load() {
		c.drop(frame)
		return nil
	}
	if err := c.write(websocket.BinaryMessage, payload); err != nil {
		c.setErr(fmt.Errorf("failed to send audio: %w", err))
		// A failed write leaves the stream unusable; end the read loop too.
		_ = c.conn.Close()
		return fmt.Errorf("%w: failed to send audio: %v", domain.ErrConnection, err)
	}
	c.sent.Add(1)
	return nil
}

// write must be called with writeMu held.
func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, payload)
}

func (c *Connection) drop(frame domain.AudioFrame) {
	n := c.dropped.Add(1)
	if n == 1 || n%100 == 0 {
		c.log.Debug().Uint64("seq", frame.Seq).Uint64("dropped", n).Str("state", c.ReadyState().String()).Msg("frame dropped")
	}
}

// Messages delivers inbound payloads in arrival order. It is closed when the
// transport ends.
func (c *Connection) Messages() <-chan []byte {
	return c.messages
}

func (c *Connection) ReadyState() ports.ReadyState {
	return ports.ReadyState(c.state.Load())
}

// Done is closed once the transport has ended.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Err returns the single connection error, or nil after a normal close.
func (c *Connection) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Dropped returns the number of frames discarded because the transport was not open.
func (c *Connection) Dropped() uint64 {
	return c.dropped.Load()
}

// Sent returns the number of frames written to the transport.
func (c *Connection) Sent() uint64 {
	return c.sent.Load()
}

// Close requests a graceful shutdown and waits for the transport to end.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.state.CompareAndSwap(int32(ports.ReadyStateOpen), int32(ports.ReadyStateClosing))
		close(c.closing)

		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace),
		)
		c.writeMu.Unlock()

		select {
		case <-c.done:
		case <-time.After(closeGrace):
			_ = c.conn.Close()
		}
	})
	<-c.done
	return c.Err()
}

func (c *Connection) setErr(err error) {
	if err == nil {
		return
	}
	if isNormalClose(err) || c.ReadyState() == ports.ReadyStateClosing {
		return
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
}

func isNormalClose(err error) bool {
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

func (c *Connection) readLoop() {
	defer func() {
		c.state.Store(int32(ports.ReadyStateClosed))
		close(c.messages)
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(fmt.Errorf("failed to read EVI message: %w", err))
			if e := c.Err(); e != nil {
				c.log.Error().Err(e).Msg("transport error")
			}
			return
		}
		select {
		case c.messages <- payload:
		case <-c.closing:
			return
		}
	}
}

func buildStreamURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.StreamURL)
	if base == "" {
		base = DefaultStreamURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	streamURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid EVI stream URL: %w", err)
	}
	if streamURL.Scheme != "ws" && streamURL.Scheme != "wss" {
		return "", fmt.Errorf("invalid EVI stream URL scheme %q", streamURL.Scheme)
	}

	query := streamURL.Query()
	query.Set("apikey", cfg.APIKey)
	if cfg.ConfigID != "" {
		query.Set("config_id", cfg.ConfigID)
	}
	streamURL.RawQuery = query.Encode()
	return streamURL.String(), nil
}

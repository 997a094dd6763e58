// Package transport manages a single reconnecting WebSocket client
// connection: handshake, state-chain replay, inbound dispatch and
// protocol-aware keepalive handling.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"wsfuzz/internal/adapter/codec"
	"wsfuzz/internal/domain"
	"wsfuzz/internal/infra/tracer"
)

// Options tunes a Conn. Zero values are replaced by DefaultOptions.
type Options struct {
	ConnectTimeout      time.Duration
	ReplayDelay         time.Duration
	DefaultPingInterval time.Duration
	ReadLimit           int64
	HTTPClient          *http.Client
}

// DefaultOptions returns the stock connection settings.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout:      10 * time.Second,
		ReplayDelay:         200 * time.Millisecond,
		DefaultPingInterval: 25 * time.Second,
		ReadLimit:           16 << 20,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.ReplayDelay < 0 {
		o.ReplayDelay = d.ReplayDelay
	}
	if o.DefaultPingInterval <= 0 {
		o.DefaultPingInterval = d.DefaultPingInterval
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = d.ReadLimit
	}
	return o
}

// Callback signatures. Aliases so plain func literals and interfaces
// declared elsewhere match without conversion.
type (
	MessageHandler = func(text string)
	BinaryHandler  = func(data []byte)
	StatusHandler  = func(status domain.ConnStatus)
)

// Conn owns one client connection. All state transitions happen inside its
// methods; callers only connect, send, disconnect and observe.
type Conn struct {
	opts   Options
	logger *slog.Logger
	bus    domain.EventBus

	mu           sync.Mutex
	state        domain.ConnectionState
	url          string
	ws           *websocket.Conn
	gen          uint64
	cancelRead   context.CancelFunc
	headers      http.Header
	subprotocols []string
	chain        []string
	protocol     domain.Protocol
	keepalive    *keepalive

	onMessage MessageHandler
	onBinary  BinaryHandler
	onStatus  StatusHandler
}

// New creates an idle connection. bus may be nil.
func New(opts Options, logger *slog.Logger, bus domain.EventBus) *Conn {
	return &Conn{
		opts:    opts.withDefaults(),
		logger:  logger,
		bus:     bus,
		headers: make(http.Header),
	}
}

// SetHeaders replaces the extra handshake headers.
func (c *Conn) SetHeaders(headers map[string]string) {
	h := BuildHeader(headers)
	c.mu.Lock()
	c.headers = h
	c.mu.Unlock()
}

// SetSubprotocol sets the offered Sec-WebSocket-Protocol values
// (comma-separated). An empty string offers none.
func (c *Conn) SetSubprotocol(s string) {
	var subs []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			subs = append(subs, p)
		}
	}
	c.mu.Lock()
	c.subprotocols = subs
	c.mu.Unlock()
}

// SetStateChain sets the frames replayed after every successful connect.
func (c *Conn) SetStateChain(frames []string) {
	c.mu.Lock()
	c.chain = append([]string(nil), frames...)
	c.mu.Unlock()
}

// SetProtocol pins the sub-protocol instead of detecting it from traffic.
func (c *Conn) SetProtocol(p domain.Protocol) {
	c.mu.Lock()
	c.protocol = p
	c.mu.Unlock()
}

// OnMessage registers the inbound text frame callback.
func (c *Conn) OnMessage(h MessageHandler) {
	c.mu.Lock()
	c.onMessage = h
	c.mu.Unlock()
}

// OnBinary registers the inbound binary frame callback.
func (c *Conn) OnBinary(h BinaryHandler) {
	c.mu.Lock()
	c.onBinary = h
	c.mu.Unlock()
}

// OnStatus registers the status callback.
func (c *Conn) OnStatus(h StatusHandler) {
	c.mu.Lock()
	c.onStatus = h
	c.mu.Unlock()
}

// State returns the current lifecycle state.
func (c *Conn) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// URL returns the last URL passed to Connect.
func (c *Conn) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// Protocol returns the detected (or pinned) sub-protocol.
func (c *Conn) Protocol() domain.Protocol {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protocol
}

// PingInterval returns the server's advertised keepalive interval, or the
// default when none has been seen.
func (c *Conn) PingInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keepalive != nil {
		return c.keepalive.interval
	}
	return c.opts.DefaultPingInterval
}

// Connect dials rawURL, replays the state chain and starts the read loop.
// It fails with ErrConnectInProgress if another Connect has not finished.
func (c *Conn) Connect(ctx context.Context, rawURL string) error {
	ctx, span := tracer.StartSpan(ctx, "transport.connect")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("ws.url", rawURL))

	// A bad URL must not disturb a live connection or its stored URL.
	if err := ValidateURL(rawURL); err != nil {
		c.mu.Lock()
		if c.state != domain.StateConnected && c.state != domain.StateConnecting {
			c.state = domain.StateIdle
		}
		state := c.state
		c.mu.Unlock()
		c.report(state, "Invalid URL: "+rawURL)
		tracer.RecordError(span, err)
		return domain.WrapOp("Conn.Connect", err)
	}

	c.mu.Lock()
	if c.state == domain.StateConnecting {
		c.mu.Unlock()
		return domain.NewDomainError("Conn.Connect", domain.ErrConnectInProgress, rawURL)
	}
	old, oldCancel := c.detachLocked()
	c.gen++
	gen := c.gen
	c.state = domain.StateConnecting
	c.url = rawURL
	header := c.headers.Clone()
	subs := append([]string(nil), c.subprotocols...)
	chain := append([]string(nil), c.chain...)
	c.mu.Unlock()

	closeSocket(old, oldCancel, "reconnecting")
	c.report(domain.StateConnecting, "Connecting to "+rawURL)

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	ws, _, err := websocket.Dial(dialCtx, rawURL, &websocket.DialOptions{
		HTTPHeader:   header,
		Subprotocols: subs,
		HTTPClient:   c.opts.HTTPClient,
	})
	cancel()
	if err != nil {
		sentinel := domain.ErrTransport
		if errors.Is(err, context.DeadlineExceeded) {
			sentinel = domain.ErrTimeout
		}
		c.transition(gen, domain.StateDisconnected, "Connection failed: "+err.Error())
		derr := domain.NewDomainError("Conn.Connect", sentinel, err.Error())
		tracer.RecordError(span, derr)
		return derr
	}
	ws.SetReadLimit(c.opts.ReadLimit)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		ws.Close(websocket.StatusNormalClosure, "Normal closure")
		return domain.NewDomainError("Conn.Connect", domain.ErrConnectAborted, rawURL)
	}
	readCtx, cancelRead := context.WithCancel(context.Background())
	c.ws = ws
	c.cancelRead = cancelRead
	c.state = domain.StateConnected
	c.mu.Unlock()

	c.logger.Info("websocket connected", "url", rawURL, "subprotocol", ws.Subprotocol())
	c.report(domain.StateConnected, "Connected to "+rawURL)
	c.publish(ctx, domain.EventConnConnected, domain.ConnStatus{State: domain.StateConnected, URL: rawURL})

	go c.readLoop(readCtx, ws, gen)

	if len(chain) > 0 {
		c.replay(ctx, ws, chain)
	}
	tracer.SetOK(span)
	return nil
}

// ConnectAsync runs Connect in the background and delivers its result.
func (c *Conn) ConnectAsync(ctx context.Context, rawURL string) <-chan error {
	done := make(chan error, 1)
	go func() { done <- c.Connect(ctx, rawURL) }()
	return done
}

// Reconnect dials the last URL again.
func (c *Conn) Reconnect(ctx context.Context) error {
	u := c.URL()
	if u == "" {
		return domain.NewDomainError("Conn.Reconnect", domain.ErrInvalidURL, "no previous url")
	}
	return c.Connect(ctx, u)
}

// replay sends the state chain in order, pausing ReplayDelay after each
// frame. A failed frame is reported and the rest are still sent.
func (c *Conn) replay(ctx context.Context, ws *websocket.Conn, chain []string) {
	c.report(domain.StateConnected, fmt.Sprintf("Replaying state chain (%d frames)", len(chain)))
	failed := 0
	for i, frame := range chain {
		if err := ws.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
			failed++
			c.logger.Warn("state chain frame failed", "index", i, "error", err)
			c.report(domain.StateConnected, fmt.Sprintf("State chain frame %d failed: %v", i, err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.opts.ReplayDelay):
		}
	}
	c.publish(ctx, domain.EventChainReplayed, map[string]int{"frames": len(chain), "failed": failed})
}

// Send transmits one text frame.
func (c *Conn) Send(ctx context.Context, msg string) error {
	return c.write(ctx, "Conn.Send", websocket.MessageText, []byte(msg))
}

// SendBinary transmits one binary frame.
func (c *Conn) SendBinary(ctx context.Context, data []byte) error {
	return c.write(ctx, "Conn.SendBinary", websocket.MessageBinary, data)
}

func (c *Conn) write(ctx context.Context, op string, typ websocket.MessageType, data []byte) error {
	c.mu.Lock()
	ws, state := c.ws, c.state
	c.mu.Unlock()
	if ws == nil || state != domain.StateConnected {
		return domain.NewDomainError(op, domain.ErrNotConnected, "")
	}
	if err := ws.Write(ctx, typ, data); err != nil {
		return domain.NewDomainError(op, domain.ErrTransport, err.Error())
	}
	return nil
}

// Disconnect closes the connection with a normal closure. A Connect still
// dialing is aborted.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	prev := c.state
	ws, cancelRead := c.detachLocked()
	c.gen++
	if prev == domain.StateConnecting || prev == domain.StateConnected {
		c.state = domain.StateDisconnected
	}
	c.mu.Unlock()

	closeSocket(ws, cancelRead, "Normal closure")
	if prev == domain.StateConnecting || prev == domain.StateConnected {
		c.report(domain.StateDisconnected, "Disconnected")
		c.publish(context.Background(), domain.EventConnDisconnected, domain.ConnStatus{State: domain.StateDisconnected, URL: c.URL(), Message: "Disconnected"})
	}
}

// detachLocked releases the socket, read loop and keepalive watchdog.
// c.mu must be held.
func (c *Conn) detachLocked() (*websocket.Conn, context.CancelFunc) {
	ws, cancel := c.ws, c.cancelRead
	c.ws, c.cancelRead = nil, nil
	if c.keepalive != nil {
		c.keepalive.stop()
		c.keepalive = nil
	}
	return ws, cancel
}

func closeSocket(ws *websocket.Conn, cancelRead context.CancelFunc, reason string) {
	if ws != nil {
		ws.Close(websocket.StatusNormalClosure, reason)
	}
	if cancelRead != nil {
		cancelRead()
	}
}

// transition sets state if gen is still current and reports it.
func (c *Conn) transition(gen uint64, state domain.ConnectionState, msg string) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()
	c.report(state, msg)
}

func (c *Conn) readLoop(ctx context.Context, ws *websocket.Conn, gen uint64) {
	var buf bytes.Buffer
	for {
		typ, r, err := ws.Reader(ctx)
		if err == nil {
			buf.Reset()
			_, err = buf.ReadFrom(r)
		}
		if err != nil {
			c.closed(gen, err)
			return
		}
		if !c.current(gen) {
			return
		}
		switch typ {
		case websocket.MessageText:
			c.handleText(ctx, ws, buf.String())
		case websocket.MessageBinary:
			data := append([]byte(nil), buf.Bytes()...)
			c.mu.Lock()
			h := c.onBinary
			c.mu.Unlock()
			if h != nil {
				h(data)
			}
		}
	}
}

func (c *Conn) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// closed handles the end of a read loop. Loops orphaned by Disconnect or a
// newer Connect are ignored.
func (c *Conn) closed(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	_, cancelRead := c.detachLocked()
	c.state = domain.StateDisconnected
	u := c.url
	c.mu.Unlock()
	if cancelRead != nil {
		cancelRead()
	}

	msg := "Connection error: " + err.Error()
	if code := websocket.CloseStatus(err); code != -1 {
		reason := ""
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			reason = ce.Reason
		}
		msg = fmt.Sprintf("Disconnected (code: %d, reason: %s)", code, reason)
	}
	c.logger.Info("websocket closed", "url", u, "detail", msg)
	c.report(domain.StateDisconnected, msg)
	c.publish(context.Background(), domain.EventConnDisconnected, domain.ConnStatus{State: domain.StateDisconnected, URL: u, Message: msg})
}

func (c *Conn) handleText(ctx context.Context, ws *websocket.Conn, text string) {
	c.mu.Lock()
	if c.protocol == domain.ProtocolRaw {
		if p := codec.Detect([]string{text}); p != domain.ProtocolRaw {
			c.protocol = p
			c.logger.Debug("protocol detected", "protocol", p.String())
		}
	}
	proto := c.protocol
	h := c.onMessage
	c.mu.Unlock()

	if proto == domain.ProtocolSocketIO {
		switch {
		case text == "2":
			c.serverPinged()
			if err := ws.Write(ctx, websocket.MessageText, []byte("3")); err != nil {
				c.logger.Warn("auto pong failed", "error", err)
			}
		case strings.HasPrefix(text, "0{"):
			c.startKeepalive(ParsePingInterval(text, c.opts.DefaultPingInterval))
		}
	}

	c.publish(ctx, domain.EventFrameReceived, map[string]any{"protocol": proto.String(), "length": len(text)})
	if h != nil {
		h(text)
	}
}

// report logs a status change and notifies the status callback and bus.
func (c *Conn) report(state domain.ConnectionState, msg string) {
	c.mu.Lock()
	h, u := c.onStatus, c.url
	c.mu.Unlock()
	status := domain.ConnStatus{State: state, URL: u, Message: msg}
	c.logger.Debug("connection status", "state", state.String(), "message", msg)
	if h != nil {
		h(status)
	}
	c.publish(context.Background(), domain.EventConnStatus, status)
}

func (c *Conn) publish(ctx context.Context, t domain.EventType, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(ctx, domain.NewEvent(t, c.URL(), payload))
}

package transport

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"wsfuzz/internal/domain"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// startServer runs handler for every accepted WebSocket and returns the
// ws:// URL of the server.
func startServer(t *testing.T, handler func(ctx context.Context, r *http.Request, ws *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{"graphql-transport-ws"},
		})
		if err != nil {
			return
		}
		defer ws.CloseNow()
		handler(r.Context(), r, ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echo(ctx context.Context, _ *http.Request, ws *websocket.Conn) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		if err := ws.Write(ctx, typ, data); err != nil {
			return
		}
	}
}

func newTestConn(t *testing.T, opts Options) *Conn {
	t.Helper()
	c := New(opts, noopLogger(), nil)
	t.Cleanup(c.Disconnect)
	return c
}

func collect(c *Conn) <-chan string {
	ch := make(chan string, 64)
	c.OnMessage(func(text string) { ch <- text })
	return ch
}

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
		return ""
	}
}

func TestConnectSendReceive(t *testing.T) {
	url := startServer(t, echo)
	c := newTestConn(t, Options{})
	msgs := collect(c)

	require.NoError(t, c.Connect(context.Background(), url))
	assert.Equal(t, domain.StateConnected, c.State())
	assert.Equal(t, url, c.URL())

	require.NoError(t, c.Send(context.Background(), `{"op":"hello"}`))
	assert.Equal(t, `{"op":"hello"}`, recv(t, msgs))
	assert.Equal(t, domain.ProtocolJSON, c.Protocol())
}

func TestConnectInvalidURL(t *testing.T) {
	for _, u := range []string{"", "   ", "http://example.com", "ftp://x", "ws://", "://bad"} {
		t.Run(u, func(t *testing.T) {
			c := newTestConn(t, Options{})
			err := c.Connect(context.Background(), u)
			assert.ErrorIs(t, err, domain.ErrInvalidURL)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Equal(t, domain.StateIdle, c.State())
		})
	}
}

func TestInvalidConnectKeepsLiveConnection(t *testing.T) {
	url := startServer(t, echo)
	c := newTestConn(t, Options{})
	msgs := collect(c)
	require.NoError(t, c.Connect(context.Background(), url))

	err := c.Connect(context.Background(), "http://typo")
	assert.ErrorIs(t, err, domain.ErrInvalidURL)
	assert.Equal(t, domain.StateConnected, c.State())
	assert.Equal(t, url, c.URL())

	require.NoError(t, c.Send(context.Background(), "still here"))
	assert.Equal(t, "still here", recv(t, msgs))
}

func TestConnectRefused(t *testing.T) {
	c := newTestConn(t, Options{ConnectTimeout: 2 * time.Second})
	var statuses []domain.ConnStatus
	var mu sync.Mutex
	c.OnStatus(func(s domain.ConnStatus) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	})

	err := c.Connect(context.Background(), "ws://127.0.0.1:1/ws")
	require.Error(t, err)
	assert.True(t, domain.IsRetryableError(err))
	assert.Equal(t, domain.StateDisconnected, c.State())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, statuses)
	assert.Contains(t, statuses[len(statuses)-1].Message, "Connection failed")
}

func TestConnectWhileConnecting(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer ws.CloseNow()
		echo(r.Context(), r, ws)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		select {
		case <-release:
		default:
			close(release)
		}
	})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	c := newTestConn(t, Options{})
	done := c.ConnectAsync(context.Background(), url)
	require.Eventually(t, func() bool { return c.State() == domain.StateConnecting }, 2*time.Second, 5*time.Millisecond)

	err := c.Connect(context.Background(), url)
	assert.ErrorIs(t, err, domain.ErrConnectInProgress)

	c.Disconnect()
	assert.Equal(t, domain.StateDisconnected, c.State())
	close(release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, domain.ErrConnectAborted)
	case <-time.After(3 * time.Second):
		t.Fatal("connect did not return")
	}
	assert.Equal(t, domain.StateDisconnected, c.State())
}

func TestStateChainReplayedInOrder(t *testing.T) {
	got := make(chan string, 8)
	url := startServer(t, func(ctx context.Context, _ *http.Request, ws *websocket.Conn) {
		for {
			_, data, err := ws.Read(ctx)
			if err != nil {
				return
			}
			got <- string(data)
		}
	})

	c := newTestConn(t, Options{ReplayDelay: time.Millisecond})
	c.SetStateChain([]string{"auth", "subscribe", "join"})
	require.NoError(t, c.Connect(context.Background(), url))

	assert.Equal(t, "auth", recv(t, got))
	assert.Equal(t, "subscribe", recv(t, got))
	assert.Equal(t, "join", recv(t, got))
}

func TestHandshakeHeaders(t *testing.T) {
	seen := make(chan http.Header, 1)
	hosts := make(chan string, 1)
	url := startServer(t, func(ctx context.Context, r *http.Request, ws *websocket.Conn) {
		seen <- r.Header.Clone()
		hosts <- r.Host
		echo(ctx, r, ws)
	})

	c := newTestConn(t, Options{})
	c.SetHeaders(map[string]string{
		"X-Token":               "abc\r\nInjected: 1",
		"Host":                  "evil.example",
		"Sec-WebSocket-Version": "99",
	})
	c.SetSubprotocol("graphql-transport-ws, graphql-ws")
	require.NoError(t, c.Connect(context.Background(), url))

	h := <-seen
	assert.Equal(t, "abcInjected: 1", h.Get("X-Token"))
	assert.Empty(t, h.Get("Injected"))
	assert.Equal(t, "13", h.Get("Sec-WebSocket-Version"))
	assert.Contains(t, h.Get("Sec-WebSocket-Protocol"), "graphql-transport-ws")
	assert.NotEqual(t, "evil.example", <-hosts)
}

func TestSocketIOAutoPong(t *testing.T) {
	pong := make(chan string, 1)
	url := startServer(t, func(ctx context.Context, _ *http.Request, ws *websocket.Conn) {
		_ = ws.Write(ctx, websocket.MessageText, []byte(`0{"sid":"abc","pingInterval":1500,"pingTimeout":500}`))
		_ = ws.Write(ctx, websocket.MessageText, []byte("2"))
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		pong <- string(data)
		echo(ctx, nil, ws)
	})

	c := newTestConn(t, Options{})
	msgs := collect(c)
	require.NoError(t, c.Connect(context.Background(), url))

	assert.Equal(t, `0{"sid":"abc","pingInterval":1500,"pingTimeout":500}`, recv(t, msgs))
	assert.Equal(t, "2", recv(t, msgs))
	assert.Equal(t, "3", recv(t, pong))
	assert.Equal(t, domain.ProtocolSocketIO, c.Protocol())
	assert.Equal(t, 1500*time.Millisecond, c.PingInterval())
}

func TestRemoteCloseReportsCode(t *testing.T) {
	url := startServer(t, func(_ context.Context, _ *http.Request, ws *websocket.Conn) {
		ws.Close(websocket.StatusPolicyViolation, "go away")
	})

	c := newTestConn(t, Options{})
	statuses := make(chan domain.ConnStatus, 16)
	c.OnStatus(func(s domain.ConnStatus) { statuses <- s })
	require.NoError(t, c.Connect(context.Background(), url))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-statuses:
			if s.State == domain.StateDisconnected {
				assert.Contains(t, s.Message, "code: 1008")
				assert.Contains(t, s.Message, "go away")
				assert.Equal(t, domain.StateDisconnected, c.State())
				return
			}
		case <-deadline:
			t.Fatal("no disconnect status")
		}
	}
}

func TestSendWhenNotConnected(t *testing.T) {
	c := newTestConn(t, Options{})
	err := c.Send(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrNotConnected)
	assert.ErrorIs(t, c.SendBinary(context.Background(), []byte{1}), domain.ErrNotConnected)
}

func TestDisconnectSendsNormalClosure(t *testing.T) {
	codes := make(chan websocket.StatusCode, 1)
	url := startServer(t, func(ctx context.Context, _ *http.Request, ws *websocket.Conn) {
		_, _, err := ws.Read(ctx)
		codes <- websocket.CloseStatus(err)
	})

	c := newTestConn(t, Options{})
	require.NoError(t, c.Connect(context.Background(), url))
	c.Disconnect()

	select {
	case code := <-codes:
		assert.Equal(t, websocket.StatusNormalClosure, code)
	case <-time.After(3 * time.Second):
		t.Fatal("server saw no close")
	}
	assert.Equal(t, domain.StateDisconnected, c.State())
}

func TestReconnectAfterServerClose(t *testing.T) {
	var mu sync.Mutex
	accepted := 0
	url := startServer(t, func(ctx context.Context, r *http.Request, ws *websocket.Conn) {
		mu.Lock()
		accepted++
		n := accepted
		mu.Unlock()
		if n == 1 {
			ws.Close(websocket.StatusGoingAway, "restart")
			return
		}
		echo(ctx, r, ws)
	})

	c := newTestConn(t, Options{})
	msgs := collect(c)
	require.NoError(t, c.Connect(context.Background(), url))
	require.Eventually(t, func() bool { return c.State() == domain.StateDisconnected }, 3*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Reconnect(context.Background()))
	require.NoError(t, c.Send(context.Background(), "again"))
	assert.Equal(t, "again", recv(t, msgs))
}

func TestReconnectWithoutURL(t *testing.T) {
	c := newTestConn(t, Options{})
	assert.ErrorIs(t, c.Reconnect(context.Background()), domain.ErrInvalidURL)
}

func TestBinaryFrames(t *testing.T) {
	url := startServer(t, echo)
	c := newTestConn(t, Options{})
	bin := make(chan []byte, 1)
	c.OnBinary(func(b []byte) { bin <- b })
	require.NoError(t, c.Connect(context.Background(), url))

	require.NoError(t, c.SendBinary(context.Background(), []byte{0xde, 0xad}))
	select {
	case b := <-bin:
		assert.Equal(t, []byte{0xde, 0xad}, b)
	case <-time.After(3 * time.Second):
		t.Fatal("no binary frame")
	}
}

type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, e domain.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *recordingBus) Subscribe(domain.EventType, domain.EventHandler) func() { return func() {} }

func (b *recordingBus) SubscribeAll(domain.EventHandler) func() { return func() {} }

func (b *recordingBus) Close() {}

func (b *recordingBus) has(t domain.EventType) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e.Type == t {
			return true
		}
	}
	return false
}

func TestStatusPublishedOnBus(t *testing.T) {
	url := startServer(t, echo)
	bus := &recordingBus{}
	c := New(Options{ReplayDelay: time.Millisecond}, noopLogger(), bus)
	t.Cleanup(c.Disconnect)
	c.SetStateChain([]string{"hello"})

	require.NoError(t, c.Connect(context.Background(), url))
	assert.True(t, bus.has(domain.EventConnStatus))
	assert.True(t, bus.has(domain.EventConnConnected))
	assert.True(t, bus.has(domain.EventChainReplayed))

	c.Disconnect()
	assert.True(t, bus.has(domain.EventConnDisconnected))
}

func TestConnectWithPooledClient(t *testing.T) {
	url := startServer(t, echo)
	client := NewHTTPClient(2*time.Second, 4)
	assert.Zero(t, client.Timeout)

	for i := 0; i < 3; i++ {
		c := newTestConn(t, Options{HTTPClient: client})
		msgs := collect(c)
		require.NoError(t, c.Connect(context.Background(), url))
		require.NoError(t, c.Send(context.Background(), "ping"))
		assert.Equal(t, "ping", recv(t, msgs))
		c.Disconnect()
	}
}

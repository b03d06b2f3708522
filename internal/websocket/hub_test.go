package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stockdash/internal/dataprocessing"
	"stockdash/internal/services"
	"stockdash/internal/shared/testutil"
	"stockdash/pkg/contracts/domain"
)

// MockViewer is a testify mock of SessionViewer
type MockViewer struct {
	mock.Mock
}

func (m *MockViewer) GetSession(ctx context.Context, id string) (*services.SessionSummary, error) {
	args := m.Called(ctx, id)
	summary, _ := args.Get(0).(*services.SessionSummary)
	return summary, args.Error(1)
}

func (m *MockViewer) View(ctx context.Context, id string, sel domain.Selection) (domain.View, error) {
	args := m.Called(ctx, id, sel)
	return args.Get(0).(domain.View), args.Error(1)
}

// fakeConn is a Connection whose reads block until a message is queued or
// the connection is closed.
type fakeConn struct {
	reads  chan []byte
	writes chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan []byte, 8),
		writes: make(chan []byte, 32),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	c.writes <- data
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.reads:
		return 1, msg, nil
	case <-c.done:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetPongHandler(func(string) error) {}
func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}
}

var testSettings = Settings{PingPeriod: time.Hour, PongWait: time.Hour, MaxMessageBytes: 4096}

// startHub runs a hub until the test ends
func startHub(t *testing.T, viewer SessionViewer) *Hub {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(viewer, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return hub
}

func newTestClient(t *testing.T, hub *Hub, sessionID string) *Client {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	client := NewClient(hub, newFakeConn(), sessionID, "trace-1", testSettings, logger)
	require.True(t, hub.Register(client))
	return client
}

// next waits for the next message queued for client
func next(t *testing.T, client *Client) Message {
	t.Helper()
	select {
	case payload, ok := <-client.send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func assertNoMessage(t *testing.T, client *Client) {
	t.Helper()
	select {
	case payload := <-client.send:
		t.Fatalf("unexpected message: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRegisterSendsConnectionMessage(t *testing.T) {
	hub := startHub(t, &MockViewer{})
	client := newTestClient(t, hub, "s1")

	msg := next(t, client)
	assert.Equal(t, TypeConnection, msg.Type)
	assert.Equal(t, "trace-1", msg.TraceID)
	data := msg.Data.(map[string]interface{})
	assert.Equal(t, "connected", data["status"])
	assert.Equal(t, "s1", data["session_id"])
	assert.Equal(t, client.ID(), data["client_id"])

	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, 1, hub.SessionClientCount("s1"))
}

func TestNotifySessionReachesOnlyThatSession(t *testing.T) {
	hub := startHub(t, &MockViewer{})
	a1 := newTestClient(t, hub, "a")
	a2 := newTestClient(t, hub, "a")
	b := newTestClient(t, hub, "b")
	for _, c := range []*Client{a1, a2, b} {
		next(t, c)
	}

	hub.NotifySession("a", TypeDatasetReloaded, map[string]int{"rows": 4})

	for _, c := range []*Client{a1, a2} {
		msg := next(t, c)
		assert.Equal(t, TypeDatasetReloaded, msg.Type)
		assert.Equal(t, float64(4), msg.Data.(map[string]interface{})["rows"])
	}
	assertNoMessage(t, b)
	assert.Equal(t, 3, hub.ClientCount())
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	hub := startHub(t, &MockViewer{})
	client := newTestClient(t, hub, "s1")
	next(t, client)

	hub.Unregister(client)

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-client.send:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.SessionClientCount("s1"))

	// a second unregister is harmless
	hub.Unregister(client)
}

func TestHubShutdownClosesClients(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(&MockViewer{}, nil, logger)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.Run(ctx) }()

	client := NewClient(hub, newFakeConn(), "s1", "", testSettings, logger)
	require.True(t, hub.Register(client))

	cancel()
	require.NoError(t, <-errCh)

	for range client.send {
	}
	assert.Equal(t, 0, hub.ClientCount())
	assert.False(t, hub.Register(client), "register after shutdown")
	hub.NotifySession("s1", TypeDatasetReloaded, nil)
}

func TestSlowClientIsDisconnected(t *testing.T) {
	hub := startHub(t, &MockViewer{})
	_ = newTestClient(t, hub, "s1")

	// nobody drains client.send, so the buffer eventually overflows
	for i := 0; i < sendBufferSize+1; i++ {
		hub.NotifySession("s1", TypeDatasetReloaded, i)
	}

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClientHandle(t *testing.T) {
	view := domain.View{Selection: domain.Selection{Company: "AAPL", Metric: domain.MetricOpen}}

	tests := []struct {
		name     string
		raw      string
		setup    func(v *MockViewer)
		wantType string
		wantCode string
	}{
		{
			name: "select computes a view",
			raw:  `{"type":"select","company":" AAPL ","metric":"Open"}`,
			setup: func(v *MockViewer) {
				v.On("View", mock.Anything, "s1", domain.Selection{Company: "AAPL", Metric: domain.MetricOpen}).
					Return(view, nil)
			},
			wantType: TypeView,
		},
		{
			name: "select without metric leaves it to the service",
			raw:  `{"type":"select","company":"AAPL"}`,
			setup: func(v *MockViewer) {
				v.On("View", mock.Anything, "s1", domain.Selection{Company: "AAPL"}).Return(view, nil)
			},
			wantType: TypeView,
		},
		{
			name:     "unknown metric is rejected",
			raw:      `{"type":"select","company":"AAPL","metric":"price"}`,
			wantType: TypeError,
			wantCode: CodeValidation,
		},
		{
			name: "empty dataset",
			raw:  `{"type":"select"}`,
			setup: func(v *MockViewer) {
				v.On("View", mock.Anything, "s1", domain.Selection{}).
					Return(domain.View{}, dataprocessing.ErrNoDataAvailable)
			},
			wantType: TypeError,
			wantCode: CodeNoData,
		},
		{
			name: "expired session",
			raw:  `{"type":"select"}`,
			setup: func(v *MockViewer) {
				v.On("View", mock.Anything, "s1", domain.Selection{}).
					Return(domain.View{}, services.ErrSessionNotFound)
			},
			wantType: TypeError,
			wantCode: CodeNotFound,
		},
		{
			name:     "malformed JSON",
			raw:      `{"type":`,
			wantType: TypeError,
			wantCode: CodeInvalidMessage,
		},
		{
			name:     "unknown type",
			raw:      `{"type":"subscribe"}`,
			wantType: TypeError,
			wantCode: CodeInvalidMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viewer := &MockViewer{}
			if tt.setup != nil {
				tt.setup(viewer)
			}
			hub := startHub(t, viewer)
			client := newTestClient(t, hub, "s1")
			next(t, client)

			client.handle(context.Background(), []byte(tt.raw))

			msg := next(t, client)
			assert.Equal(t, tt.wantType, msg.Type)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, msg.Data.(map[string]interface{})["code"])
			}
			viewer.AssertExpectations(t)
		})
	}
}

func TestHeartbeatIsSilent(t *testing.T) {
	viewer := &MockViewer{}
	hub := startHub(t, viewer)
	client := newTestClient(t, hub, "s1")
	next(t, client)

	client.handle(context.Background(), []byte(`{"type":"heartbeat"}`))

	assertNoMessage(t, client)
	viewer.AssertNotCalled(t, "View", mock.Anything, mock.Anything, mock.Anything)
}

func TestPumps(t *testing.T) {
	viewer := &MockViewer{}
	viewer.On("View", mock.Anything, "s1", domain.Selection{Company: "MSFT", Metric: domain.MetricClose}).
		Return(domain.View{Selection: domain.Selection{Company: "MSFT", Metric: domain.MetricClose}}, nil)
	hub := startHub(t, viewer)

	logger, _ := testutil.NewTestLogger(t)
	conn := newFakeConn()
	client := NewClient(hub, conn, "s1", "", testSettings, logger)
	require.True(t, hub.Register(client))
	go client.WritePump()
	go client.ReadPump(context.Background())

	read := func() Message {
		t.Helper()
		select {
		case payload := <-conn.writes:
			var msg Message
			require.NoError(t, json.Unmarshal(payload, &msg))
			return msg
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for write")
			return Message{}
		}
	}

	assert.Equal(t, TypeConnection, read().Type)

	conn.reads <- []byte(`{"type":"select","company":"MSFT","metric":"close"}`)
	msg := read()
	assert.Equal(t, TypeView, msg.Type)
	sel := msg.Data.(map[string]interface{})["selection"].(map[string]interface{})
	assert.Equal(t, "MSFT", sel["company"])

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stockdash/internal/config"
	"stockdash/internal/infrastructure"
	"stockdash/pkg/contracts/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	sendBufferSize = 64
)

// Settings bounds a client's connection
type Settings struct {
	PingPeriod      time.Duration
	PongWait        time.Duration
	MaxMessageBytes int64
}

// SettingsFromConfig maps the websocket section of the application config
func SettingsFromConfig(cfg config.WebSocketConfig) Settings {
	return Settings{
		PingPeriod:      cfg.PingPeriod,
		PongWait:        cfg.PongWait,
		MaxMessageBytes: cfg.MaxMessageBytes,
	}
}

// Client is a middleman between the websocket connection and the hub. Each
// client belongs to exactly one dashboard session.
type Client struct {
	hub  *Hub
	conn Connection

	// Buffered channel of outbound messages
	send chan []byte

	id          string
	sessionID   string
	traceID     string
	remoteAddr  string
	connectedAt time.Time
	settings    Settings

	logger *slog.Logger
}

// NewClient creates a client for sessionID on conn
func NewClient(hub *Hub, conn Connection, sessionID, traceID string, settings Settings, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	id := uuid.New().String()
	logger = logger.With(
		slog.String("component", "websocket.client"),
		slog.String("client_id", id),
	)

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		id:          id,
		sessionID:   sessionID,
		traceID:     traceID,
		remoteAddr:  addrString(conn.RemoteAddr()),
		connectedAt: time.Now(),
		settings:    settings,
		logger:      logger,
	}
}

// ID returns the client identifier
func (c *Client) ID() string {
	return c.id
}

// context decorates ctx with the client's session and trace IDs for logging
func (c *Client) context(ctx context.Context) context.Context {
	ctx = infrastructure.WithSessionID(ctx, c.sessionID)
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// ReadPump reads client messages until the connection fails, then
// unregisters the client. ctx bounds the view computations it triggers.
func (c *Client) ReadPump(ctx context.Context) {
	ctx = c.context(ctx)
	defer func() {
		c.logger.InfoContext(ctx, "WebSocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)))
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.settings.MaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.ErrorContext(ctx, "Unexpected WebSocket close error",
					slog.String("error", err.Error()))
			}
			return
		}
		c.hub.metrics.RecordMessageReceived(ctx, len(message))
		c.handle(ctx, message)
	}
}

// handle answers one client message
func (c *Client) handle(ctx context.Context, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.replyError(ctx, ErrorData{Code: CodeInvalidMessage, Message: "message is not valid JSON"})
		return
	}

	switch msg.Type {
	case TypeHeartbeat:
		c.logger.DebugContext(ctx, "Heartbeat received")

	case TypeSelect:
		sel := domain.Selection{Company: strings.TrimSpace(msg.Company)}
		if msg.Metric != "" {
			metric, ok := domain.ParseMetric(msg.Metric)
			if !ok {
				c.replyError(ctx, ErrorData{
					Code:    CodeValidation,
					Message: "metric must be one of: " + metricChoices(),
				})
				return
			}
			sel.Metric = metric
		}

		view, err := c.hub.viewer.View(ctx, c.sessionID, sel)
		if err != nil {
			c.logger.WarnContext(ctx, "Selection failed", slog.String("error", err.Error()))
			c.replyError(ctx, errorData(err))
			return
		}
		c.reply(ctx, TypeView, view)

	default:
		c.replyError(ctx, ErrorData{Code: CodeInvalidMessage, Message: "unknown message type: " + msg.Type})
	}
}

func (c *Client) reply(ctx context.Context, msgType string, data interface{}) {
	payload, err := encode(msgType, data, c.traceID)
	if err != nil {
		c.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", msgType))
		return
	}
	c.hub.reply(c, payload)
}

func (c *Client) replyError(ctx context.Context, data ErrorData) {
	c.hub.metrics.RecordMessageError(ctx, data.Code)
	c.reply(ctx, TypeError, data)
}

// WritePump pumps messages from the hub to the websocket connection
func (c *Client) WritePump() {
	ctx := c.context(context.Background())
	ticker := time.NewTicker(c.settings.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.ErrorContext(ctx, "Error writing message to WebSocket",
					slog.String("error", err.Error()))
				return
			}
			c.hub.metrics.RecordMessageSent(ctx, len(message))

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(ctx, "Failed to send ping message",
					slog.String("error", err.Error()))
				return
			}
		}
	}
}

func metricChoices() string {
	names := make([]string, 0, len(domain.Metrics()))
	for _, m := range domain.Metrics() {
		names = append(names, m.String())
	}
	return strings.Join(names, ", ")
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

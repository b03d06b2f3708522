package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stockdash/internal/infrastructure"
)

const deliveryQueueSize = 256

// delivery is one payload addressed either to every client of a session or,
// when client is set, to that client alone.
type delivery struct {
	sessionID string
	client    *Client
	payload   []byte
}

// Hub tracks connected clients per dashboard session. Only the Run loop
// writes to or closes a client's send channel.
type Hub struct {
	viewer  SessionViewer
	metrics *OTelMetrics
	logger  *slog.Logger

	register   chan *Client
	unregister chan *Client
	deliveries chan delivery

	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{}
	clients  int

	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a hub. viewer serves select requests from clients.
func NewHub(viewer SessionViewer, metrics *OTelMetrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if metrics == nil {
		metrics, _ = NewOTelMetrics(nil)
	}

	return &Hub{
		viewer:     viewer,
		metrics:    metrics,
		logger:     logger.With(slog.String("component", "websocket.hub")),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliveries: make(chan delivery, deliveryQueueSize),
		sessions:   make(map[string]map[*Client]struct{}),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns nil once ctx is cancelled, after
// closing every client.
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down", slog.Int("clients", h.ClientCount()))
			return nil

		case client := <-h.register:
			h.add(client)

		case client := <-h.unregister:
			h.remove(client, "normal")

		case d := <-h.deliveries:
			if d.client != nil {
				h.sendTo(d.client, d.payload)
				continue
			}
			h.broadcast(d.sessionID, d.payload)
		}
	}
}

// Register adds a client to the hub. It reports false once the hub stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// NotifySession pushes a message to every client of a session. It never
// blocks: when the queue is full the message is dropped.
func (h *Hub) NotifySession(sessionID, messageType string, data interface{}) {
	payload, err := encode(messageType, data, "")
	if err != nil {
		h.logger.Error("Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", messageType))
		return
	}
	h.enqueue(delivery{sessionID: sessionID, payload: payload})
}

// reply queues a payload for a single client
func (h *Hub) reply(client *Client, payload []byte) {
	h.enqueue(delivery{sessionID: client.sessionID, client: client, payload: payload})
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.deliveries <- d:
	case <-h.done:
	default:
		h.metrics.RecordDropped(context.Background(), "hub")
		h.logger.Warn("Hub queue full, dropping message",
			slog.String("session_id", d.sessionID))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients
}

// SessionClientCount returns the number of clients attached to a session
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	set, ok := h.sessions[client.sessionID]
	if !ok {
		set = make(map[*Client]struct{})
		h.sessions[client.sessionID] = set
	}
	set[client] = struct{}{}
	h.clients++
	count := h.clients
	h.mu.Unlock()

	ctx := client.context(context.Background())
	h.metrics.RecordConnection(ctx)
	h.logger.InfoContext(ctx, "Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	payload, err := encode(TypeConnection, map[string]interface{}{
		"status":     "connected",
		"client_id":  client.id,
		"session_id": client.sessionID,
	}, client.traceID)
	if err == nil {
		h.sendTo(client, payload)
	}
}

// remove detaches client and closes its send channel, reporting whether the
// client was still registered.
func (h *Hub) remove(client *Client, reason string) bool {
	h.mu.Lock()
	set, ok := h.sessions[client.sessionID]
	if ok {
		_, ok = set[client]
	}
	if !ok {
		h.mu.Unlock()
		return false
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.sessions, client.sessionID)
	}
	h.clients--
	count := h.clients
	close(client.send)
	h.mu.Unlock()

	ctx := client.context(context.Background())
	duration := time.Since(client.connectedAt)
	h.metrics.RecordDisconnection(ctx, duration, reason)
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", duration))
	return true
}

func (h *Hub) sendTo(client *Client, payload []byte) {
	if !h.registered(client) {
		return
	}
	select {
	case client.send <- payload:
	default:
		h.metrics.RecordDropped(client.context(context.Background()), "client")
		h.logger.Warn("Client send buffer full, disconnecting",
			slog.String("client_id", client.id))
		h.remove(client, "slow_consumer")
	}
}

func (h *Hub) broadcast(sessionID string, payload []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions[sessionID]))
	for client := range h.sessions[sessionID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	h.logger.Debug("Broadcasting message to session",
		slog.String("session_id", sessionID),
		slog.Int("client_count", len(clients)),
		slog.Int("message_size", len(payload)))

	for _, client := range clients {
		h.sendTo(client, payload)
	}
}

func (h *Hub) registered(client *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[client.sessionID][client]
	return ok
}

func (h *Hub) shutdown() {
	h.doneOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.sessions {
		for client := range set {
			close(client.send)
		}
	}
	h.sessions = make(map[string]map[*Client]struct{})
	h.clients = 0
}

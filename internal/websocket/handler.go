package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"stockdash/internal/config"
	apierrors "stockdash/internal/errors"
	"stockdash/internal/infrastructure"
)

// Handler upgrades /ws requests and attaches the connection to a session
type Handler struct {
	hub            *Hub
	upgrader       websocket.Upgrader
	settings       Settings
	allowedOrigins []string
	errorHandler   *apierrors.ErrorHandler
	logger         *slog.Logger

	// ctx outlives individual requests and bounds the client pumps
	ctx context.Context
}

// NewHandler creates the upgrade handler. ctx is cancelled on shutdown.
func NewHandler(ctx context.Context, hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}

	h := &Handler{
		hub:            hub,
		settings:       SettingsFromConfig(cfg),
		allowedOrigins: allowedOrigins,
		errorHandler:   errorHandler,
		logger:         logger.With(slog.String("component", "websocket.handler")),
		ctx:            ctx,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
		Error:           h.upgradeError,
	}
	return h
}

// ServeHTTP handles GET /ws?session=<id>
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("session", "session query parameter is required"))
		return
	}
	if _, err := h.hub.viewer.GetSession(ctx, sessionID); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already answered through upgradeError
		return
	}

	traceID := middleware.GetReqID(ctx)
	if traceID == "" {
		traceID = infrastructure.GetTraceID(ctx)
	}

	client := NewClient(h.hub, conn, sessionID, traceID, h.settings, h.logger)
	if !h.hub.Register(client) {
		h.logger.WarnContext(ctx, "Hub stopped, rejecting WebSocket client")
		conn.Close()
		return
	}

	h.logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("session_id", sessionID),
		slog.String("client_id", client.ID()))

	go client.WritePump()
	go client.ReadPump(h.ctx)
}

// checkOrigin allows same-origin requests, requests without an Origin
// header and the configured origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	h.logger.WarnContext(r.Context(), "WebSocket origin check - origin not allowed",
		slog.String("origin", origin),
		slog.Any("allowed_origins", h.allowedOrigins))
	return false
}

func (h *Handler) upgradeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	h.logger.WarnContext(r.Context(), "WebSocket upgrade error",
		slog.Int("status", status),
		slog.String("reason", reason.Error()),
		slog.String("origin", r.Header.Get("Origin")))

	problem := apierrors.NewProblemDetails(status, apierrors.TypeWebSocketUpgrade,
		"WebSocket Upgrade Failed", reason.Error(), r.URL.Path)
	problem.WithExtension("trace_id", middleware.GetReqID(r.Context()))
	apierrors.WriteProblem(w, problem)
}

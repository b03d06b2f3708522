package websocket

import (
	"context"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"stockdash/internal/services"
	"stockdash/pkg/contracts/domain"
)

// Connection is the subset of *websocket.Conn the client pumps use. Tests
// substitute an in-memory implementation.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() net.Addr
}

var _ Connection = (*websocket.Conn)(nil)

// SessionViewer is the part of the dashboard service the channel needs:
// checking that a session exists and computing views for it.
type SessionViewer interface {
	GetSession(ctx context.Context, id string) (*services.SessionSummary, error)
	View(ctx context.Context, id string, sel domain.Selection) (domain.View, error)
}

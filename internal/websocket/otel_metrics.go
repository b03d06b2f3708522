package websocket

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"stockdash/internal/infrastructure"
)

// OTelMetrics provides OpenTelemetry metrics for WebSocket operations
type OTelMetrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram

	messagesTotal   metric.Int64Counter
	messageBytes    metric.Int64Counter
	messageErrors   metric.Int64Counter
	droppedMessages metric.Int64Counter
}

// NewOTelMetrics registers the WebSocket instruments on meter. A nil meter
// yields no-op instruments.
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(infrastructure.MeterName)
	}

	var (
		m    OTelMetrics
		errs []error
		err  error
	)

	m.connectionsTotal, err = meter.Int64Counter("websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections"))
	errs = append(errs, err)

	m.connectionsActive, err = meter.Int64UpDownCounter("websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"))
	errs = append(errs, err)

	m.connectionDuration, err = meter.Float64Histogram("websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"),
		metric.WithUnit("s"))
	errs = append(errs, err)

	m.messagesTotal, err = meter.Int64Counter("websocket_messages_total",
		metric.WithDescription("Total number of WebSocket messages"))
	errs = append(errs, err)

	m.messageBytes, err = meter.Int64Counter("websocket_message_bytes_total",
		metric.WithDescription("Total bytes of WebSocket messages"),
		metric.WithUnit("By"))
	errs = append(errs, err)

	m.messageErrors, err = meter.Int64Counter("websocket_message_errors_total",
		metric.WithDescription("Client messages that could not be handled"))
	errs = append(errs, err)

	m.droppedMessages, err = meter.Int64Counter("websocket_dropped_messages_total",
		metric.WithDescription("Messages dropped because a queue was full"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordConnection records a new WebSocket connection
func (m *OTelMetrics) RecordConnection(ctx context.Context) {
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
}

// RecordDisconnection records a WebSocket disconnection
func (m *OTelMetrics) RecordDisconnection(ctx context.Context, duration time.Duration, reason string) {
	attrs := metric.WithAttributes(attribute.String("disconnect_reason", reason))
	m.connectionsActive.Add(ctx, -1, attrs)
	m.connectionDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordMessageSent records a sent WebSocket message
func (m *OTelMetrics) RecordMessageSent(ctx context.Context, size int) {
	m.recordMessage(ctx, "outbound", size)
}

// RecordMessageReceived records a received WebSocket message
func (m *OTelMetrics) RecordMessageReceived(ctx context.Context, size int) {
	m.recordMessage(ctx, "inbound", size)
}

func (m *OTelMetrics) recordMessage(ctx context.Context, direction string, size int) {
	attrs := metric.WithAttributes(attribute.String("direction", direction))
	m.messagesTotal.Add(ctx, 1, attrs)
	m.messageBytes.Add(ctx, int64(size), attrs)
}

// RecordMessageError records a client message the server rejected
func (m *OTelMetrics) RecordMessageError(ctx context.Context, code string) {
	m.messageErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// RecordDropped records a message dropped on a full queue
func (m *OTelMetrics) RecordDropped(ctx context.Context, queue string) {
	m.droppedMessages.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", queue)))
}

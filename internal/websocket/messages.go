package websocket

import (
	"encoding/json"
	"errors"
	"time"

	"stockdash/internal/dataprocessing"
	apierrors "stockdash/internal/errors"
)

// Server to client message types
const (
	TypeConnection      = "connection"
	TypeView            = "view"
	TypeDatasetReloaded = "dataset_reloaded"
	TypeError           = "error"
)

// Client to server message types
const (
	TypeSelect    = "select"
	TypeHeartbeat = "heartbeat"
)

// Error codes carried by error messages
const (
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeValidation     = "VALIDATION_ERROR"
	CodeNoData         = "NO_DATA"
	CodeNotFound       = "NOT_FOUND"
	CodeInternal       = "INTERNAL_ERROR"
)

// Message is the envelope for every server message
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// ClientMessage is a message received from the browser
type ClientMessage struct {
	Type    string `json:"type"`
	Company string `json:"company,omitempty"`
	Metric  string `json:"metric,omitempty"`
}

// ErrorData is the payload of an error message
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encode(msgType string, data interface{}, traceID string) ([]byte, error) {
	return json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		TraceID:   traceID,
	})
}

// errorData maps service errors onto client-facing codes
func errorData(err error) ErrorData {
	if errors.Is(err, dataprocessing.ErrNoDataAvailable) {
		return ErrorData{Code: CodeNoData, Message: apierrors.NoDataMessage}
	}
	var appErr *apierrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case apierrors.ErrTypeNotFound:
			return ErrorData{Code: CodeNotFound, Message: appErr.Message}
		case apierrors.ErrTypeValidation:
			return ErrorData{Code: CodeValidation, Message: appErr.Message}
		}
	}
	return ErrorData{Code: CodeInternal, Message: "An unexpected error occurred"}
}

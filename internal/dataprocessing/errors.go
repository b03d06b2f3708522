package dataprocessing

import (
	"encoding/json"
	"errors"
	"fmt"

	"stockdash/pkg/contracts/domain"
)

// ErrNoDataAvailable is returned when a load produced no usable rows.
var ErrNoDataAvailable = errors.New("no data available")

// SourceParseError reports a source that could not be read as a table.
type SourceParseError struct {
	Source  string
	Channel domain.Channel
	Line    int
	Err     error
}

func (e *SourceParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse source %s (line %d): %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("parse source %s: %v", e.Source, e.Err)
}

func (e *SourceParseError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error as a warning entry for API responses.
func (e *SourceParseError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Source  string         `json:"source"`
		Channel domain.Channel `json:"channel"`
		Line    int            `json:"line,omitempty"`
		Message string         `json:"message"`
	}{
		Source:  e.Source,
		Channel: e.Channel,
		Line:    e.Line,
		Message: e.Err.Error(),
	})
}

// IsSourceParseError reports whether err wraps a *SourceParseError.
func IsSourceParseError(err error) bool {
	var spe *SourceParseError
	return errors.As(err, &spe)
}

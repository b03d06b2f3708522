package http

import (
	"context"
	"io"

	"stockdash/internal/dataprocessing"
	"stockdash/internal/services"
	"stockdash/pkg/contracts/domain"
)

// DashboardService defines the session operations the HTTP API exposes
type DashboardService interface {
	CreateSession(ctx context.Context) (*services.SessionSummary, error)
	GetSession(ctx context.Context, id string) (*services.SessionSummary, error)
	DeleteSession(ctx context.Context, id string) error
	Upload(ctx context.Context, id string, uploads []services.Upload) (*services.SessionSummary, error)
	Reload(ctx context.Context, id string) (*services.SessionSummary, error)

	Companies(ctx context.Context, id string) ([]string, error)
	View(ctx context.Context, id string, sel domain.Selection) (domain.View, error)
	Summaries(ctx context.Context, id string, lastN int) ([]dataprocessing.CompanySummary, error)

	// Exports write the whole document to w or fail before writing
	ExportCombinedCSV(ctx context.Context, id string, w io.Writer) error
	ExportXLSX(ctx context.Context, id string, w io.Writer) error
	ExportView(ctx context.Context, id, company string, w io.Writer) (domain.View, error)
	ExportStatsCSV(ctx context.Context, id, company string, w io.Writer) (domain.View, error)
}

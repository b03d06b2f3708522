package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stockdash/internal/config"
	"stockdash/internal/dataprocessing"
	"stockdash/internal/infrastructure"
	"stockdash/internal/services"
)

// workspace is a one-shot dashboard session built from the local data
// directory and any --file uploads.
type workspace struct {
	cfg      *config.Config
	service  *services.DashboardService
	session  *services.SessionSummary
	renderer *Renderer
	logger   *slog.Logger
}

func openWorkspace(cmd *cobra.Command) (*workspace, error) {
	opts := optionsFrom(cmd)
	format, err := ParseFormat(opts.output)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger := infrastructure.NewLogger(cmd.ErrOrStderr(), level)

	svc := services.NewDashboardService(services.DashboardOptionsFromConfig(cfg), nil, nil, logger)

	ctx := cmd.Context()
	session, err := svc.CreateSession(ctx)
	if err != nil {
		return nil, strictHint(cfg, fmt.Errorf("failed to load %s: %w", cfg.GetDataDir(), err))
	}

	if len(opts.files) > 0 {
		uploads, err := readUploads(opts.files)
		if err != nil {
			return nil, err
		}
		session, err = svc.Upload(ctx, session.ID, uploads)
		if err != nil {
			return nil, strictHint(cfg, fmt.Errorf("failed to load files: %w", err))
		}
	}

	for _, w := range session.Warnings {
		logger.Warn("source skipped", slog.String("source", w.Source), slog.String("error", w.Error()))
	}

	return &workspace{
		cfg:      cfg,
		service:  svc,
		session:  session,
		renderer: NewRenderer(cmd.OutOrStdout(), format),
		logger:   logger,
	}, nil
}

// strictHint points the user at --strict when a single unreadable source
// failed the whole load.
func strictHint(cfg *config.Config, err error) error {
	if cfg.Data.StrictSources && dataprocessing.IsSourceParseError(err) {
		return fmt.Errorf("%w (rerun without --strict to skip it)", err)
	}
	return err
}

func readUploads(paths []string) ([]services.Upload, error) {
	uploads := make([]services.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		uploads = append(uploads, services.Upload{
			Name:        filepath.Base(p),
			ContentType: "text/csv",
			Data:        data,
		})
	}
	return uploads, nil
}

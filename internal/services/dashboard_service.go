package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"stockdash/internal/config"
	"stockdash/internal/dataprocessing"
	"stockdash/internal/exporter"
	"stockdash/internal/files"
	"stockdash/internal/infrastructure"
	"stockdash/pkg/contracts/domain"
)

// Message types pushed to the clients of a session.
const (
	MessageDatasetReloaded = "dataset_reloaded"
)

// SessionNotifier delivers a message to every live client of one session.
type SessionNotifier interface {
	NotifySession(sessionID, messageType string, data interface{})
}

// DashboardOptions bounds and locates the service's inputs.
type DashboardOptions struct {
	DataDir        string
	Pattern        string
	StrictSources  bool
	MaxUploadBytes int64
	MaxUploadFiles int
	SessionTTL     time.Duration
	SweepInterval  time.Duration
	MaxSessions    int
}

// DashboardOptionsFromConfig maps the application config.
func DashboardOptionsFromConfig(cfg *config.Config) DashboardOptions {
	return DashboardOptions{
		DataDir:        cfg.GetDataDir(),
		Pattern:        cfg.Data.Pattern,
		StrictSources:  cfg.Data.StrictSources,
		MaxUploadBytes: cfg.Data.MaxUploadBytes,
		MaxUploadFiles: cfg.Data.MaxUploadFiles,
		SessionTTL:     cfg.Session.TTL,
		SweepInterval:  cfg.Session.SweepInterval,
		MaxSessions:    cfg.Session.MaxSessions,
	}
}

// DashboardService owns the dashboard sessions and runs the pipeline for
// each interaction.
type DashboardService struct {
	opts      DashboardOptions
	discovery *files.Discovery
	pipeline  *dataprocessing.Pipeline
	metrics   *infrastructure.BusinessMetrics
	logger    *slog.Logger

	// scans collapses concurrent filesystem reads into one
	scans singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*Session
	notifier SessionNotifier

	now func() time.Time
}

// NewDashboardService creates the service. metrics may be nil.
func NewDashboardService(opts DashboardOptions, discovery *files.Discovery, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	if discovery == nil {
		discovery = files.NewDiscovery("")
	}
	if metrics == nil {
		metrics, _ = infrastructure.CreateBusinessMetrics(nil)
	}
	logger = logger.With(slog.String("component", "dashboard_service"))

	logger.Info("DashboardService initialized",
		slog.String("data_dir", opts.DataDir),
		slog.String("pattern", opts.Pattern),
		slog.Bool("strict_sources", opts.StrictSources),
		slog.Duration("session_ttl", opts.SessionTTL))

	return &DashboardService{
		opts:      opts,
		discovery: discovery,
		pipeline:  dataprocessing.NewPipeline(logger, dataprocessing.Options{StrictSources: opts.StrictSources}),
		metrics:   metrics,
		logger:    logger,
		sessions:  make(map[string]*Session),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier installs the receiver of dataset_reloaded messages.
func (s *DashboardService) SetNotifier(n SessionNotifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// SessionCount returns the number of live sessions.
func (s *DashboardService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CreateSession starts a session over the current filesystem channel. An
// empty channel still yields a session so the user can upload data.
func (s *DashboardService) CreateSession(ctx context.Context) (*SessionSummary, error) {
	if err := s.reserveSlot(); err != nil {
		return nil, err
	}

	snapshot, err := s.readFilesystem(ctx)
	if err != nil {
		return nil, err
	}

	sess := newSession(uuid.NewString(), s.now(), snapshot)
	ctx = infrastructure.WithSessionID(ctx, sess.ID)

	sess.mu.Lock()
	err = s.rebuildLocked(ctx, sess, "create")
	sess.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.opts.MaxSessions > 0 && len(s.sessions) >= s.opts.MaxSessions {
		s.mu.Unlock()
		return nil, ErrTooManySessions
	}
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.metrics.SessionsCreated.Add(ctx, 1)
	s.metrics.ActiveSessions.Add(ctx, 1)
	s.logger.InfoContext(ctx, "session created",
		slog.Int("files", len(snapshot)),
		slog.Int("rows", sess.Dataset().Len()))

	return sess.Summary(), nil
}

// reserveSlot sweeps expired sessions when the registry is full.
func (s *DashboardService) reserveSlot() error {
	if s.opts.MaxSessions <= 0 || s.SessionCount() < s.opts.MaxSessions {
		return nil
	}
	s.Sweep(context.Background())
	if s.SessionCount() >= s.opts.MaxSessions {
		return ErrTooManySessions
	}
	return nil
}

// GetSession returns the session summary.
func (s *DashboardService) GetSession(ctx context.Context, id string) (*SessionSummary, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return sess.Summary(), nil
}

// DeleteSession ends a session.
func (s *DashboardService) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	ctx = infrastructure.WithSessionID(ctx, id)
	s.metrics.ActiveSessions.Add(ctx, -1)
	s.logger.InfoContext(ctx, "session deleted")
	return nil
}

// Upload appends files to the session's upload channel and rebuilds its
// dataset. In strict mode a file that fails to parse rejects the whole
// upload and the session keeps its previous state.
func (s *DashboardService) Upload(ctx context.Context, id string, uploads []Upload) (*SessionSummary, error) {
	if err := s.checkUploads(uploads); err != nil {
		return nil, err
	}
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	ctx = infrastructure.WithSessionID(ctx, id)

	sess.mu.Lock()
	previous := sess.uploads
	sess.uploads = append(append([]Upload(nil), sess.uploads...), uploads...)
	if err := s.rebuildLocked(ctx, sess, "upload"); err != nil {
		sess.uploads = previous
		sess.mu.Unlock()
		return nil, err
	}
	sess.mu.Unlock()

	s.metrics.UploadsTotal.Add(ctx, int64(len(uploads)))
	s.logger.InfoContext(ctx, "uploads accepted", slog.Int("files", len(uploads)))

	summary := sess.Summary()
	s.notify(id, summary)
	return summary, nil
}

// checkUploads enforces the count, size and type limits.
func (s *DashboardService) checkUploads(uploads []Upload) error {
	if len(uploads) == 0 {
		return ErrEmptyUpload
	}
	if s.opts.MaxUploadFiles > 0 && len(uploads) > s.opts.MaxUploadFiles {
		return fmt.Errorf("%d files, limit %d: %w", len(uploads), s.opts.MaxUploadFiles, ErrTooManyUploads)
	}
	for _, u := range uploads {
		if s.opts.MaxUploadBytes > 0 && int64(len(u.Data)) > s.opts.MaxUploadBytes {
			return fmt.Errorf("%s: %w", u.Name, ErrUploadTooLarge)
		}
		if !IsCSVUpload(u.Name, u.ContentType) {
			return fmt.Errorf("%s (%s): %w", u.Name, u.ContentType, ErrUnsupportedUpload)
		}
	}
	return nil
}

// IsCSVUpload accepts a .csv file name or a media type browsers send for
// CSV files. Windows browsers label .csv as application/vnd.ms-excel.
func IsCSVUpload(name, contentType string) bool {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch strings.ToLower(mediaType) {
	case "text/csv", "application/csv", "application/vnd.ms-excel", "text/plain":
		return true
	}
	return false
}

// Reload re-reads the filesystem channel and rebuilds the session's dataset
// with its uploads.
func (s *DashboardService) Reload(ctx context.Context, id string) (*SessionSummary, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	ctx = infrastructure.WithSessionID(ctx, id)

	snapshot, err := s.readFilesystem(ctx)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	previous := sess.snapshot
	sess.snapshot = snapshot
	if err := s.rebuildLocked(ctx, sess, "reload"); err != nil {
		sess.snapshot = previous
		sess.mu.Unlock()
		return nil, err
	}
	sess.mu.Unlock()

	summary := sess.Summary()
	s.notify(id, summary)
	return summary, nil
}

// Companies returns the sorted company identifiers of the session.
func (s *DashboardService) Companies(ctx context.Context, id string) ([]string, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	ds := sess.Dataset()
	if ds.Empty() {
		return nil, fmt.Errorf("companies: %w", dataprocessing.ErrNoDataAvailable)
	}
	return dataprocessing.Companies(ds), nil
}

// View resolves sel against the session's dataset and remembers the
// resolved selection.
func (s *DashboardService) View(ctx context.Context, id string, sel domain.Selection) (domain.View, error) {
	sess, err := s.session(id)
	if err != nil {
		return domain.View{}, err
	}
	ctx = infrastructure.WithSessionID(ctx, id)

	view, err := s.pipeline.Evaluate(sess.Dataset(), sel)
	if err != nil {
		return domain.View{}, err
	}

	sess.mu.Lock()
	sess.selection = view.Selection
	sess.mu.Unlock()

	s.metrics.ViewsComputed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("metric", view.Selection.Metric.String()),
		attribute.Bool("fallback", view.Selection.Fallback),
	))
	return view, nil
}

// Summaries returns one summary line per company.
func (s *DashboardService) Summaries(ctx context.Context, id string, lastN int) ([]dataprocessing.CompanySummary, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	ds := sess.Dataset()
	if ds.Empty() {
		return nil, fmt.Errorf("summaries: %w", dataprocessing.ErrNoDataAvailable)
	}
	return dataprocessing.Summarize(ds, lastN), nil
}

// ExportCombinedCSV writes the session's dataset as combined_stocks.csv.
func (s *DashboardService) ExportCombinedCSV(ctx context.Context, id string, w io.Writer) error {
	ds, err := s.exportable(id)
	if err != nil {
		return err
	}
	if err := exporter.WriteCombinedCSV(w, ds); err != nil {
		return err
	}
	s.recordExport(ctx, id, "csv", ds.Len())
	return nil
}

// ExportXLSX writes the dataset workbook with the statistics of the
// session's current selection.
func (s *DashboardService) ExportXLSX(ctx context.Context, id string, w io.Writer) error {
	sess, err := s.session(id)
	if err != nil {
		return err
	}
	ds := sess.Dataset()
	if ds.Empty() {
		return fmt.Errorf("export: %w", dataprocessing.ErrNoDataAvailable)
	}

	view, err := s.pipeline.Evaluate(ds, sess.Selection())
	if err != nil {
		return err
	}
	if err := exporter.WriteXLSX(w, ds, &view); err != nil {
		return err
	}
	s.recordExport(ctx, id, "xlsx", ds.Len())
	return nil
}

// ExportView resolves company and writes its filtered view. The returned
// view carries the resolved selection used for the download name.
func (s *DashboardService) ExportView(ctx context.Context, id, company string, w io.Writer) (domain.View, error) {
	ds, err := s.exportable(id)
	if err != nil {
		return domain.View{}, err
	}
	view, err := s.pipeline.Evaluate(ds, domain.Selection{Company: company})
	if err != nil {
		return domain.View{}, err
	}
	if err := exporter.WriteViewCSV(w, ds.Columns, view); err != nil {
		return domain.View{}, err
	}
	s.recordExport(ctx, id, "view_csv", len(view.Records))
	return view, nil
}

// ExportStatsCSV resolves company and writes the statistics of its view.
func (s *DashboardService) ExportStatsCSV(ctx context.Context, id, company string, w io.Writer) (domain.View, error) {
	ds, err := s.exportable(id)
	if err != nil {
		return domain.View{}, err
	}
	view, err := s.pipeline.Evaluate(ds, domain.Selection{Company: company})
	if err != nil {
		return domain.View{}, err
	}
	if err := exporter.WriteStatsCSV(w, view.Stats); err != nil {
		return domain.View{}, err
	}
	s.recordExport(ctx, id, "stats_csv", len(view.Records))
	return view, nil
}

func (s *DashboardService) exportable(id string) (*domain.Dataset, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	ds := sess.Dataset()
	if ds.Empty() {
		return nil, fmt.Errorf("export: %w", dataprocessing.ErrNoDataAvailable)
	}
	return ds, nil
}

func (s *DashboardService) recordExport(ctx context.Context, id, format string, rows int) {
	ctx = infrastructure.WithSessionID(ctx, id)
	s.metrics.ExportsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
	s.logger.InfoContext(ctx, "dataset exported",
		slog.String("format", format),
		slog.Int("rows", rows))
}

// Run sweeps idle sessions until ctx is cancelled.
func (s *DashboardService) Run(ctx context.Context) error {
	interval := s.opts.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep removes sessions idle for longer than the session TTL and returns
// how many were removed.
func (s *DashboardService) Sweep(ctx context.Context) int {
	if s.opts.SessionTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.opts.SessionTTL)

	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	if len(expired) > 0 {
		s.metrics.ActiveSessions.Add(ctx, -int64(len(expired)))
		s.logger.InfoContext(ctx, "expired idle sessions",
			slog.Int("count", len(expired)),
			slog.Duration("ttl", s.opts.SessionTTL))
	}
	return len(expired)
}

// session looks up id and marks it as used.
func (s *DashboardService) session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

// readFilesystem returns a private copy of the filesystem channel. Callers
// arriving while a scan is in flight share its result.
func (s *DashboardService) readFilesystem(ctx context.Context) (files.Snapshot, error) {
	// One caller's cancellation must not fail the others sharing the scan.
	scanCtx := context.WithoutCancel(ctx)
	v, err, shared := s.scans.Do("filesystem", func() (interface{}, error) {
		return s.discovery.ReadSnapshot(scanCtx, s.opts.DataDir, s.opts.Pattern)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}
	if shared {
		s.logger.DebugContext(ctx, "shared filesystem scan")
	}
	return v.(files.Snapshot).Clone(), nil
}

// rebuildLocked rebuilds sess.dataset from its sources. A result without
// rows is kept: the session stays usable and reports NoDataAvailable per
// request. Caller holds sess.mu.
func (s *DashboardService) rebuildLocked(ctx context.Context, sess *Session, trigger string) error {
	start := time.Now()
	ds, failures, err := s.pipeline.Build(ctx, sess.sources())
	if err != nil && !errors.Is(err, dataprocessing.ErrNoDataAvailable) {
		infrastructure.RecordDatasetBuild(ctx, s.metrics, trigger, 0, 0, len(failures), time.Since(start))
		return err
	}
	if ds == nil {
		ds = &domain.Dataset{BuiltAt: s.now()}
	}

	infrastructure.RecordDatasetBuild(ctx, s.metrics, trigger, ds.Len(), ds.DroppedRows, len(failures), time.Since(start))
	sess.dataset = ds
	sess.warnings = failures
	return nil
}

func (s *DashboardService) notify(id string, summary *SessionSummary) {
	s.mu.RLock()
	n := s.notifier
	s.mu.RUnlock()
	if n != nil {
		n.NotifySession(id, MessageDatasetReloaded, summary)
	}
}

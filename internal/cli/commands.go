package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"stockdash/internal/app"
	"stockdash/internal/dataprocessing"
	apierrors "stockdash/internal/errors"
	"stockdash/internal/exporter"
	"stockdash/internal/files"
	"stockdash/pkg/contracts/domain"
)

// newServeCommand starts the HTTP and WebSocket server.
func newServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP and WebSocket server",
		Example: `  # Serve ./data on the configured port
  stockdash serve

  # Serve another directory on port 9090
  stockdash serve --data-dir /srv/prices --port 9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, optionsFrom(cmd))
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			application, err := app.NewApplication(cfg)
			if err != nil {
				return err
			}
			return application.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from config: 8080)")
	return cmd
}

// newCompaniesCommand lists the distinct companies of the merged dataset.
func newCompaniesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "companies",
		Short: "List the companies found in the data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}

			companies, err := ws.service.Companies(cmd.Context(), ws.session.ID)
			if err != nil {
				return explain(err)
			}

			if ws.renderer.JSONMode() {
				return ws.renderer.JSON(map[string]interface{}{
					"companies": companies,
					"count":     len(companies),
				})
			}

			rows := make([][]string, 0, len(companies))
			for _, c := range companies {
				rows = append(rows, []string{c})
			}
			ws.renderer.Table([]string{"company"}, rows, fmt.Sprintf("(%d companies)", len(companies)))
			return nil
		},
	}
}

type selectionFlags struct {
	company string
	metric  string
}

func (f *selectionFlags) register(cmd *cobra.Command, withMetric bool) {
	cmd.Flags().StringVarP(&f.company, "company", "c", "", "Company to show (default: first company)")
	if withMetric {
		cmd.Flags().StringVarP(&f.metric, "metric", "m", string(domain.DefaultMetric),
			"Metric to chart ("+strings.Join(metricNames(), "|")+")")
	}
}

func (f *selectionFlags) selection() (domain.Selection, error) {
	sel := domain.Selection{Company: strings.TrimSpace(f.company)}
	if f.metric == "" {
		return sel, nil
	}
	m, ok := domain.ParseMetric(f.metric)
	if !ok {
		return sel, fmt.Errorf("invalid metric %q (want one of %s)", f.metric, strings.Join(metricNames(), ", "))
	}
	sel.Metric = m
	return sel, nil
}

// newViewCommand prints the filtered, date-sorted rows of one company.
func newViewCommand() *cobra.Command {
	var flags selectionFlags

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show one company's rows sorted by date",
		Long: `Show the rows of one company sorted by date. An unknown or missing company
falls back to the first company in sorted order.

In json mode the selection, the rows and the chart series of the chosen
metric are printed.`,
		Example: `  stockdash view --company AAPL
  stockdash view -c MSFT -m volume -o json
  stockdash view --data-dir ./prices -f extra/GOOG_data.csv -c GOOG`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := flags.selection()
			if err != nil {
				return err
			}
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}

			view, err := ws.service.View(cmd.Context(), ws.session.ID, sel)
			if err != nil {
				return explain(err)
			}

			columns := ws.session.Columns
			rows := recordRows(columns, view.Records)

			if ws.renderer.JSONMode() {
				return ws.renderer.JSON(map[string]interface{}{
					"selection": view.Selection,
					"columns":   columns,
					"rows":      rows,
					"chart":     view.Chart,
				})
			}

			ws.renderer.Table(columns, rows, viewCaption(view, len(rows)))
			return nil
		},
	}

	flags.register(cmd, true)
	return cmd
}

// newStatsCommand prints descriptive statistics for one company.
func newStatsCommand() *cobra.Command {
	var flags selectionFlags

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show descriptive statistics of one company's numeric columns",
		Example: `  stockdash stats --company AAPL
  stockdash stats -c MSFT -o markdown`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sel, err := flags.selection()
			if err != nil {
				return err
			}
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}

			view, err := ws.service.View(cmd.Context(), ws.session.ID, sel)
			if err != nil {
				return explain(err)
			}

			if ws.renderer.JSONMode() {
				return ws.renderer.JSON(map[string]interface{}{
					"selection": view.Selection,
					"stats":     view.Stats,
				})
			}

			headers, rows := exporter.StatsTable(view.Stats)
			ws.renderer.Table(headers, rows, viewCaption(view, len(view.Records)))
			return nil
		},
	}

	flags.register(cmd, false)
	return cmd
}

// newSummariesCommand prints the per-company at-a-glance line.
func newSummariesCommand() *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:   "summaries",
		Short: "Show each company's latest close, change and recent closes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if last < 1 || last > 1000 {
				return fmt.Errorf("--last must be between 1 and 1000, got %d", last)
			}
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}

			summaries, err := ws.service.Summaries(cmd.Context(), ws.session.ID, last)
			if err != nil {
				return explain(err)
			}

			if ws.renderer.JSONMode() {
				return ws.renderer.JSON(map[string]interface{}{"summaries": summaries})
			}

			headers := []string{"company", "rows", "first", "last", "close", "change", "change %", "high", "low", "recent closes"}
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, summaryRow(s))
			}
			ws.renderer.Table(headers, rows, "")
			return nil
		},
	}

	cmd.Flags().IntVar(&last, "last", dataprocessing.DefaultLastCloses, "Number of trailing closes per company")
	return cmd
}

// newExportCommand writes the merged dataset, or one company's view, to disk.
func newExportCommand() *cobra.Command {
	var (
		out     string
		xlsx    bool
		company string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the merged dataset to " + exporter.CombinedCSVName,
		Long: `Write every merged row to a CSV file, or to an Excel workbook with --xlsx.
With --company only that company's date-sorted rows are written.

Files are written atomically: a failed export never leaves a partial file.`,
		Example: `  stockdash export
  stockdash export --out /tmp/all.csv
  stockdash export --xlsx
  stockdash export --company AAPL`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if xlsx && company != "" {
				return errors.New("--xlsx and --company cannot be combined")
			}
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("out") {
				switch {
				case xlsx:
					out = exporter.CombinedXLSXName
				case company != "":
					out = exporter.ViewCSVName(strings.TrimSpace(company))
				}
			}

			ctx := cmd.Context()
			rows := ws.session.Rows
			var write func(io.Writer) error
			switch {
			case xlsx:
				write = func(w io.Writer) error { return ws.service.ExportXLSX(ctx, ws.session.ID, w) }
			case company != "":
				write = func(w io.Writer) error {
					view, err := ws.service.ExportView(ctx, ws.session.ID, company, w)
					rows = len(view.Records)
					return err
				}
			default:
				write = func(w io.Writer) error { return ws.service.ExportCombinedCSV(ctx, ws.session.ID, w) }
			}

			manager := files.NewManager(nil)
			verb := "Wrote"
			if manager.FileExists(out) {
				verb = "Replaced"
			}
			if err := manager.WriteAtomic(out, write); err != nil {
				return explain(err)
			}

			abs, err := filepath.Abs(out)
			if err != nil {
				abs = out
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d rows)\n", verb, abs, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", exporter.CombinedCSVName, "Output file")
	cmd.Flags().BoolVar(&xlsx, "xlsx", false, "Write an Excel workbook with data and stats sheets")
	cmd.Flags().StringVarP(&company, "company", "c", "", "Export only this company's view")
	return cmd
}

// explain turns the pipeline's no-data condition into the message the
// dashboard shows.
func explain(err error) error {
	if errors.Is(err, dataprocessing.ErrNoDataAvailable) {
		return errors.New(apierrors.NoDataMessage)
	}
	return err
}

func metricNames() []string {
	names := make([]string, 0, len(domain.Metrics()))
	for _, m := range domain.Metrics() {
		names = append(names, string(m))
	}
	return names
}

func recordRows(columns []string, records []domain.Record) [][]string {
	layout := exporter.DateLayout(records)
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(columns))
		exporter.FormatRecord(row, columns, r, layout)
		rows = append(rows, row)
	}
	return rows
}

func viewCaption(view domain.View, rows int) string {
	caption := fmt.Sprintf("%s, %s, %d rows", view.Selection.Company, view.Selection.Metric, rows)
	if view.Selection.Fallback {
		caption += " (requested company not found, showing the first company)"
	}
	return caption
}

func summaryRow(s dataprocessing.CompanySummary) []string {
	closes := make([]string, 0, len(s.LastCloses))
	for _, c := range s.LastCloses {
		closes = append(closes, strconv.FormatFloat(c, 'f', -1, 64))
	}
	return []string{
		s.Company,
		strconv.Itoa(s.Rows),
		s.FirstDate.UTC().Format("2006-01-02"),
		s.LastDate.UTC().Format("2006-01-02"),
		exporter.FormatValue(s.LastClose),
		exporter.FormatValue(s.Change),
		exporter.FormatValue(s.ChangePercent),
		exporter.FormatValue(s.High),
		exporter.FormatValue(s.Low),
		strings.Join(closes, " "),
	}
}

// Package cli provides the stockdash command-line interface: the server
// entry point and offline commands that run the dashboard pipeline over local
// CSV files and print the result.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stockdash/internal/app"
	"stockdash/internal/config"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	dataDir string
	pattern string
	files   []string
	output  string
	strict  bool
	verbose bool
}

type optionsKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "stockdash",
		Short: "Stock Dashboard - merge daily stock CSVs and explore them",
		Long: `stockdash merges per-company daily price files (date, open, high, low,
close, volume) into one dataset, lets you pick a company and a metric, and
reports the filtered rows, a chart series and descriptive statistics.

Run "stockdash serve" for the HTTP and WebSocket dashboard, or use the offline
commands to work on local files directly.`,
		Version: app.Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := ParseFormat(opts.output); err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), optionsKey{}, opts))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.dataDir, "data-dir", "", "Directory scanned for source files (default from config: data)")
	flags.StringVar(&opts.pattern, "pattern", "", "File name pattern of source files (default from config: *_data.csv)")
	flags.StringArrayVarP(&opts.files, "file", "f", nil, "CSV file loaded as an upload after the data directory (repeatable)")
	flags.StringVarP(&opts.output, "output", "o", string(FormatTable), "Output format (table|json|csv|markdown)")
	flags.BoolVar(&opts.strict, "strict", false, "Fail when any source cannot be parsed")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log pipeline activity to stderr")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return Formats(), cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newCompaniesCommand())
	rootCmd.AddCommand(newViewCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newSummariesCommand())
	rootCmd.AddCommand(newExportCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func optionsFrom(cmd *cobra.Command) *globalOptions {
	if o, ok := cmd.Context().Value(optionsKey{}).(*globalOptions); ok {
		return o
	}
	return &globalOptions{output: string(FormatTable)}
}

// loadConfig layers the command-line flags over config.Load.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.Data.Dir = opts.dataDir
	}
	if flags.Changed("pattern") {
		cfg.Data.Pattern = opts.pattern
	}
	if flags.Changed("strict") {
		cfg.Data.StrictSources = opts.strict
	}
	return cfg, nil
}

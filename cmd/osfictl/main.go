// Command osfictl inspects and exports institutional dashboard CSV files
// without running the web server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/osfidash/internal/config"
	"github.com/JonMunkholm/osfidash/internal/core"
	"github.com/JonMunkholm/osfidash/internal/logging"
)

// Global flag values.
var (
	discriminator string
	encoding      string
	schemaFile    string
	logLevel      string
	noColor       bool
	historyDSN    string
)

var rootCmd = &cobra.Command{
	Use:   "osfictl",
	Short: "Inspect and export institutional dashboard CSV files",
	Long: `osfictl reads an institutional dashboard export (one CSV with a row_type
column), prints its summary metrics and exports filtered entity tables
exactly as the dashboard would.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&discriminator, "discriminator", "", "row-kind column (default from DATASET_DISCRIMINATOR or row_type)")
	pf.StringVar(&encoding, "encoding", "", "input encoding (default from DATASET_ENCODING or utf-8)")
	pf.StringVar(&schemaFile, "schema", "", "YAML file overriding entity columns and filters")
	pf.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.StringVar(&historyDSN, "history-dsn", "", "load history database (default from HISTORY_DSN or DATABASE_URL)")

	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(columnsCmd)
	rootCmd.AddCommand(historyCmd)
}

// setup applies environment defaults to unset flags, then configures
// logging and schema overrides. Logs go to stderr so stdout stays clean for CSV.
func setup(cmd *cobra.Command) error {
	_ = godotenv.Load()

	slog.SetDefault(logging.New(os.Stderr, logLevel, "text"))
	if noColor {
		color.NoColor = true
	}

	cfg, err := config.LoadFrom(os.Getenv)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("discriminator") {
		discriminator = cfg.Dataset.Discriminator
	}
	if !cmd.Flags().Changed("encoding") {
		encoding = cfg.Dataset.Encoding
	}
	if !cmd.Flags().Changed("history-dsn") {
		historyDSN = cfg.History.DSN
	}
	if schemaFile == "" {
		schemaFile = cfg.Dataset.SchemaFile
	}
	if schemaFile != "" {
		if err := core.LoadSchemaFile(schemaFile); err != nil {
			return err
		}
	}
	return nil
}

// loadDataset reads path into a Dataset.
func loadDataset(path string) (*core.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ds, err := core.LoadCSV(f, core.LoadOptions{
		Discriminator: discriminator,
		Encoding:      encoding,
		Source:        path,
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	slog.Debug("dataset loaded", "file", path, "rows", ds.RowCount())
	return ds, nil
}

// entityFlag resolves the --entity value. Plural tab names are accepted.
func entityFlag(raw string) (core.Kind, error) {
	k := core.NormalizeKind(raw)
	if !k.IsEntity() {
		k = core.Kind(strings.TrimSuffix(string(k), "s"))
	}
	if !k.IsEntity() {
		return "", fmt.Errorf("%w: %q (want one of %s)", core.ErrUnknownEntity, raw, kindList())
	}
	return k, nil
}

func kindList() string {
	names := make([]string, len(core.EntityKinds))
	for i, k := range core.EntityKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		slog.Debug("command failed", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/osfidash/internal/core"
)

// ---- summary ----

var summaryCmd = &cobra.Command{
	Use:   "summary <file>",
	Short: "Print branding, row counts and headline metrics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := loadDataset(args[0])
		if err != nil {
			return err
		}
		return writeSummary(cmd.OutOrStdout(), ds)
	},
}

var modeColors = map[core.MetricMode]func(...any) string{
	core.ModeAuthoritative: color.New(color.FgCyan).SprintFunc(),
	core.ModeDerived:       color.New(color.FgGreen).SprintFunc(),
	core.ModeComposite:     color.New(color.FgYellow).SprintFunc(),
}

func writeSummary(w io.Writer, ds *core.Dataset) error {
	b := ds.Branding()
	title := b.InstitutionName
	if b.ReportMonth != "" {
		title += " (report month " + b.ReportMonth + ")"
	}
	if _, err := fmt.Fprintln(w, color.New(color.Bold).Sprint(title)); err != nil {
		return err
	}
	if !ds.HasSummary() {
		fmt.Fprintln(w, color.YellowString("no summary row: authoritative metrics are 0"))
	}
	fmt.Fprintln(w)

	counts := newTable(column{header: "Rows"}, column{header: "Count", right: true})
	counts.add("total", core.HumanInt(int64(ds.RowCount())))
	for _, k := range core.EntityKinds {
		c, _ := ds.Collection(k)
		counts.add(string(k), core.HumanInt(int64(c.Len())))
	}
	counts.add("unassigned", core.HumanInt(int64(len(ds.Orphans))))
	if err := counts.render(w); err != nil {
		return err
	}
	fmt.Fprintln(w)

	metrics := newTable(
		column{header: "Metric"},
		column{header: "Value", right: true},
		column{header: "Source", paint: func(a ...any) string {
			mode := core.MetricMode(fmt.Sprint(a...))
			if paint, ok := modeColors[mode]; ok {
				return paint(mode)
			}
			return string(mode)
		}},
	)
	for _, m := range ds.Summary().Ordered() {
		metrics.add(m.Label, m.Display, string(m.Mode))
	}
	return metrics.render(w)
}

// ---- export ----

var exportOpts struct {
	entity   string
	filters  []string
	columns  []string
	page     int
	pageSize int
	scope    string
	output   string
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export one entity table as CSV",
	Long: `Export applies filters, column selection and paging exactly like the
dashboard's "Download CSV" button. Filters are column=value; repeat
--filter to combine them. By default every filtered row is written; use
--scope page to write only the selected page.`,
	Example: `  osfictl export dashboard.csv --entity project --filter license=MIT --columns name_or_title,license`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := entityFlag(exportOpts.entity)
		if err != nil {
			return err
		}
		st, err := exportState(kind)
		if err != nil {
			return err
		}

		ds, err := loadDataset(args[0])
		if err != nil {
			return err
		}
		data, n, err := core.ExportView(ds, kind, st, core.ParseExportScope(exportOpts.scope))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if exportOpts.output != "" && exportOpts.output != "-" {
			if err := os.WriteFile(exportOpts.output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", exportOpts.output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", n, exportOpts.output)
			return nil
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportOpts.entity, "entity", "e", "", "entity table: "+kindList())
	f.StringArrayVarP(&exportOpts.filters, "filter", "f", nil, "column=value filter (repeatable)")
	f.StringSliceVarP(&exportOpts.columns, "columns", "c", nil, "columns to include (default: the table's default columns)")
	f.IntVar(&exportOpts.page, "page", 1, "page number when --scope page")
	f.IntVar(&exportOpts.pageSize, "page-size", core.DefaultPageSize, "rows per page when --scope page")
	f.StringVar(&exportOpts.scope, "scope", "filtered", "filtered or page")
	f.StringVarP(&exportOpts.output, "output", "o", "", "write to file instead of stdout")
	_ = exportCmd.MarkFlagRequired("entity")

	columnsCmd.Flags().StringVarP(&columnsEntity, "entity", "e", "", "entity table: "+kindList())
	_ = columnsCmd.MarkFlagRequired("entity")
}

// exportState builds the session state the flags describe. Repeating a
// column in --filter narrows it further.
func exportState(kind core.Kind) (core.EntityState, error) {
	if exportOpts.scope != "filtered" && exportOpts.scope != "page" {
		return core.EntityState{}, fmt.Errorf("invalid --scope %q: want filtered or page", exportOpts.scope)
	}
	if !core.ValidPageSize(exportOpts.pageSize) {
		return core.EntityState{}, fmt.Errorf("invalid --page-size %d", exportOpts.pageSize)
	}

	st := core.NewSessionState(exportOpts.pageSize)
	grouped := make(map[string][]string)
	for _, f := range exportOpts.filters {
		col, val, ok := strings.Cut(f, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return core.EntityState{}, fmt.Errorf("invalid --filter %q: want column=value", f)
		}
		grouped[col] = append(grouped[col], strings.TrimSpace(val))
	}
	for col, vals := range grouped {
		st.SetFilter(kind, col, vals...)
	}
	if len(exportOpts.columns) > 0 {
		st.SetColumns(kind, exportOpts.columns)
	}
	st.SetPage(kind, exportOpts.page)
	return st.Entity(kind), nil
}

// ---- columns ----

var columnsEntity string

var columnsCmd = &cobra.Command{
	Use:   "columns <file>",
	Short: "List the columns and filters available for an entity table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := entityFlag(columnsEntity)
		if err != nil {
			return err
		}
		ds, err := loadDataset(args[0])
		if err != nil {
			return err
		}
		view, err := core.BuildView(ds, kind, core.EntityState{})
		if err != nil {
			return err
		}
		return writeColumns(cmd.OutOrStdout(), view)
	},
}

func writeColumns(w io.Writer, view core.EntityView) error {
	shown := make(map[string]bool, len(view.Columns))
	for _, c := range view.Columns {
		shown[c] = true
	}
	filters := make(map[string]core.FilterField, len(view.Filters))
	for _, f := range view.Filters {
		filters[f.Column] = f
	}

	fmt.Fprintf(w, "%s %s\n\n", core.HumanInt(int64(view.Total)), view.Title)

	t := newTable(
		column{header: "Column"},
		column{header: "Label"},
		column{header: "Default", paint: color.New(color.FgGreen).SprintFunc()},
		column{header: "Filter options", right: true},
	)
	for _, col := range view.Available {
		def, opts := "", ""
		if shown[col] {
			def = "yes"
		}
		if f, ok := filters[col]; ok {
			opts = core.HumanInt(int64(len(f.Options)))
		}
		t.add(col, core.ColumnLabel(col), def, opts)
	}
	return t.render(w)
}

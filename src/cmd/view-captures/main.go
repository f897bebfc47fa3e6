package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"screen-capture-extractor/src/logutil"
	"screen-capture-extractor/src/table"
	"screen-capture-extractor/src/view"
)

type viewOptions struct {
	csvPath     string
	head        int
	columns     string
	where       string
	sortBy      string
	desc        bool
	sortMode    string
	exportCSV   string
	exportExcel string
	verbose     bool
}

func main() {
	if err := run(os.Args[1:], afero.NewOsFs(), color.Output, color.Error); err != nil {
		color.New(color.FgRed).Fprintf(color.Error, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, fs afero.Fs, stdout, stderr io.Writer) error {
	cmd := newRootCmd(&viewOptions{}, fs)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

func newRootCmd(opts *viewOptions, fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "view-captures",
		Short:         "Inspect, filter, sort and export the captures table",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(fs, cmd.OutOrStdout(), cmd.ErrOrStderr(), *opts)
		},
	}
	cmd.Flags().StringVar(&opts.csvPath, "csv", "captures.csv", "CSV table to read")
	cmd.Flags().IntVar(&opts.head, "head", 20, "Number of rows to preview (0 for all)")
	cmd.Flags().StringVar(&opts.columns, "columns", "", "Comma separated columns to keep, in order")
	cmd.Flags().StringVar(&opts.where, "where", "", "Filter expression, e.g. \"follower_count > 1000 && contains(summary, 'cats')\"")
	cmd.Flags().StringVar(&opts.sortBy, "sort", "", "Column to sort by")
	cmd.Flags().BoolVar(&opts.desc, "desc", false, "Sort in descending order")
	cmd.Flags().StringVar(&opts.sortMode, "sort-mode", "alpha", "How to compare values: alpha, numeric or date")
	cmd.Flags().StringVar(&opts.exportCSV, "export-csv", "", "Write the filtered view to this CSV file")
	cmd.Flags().StringVar(&opts.exportExcel, "export-excel", "", "Write the filtered view to this Excel file (.xlsx)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	return cmd
}

func runView(fs afero.Fs, stdout, stderr io.Writer, opts viewOptions) error {
	if opts.verbose {
		logutil.SetupConsole(stderr, zerolog.DebugLevel)
	} else {
		logutil.SetupConsole(io.Discard, zerolog.Disabled)
	}

	mode, err := view.ParseSortMode(opts.sortMode)
	if err != nil {
		return err
	}
	if _, err := fs.Stat(opts.csvPath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("CSV file not found: %s", opts.csvPath)
	}
	t, err := table.Load(fs, opts.csvPath)
	if err != nil {
		return err
	}

	if err := view.Summarize(t).Write(stdout); err != nil {
		return err
	}

	res := view.Apply(t, view.Query{
		Columns:  view.ParseColumns(opts.columns),
		Where:    opts.where,
		SortBy:   opts.sortBy,
		Desc:     opts.desc,
		SortMode: mode,
	})
	if err := view.WriteWarnings(stderr, res.Warnings); err != nil {
		return err
	}

	total := len(res.Table.Rows)
	heading := fmt.Sprintf("=== Preview (%d of %d rows) ===", previewRows(opts.head, total), total)
	fmt.Fprintf(stdout, "\n%s\n", color.New(color.FgCyan, color.Bold).Sprint(heading))
	if err := view.Render(stdout, res.Table, opts.head); err != nil {
		return err
	}

	// Exports take the whole view, not just the preview.
	if opts.exportCSV != "" {
		if err := view.ExportCSV(fs, opts.exportCSV, res.Table); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nExported %d row(s) to CSV: %s\n", len(res.Table.Rows), opts.exportCSV)
	}
	if opts.exportExcel != "" {
		path, err := view.ExportExcel(fs, opts.exportExcel, res.Table)
		if err != nil {
			// The preview and any CSV export already succeeded.
			return view.WriteWarnings(stderr, []string{err.Error()})
		}
		fmt.Fprintf(stdout, "\nExported %d row(s) to Excel: %s\n", len(res.Table.Rows), path)
	}
	return nil
}

func previewRows(head, total int) int {
	if head <= 0 || head > total {
		return total
	}
	return head
}

package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/format"
	"github.com/rickbassham/fitscore/ipac"
	"github.com/rickbassham/fitscore/parquet"
)

var tableCmd = &cobra.Command{
	Use:   "table <file>",
	Short: "Filter, sort and project an IPAC or Parquet table",
	Long: `Read an IPAC or Parquet table, apply the query and write the result as an
IPAC table to stdout.

Filters are "column op value" with op one of = != > < >= <= LIKE IN.
ROW_IDX filters on the 0-based row number.`,
	Example: `  fitscore table --filter "mag < 12" --filter "class = 'star'" --sort mag sources.tbl
  fitscore table --select ra,dec,mag --limit 100 catalog.parquet`,
	Args: cobra.ExactArgs(1),
	RunE: runTable,
}

var (
	tableFilters []string
	tableSort    []string
	tableDesc    bool
	tableSelect  string
	tableStrict  bool
	tableLimit   int
	tableRowID   string
)

func init() {
	tableCmd.Flags().StringArrayVar(&tableFilters, "filter", nil, "Row filter, repeatable")
	tableCmd.Flags().StringArrayVar(&tableSort, "sort", nil, "Sort column, repeatable")
	tableCmd.Flags().BoolVar(&tableDesc, "desc", false, "Sort descending")
	tableCmd.Flags().StringVar(&tableSelect, "select", "", "Comma separated columns to keep")
	tableCmd.Flags().BoolVar(&tableStrict, "strict", false, "Fail on rows that do not fit the column widths (default from config)")
	tableCmd.Flags().IntVar(&tableLimit, "limit", 0, "Rows read from a Parquet file, 0 for all")
	tableCmd.Flags().StringVar(&tableRowID, "row-id", "", "Column whose null cells are written as the row number")
}

func readTable(cmd *cobra.Command, path string) (*ipac.Table, error) {
	if cli.detector().Detect(path) == format.Parquet {
		return parquet.ReadTable(cmd.Context(), path, tableLimit)
	}

	strict := cli.cfg.Table.Strict
	if cmd.Flags().Changed("strict") {
		strict = tableStrict
	}

	rc, _, err := format.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	t, err := ipac.Parse(rc, ipac.Strict(strict), ipac.WithLogger(cli.log))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return t, nil
}

func runTable(cmd *cobra.Command, args []string) error {
	t, err := readTable(cmd, args[0])
	if err != nil {
		return err
	}

	q := ipac.NewQuery()
	for _, expr := range tableFilters {
		f, err := ipac.ParseFilter(expr)
		if err != nil {
			return err
		}
		q.AddFilter(f)
	}
	if len(tableSort) > 0 {
		dir := ipac.Asc
		if tableDesc {
			dir = ipac.Desc
		}
		q.OrderBy(dir, tableSort...)
	}
	if tableSelect != "" {
		for _, c := range strings.Split(tableSelect, ",") {
			q.Select(strings.TrimSpace(c))
		}
	}

	out, err := q.Run(t)
	if err != nil {
		return err
	}
	cli.log.Infow("table query", "file", args[0], "rows", t.Len(), "matched", out.Len())

	var opts []ipac.WriteOption
	if tableRowID != "" {
		opts = append(opts, ipac.WithRowID(tableRowID))
	}
	return ipac.Write(cmd.OutOrStdout(), out, opts...)
}

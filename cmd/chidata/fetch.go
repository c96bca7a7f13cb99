package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dsworkflows/chidata/pkg/dataset"
	"github.com/dsworkflows/chidata/pkg/pagination"
	"github.com/dsworkflows/chidata/pkg/table"
	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	var (
		id     string
		n      int
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and validate records from a portal dataset",
		Example: `  chidata fetch -n 3000 --format csv --output licenses.csv
  chidata fetch --dataset 4ijn-s7e5 -n 50 --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "csv" && format != "json" {
				return fmt.Errorf("unsupported format %q (want csv or json)", format)
			}
			d, err := dataset.Lookup(id)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			rdb, err := a.newRedis(ctx)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
			}

			c, err := a.newClient(rdb)
			if err != nil {
				return err
			}
			defer c.Close()

			t, err := d.Get(ctx, pagination.ClientOpener(c), n)
			if err != nil {
				return err
			}

			w := a.out
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				return writeAndClose(f, t, format)
			}
			return writeTable(w, t, format)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&id, "dataset", dataset.BusinessLicense.ID, "dataset resource id")
	flags.IntVarP(&n, "count", "n", dataset.DefaultCount, "number of records to fetch")
	flags.StringVarP(&format, "format", "f", "csv", "output format: csv or json")
	flags.StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}

// writeAndClose writes the table to wc and closes it. A close error is
// returned when the write itself succeeded.
func writeAndClose(wc io.WriteCloser, t *table.Table, format string) error {
	err := writeTable(wc, t, format)
	if cerr := wc.Close(); err == nil && cerr != nil {
		return fmt.Errorf("close output: %w", cerr)
	}
	return err
}

func writeTable(w io.Writer, t *table.Table, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}
	return t.WriteCSV(w)
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"polite/pkg/frame"
	"polite/pkg/polite"
)

func newLoadCmd(s *settings) *cobra.Command {
	var atomic bool

	cmd := &cobra.Command{
		Use:   "load <TABLE> <FILE> [DB_PATH]",
		Short: "Load a CSV or Parquet file into a table",
		Long: `Read FILE into a frame and persist it as TABLE, creating the table when it
does not exist. CSV column types are inferred from the data; files ending in
.parquet keep their column types.

Rows are inserted one at a time. Without --atomic a failing row leaves the rows
before it in the table; with --atomic the whole load is rolled back.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, file := args[0], args[1]
			dbPath := s.storePath(args, 2)
			if dbPath == "" || dbPath == polite.MemoryPath {
				return errors.New("load needs a store path: pass DB_PATH or set POLITE_DB")
			}
			if !cmd.Flags().Changed("atomic") {
				atomic = s.env.Atomic
			}

			f, err := readFrameFile(cmd.Context(), file)
			if err != nil {
				return err
			}
			defer f.Release()

			var opts []polite.PersistOption
			if atomic {
				opts = append(opts, polite.WithTransaction())
			}
			if err := polite.SaveFrame(cmd.Context(), dbPath, table, f, opts...); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Loaded %s row(s) into %s\n", humanize.Comma(int64(f.Height())), table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&atomic, "atomic", false, "Insert all rows in a single transaction")

	return cmd
}

// readFrameFile reads a CSV or Parquet file, chosen by extension.
func readFrameFile(ctx context.Context, path string) (*frame.Frame, error) {
	file, err := os.Open(path) //nolint:gosec // path is user-supplied by design
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck

	var f *frame.Frame
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		f, err = frame.ReadParquet(ctx, file)
	} else {
		f, err = frame.ReadCSV(file)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return f, nil
}

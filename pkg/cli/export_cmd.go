package cli

import (
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

func newExportCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "export <SQL|@file> <FILE> [DB_PATH]",
		Short: "Write the result of a query to a Parquet, CSV or JSON file",
		Long: `Materialize a SELECT query and write the frame to FILE. The format follows the
file extension: .parquet, .csv or .json (one object per row).`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readScript(args[0])
			if err != nil {
				return err
			}
			query = strings.TrimSpace(query)
			out := args[1]
			write, err := frameWriter(out)
			if err != nil {
				return err
			}

			f, err := polite.LoadFrame(cmd.Context(), s.storePath(args, 2), query, s.queryOptions()...)
			if err != nil {
				return err
			}
			defer f.Release()

			if err := writeFile(out, f, write); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s row(s) to %s\n", humanize.Comma(int64(f.Height())), out)
			return nil
		},
	}
}

type writeFunc func(f *frame.Frame, file *os.File) error

func frameWriter(path string) (writeFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return func(f *frame.Frame, file *os.File) error { return f.WriteParquet(file) }, nil
	case ".csv":
		return func(f *frame.Frame, file *os.File) error { return f.WriteCSV(file) }, nil
	case ".json":
		return func(f *frame.Frame, file *os.File) error { return f.WriteJSON(file) }, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q: use .parquet, .csv or .json", filepath.Ext(path))
	}
}

// writeFile writes f to path, removing the file again when writing fails.
func writeFile(path string, f *frame.Frame, write writeFunc) (err error) {
	file, err := os.Create(path) //nolint:gosec // path is user-supplied by design
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
		if err != nil {
			err = errors.Join(err, removeIfExists(path))
		}
	}()
	if err := write(f, file); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

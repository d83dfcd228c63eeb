package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"polite/pkg/frame"
)

var outputFormats = []string{"table", "csv", "json"}

func validateOutputFormat(output string) error {
	for _, f := range outputFormats {
		if output == f {
			return nil
		}
	}
	return fmt.Errorf("unsupported output format %q: use 'table', 'csv' or 'json'", output)
}

// printFrame writes f to w in the given format. Tables are fitted to the
// terminal width when stdout is a terminal.
func printFrame(w io.Writer, f *frame.Frame, format string) error {
	switch format {
	case "csv":
		return f.WriteCSV(w)
	case "json":
		return f.WriteJSON(w)
	default:
		opts := frame.FormatOptions{MaxRows: frame.DefaultMaxRows, MaxWidth: terminalWidth(w)}
		_, err := fmt.Fprintln(w, f.Format(opts))
		return err
	}
}

// terminalWidth returns the width of w when it is a terminal, else 0.
func terminalWidth(w io.Writer) int {
	file, ok := w.(*os.File)
	if !ok {
		return 0
	}
	fd := int(file.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return width
}

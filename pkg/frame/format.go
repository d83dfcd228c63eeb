package frame

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// DefaultMaxRows is the number of rows String shows before eliding.
const DefaultMaxRows = 10

const ellipsis = "…"

// FormatOptions controls table rendering.
type FormatOptions struct {
	// MaxRows caps the rendered rows; the middle of longer frames is elided.
	// Zero or less renders every row.
	MaxRows int
	// MaxWidth caps the table width in cells. Zero means unbounded.
	MaxWidth int
}

// String renders the frame as a table with a shape header.
func (f *Frame) String() string {
	return f.Format(FormatOptions{MaxRows: DefaultMaxRows})
}

// Format renders the frame as a bordered table preceded by its shape.
// Header cells show the column name followed by its kind, as in "id (i64)".
func (f *Frame) Format(opts FormatOptions) string {
	height, width := f.Shape()
	header := fmt.Sprintf("shape: (%d, %d)", height, width)
	if width == 0 {
		return header
	}

	headers := make([]string, width)
	for i, fld := range f.rec.Schema().Fields() {
		kind := KindOf(fld.Type).String()
		if kind == KindUnsupported.String() {
			kind = fld.Type.String()
		}
		headers[i] = fmt.Sprintf("%s (%s)", fld.Name, kind)
	}

	cols := make([]*Series, width)
	for i := range cols {
		cols[i] = &Series{name: f.rec.ColumnName(i), arr: f.rec.Column(i)}
	}
	row := func(r int) []string {
		cells := make([]string, width)
		for c, s := range cols {
			cells[c] = s.cell(r)
		}
		return cells
	}

	var rows [][]string
	if opts.MaxRows <= 0 || height <= opts.MaxRows {
		for r := 0; r < height; r++ {
			rows = append(rows, row(r))
		}
	} else {
		head := (opts.MaxRows + 1) / 2
		tail := opts.MaxRows - head
		for r := 0; r < head; r++ {
			rows = append(rows, row(r))
		}
		gap := make([]string, width)
		for c := range gap {
			gap[c] = ellipsis
		}
		rows = append(rows, gap)
		for r := height - tail; r < height; r++ {
			rows = append(rows, row(r))
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	if opts.MaxWidth > 0 {
		t = t.Width(opts.MaxWidth)
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(t.Render())
	return b.String()
}

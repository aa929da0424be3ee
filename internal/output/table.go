package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

// Table renders rows in aligned columns. Cell widths are measured in terminal
// cells with escape sequences ignored, so colored cells still line up.
type Table struct {
	headers []string
	rows    [][]string
	align   []bool // true = right aligned
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{
		headers: headers,
		align:   make([]bool, len(headers)),
	}
}

// AlignRight right-aligns the given columns, typically numeric ones.
func (t *Table) AlignRight(columns ...int) *Table {
	for _, c := range columns {
		if c >= 0 && c < len(t.align) {
			t.align[c] = true
		}
	}

	return t
}

// Row appends a row. Missing cells render empty; extra cells are dropped.
func (t *Table) Row(cells ...string) *Table {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)

	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table to dst.
func (t *Table) Render(dst io.Writer) {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = cellWidth(h)
	}

	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], cellWidth(cell))
		}
	}

	t.renderRow(dst, t.headers, widths)

	for _, row := range t.rows {
		t.renderRow(dst, row, widths)
	}
}

func (t *Table) renderRow(dst io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))

	for i, cell := range cells {
		pad := strings.Repeat(" ", widths[i]-cellWidth(cell))
		if t.align[i] {
			parts[i] = pad + cell
		} else {
			parts[i] = cell + pad
		}
	}

	fmt.Fprintln(dst, strings.TrimRight(strings.Join(parts, "  "), " "))
}

// Table writes t to stdout unless quiet.
func (w *Writer) Table(t *Table) {
	if w.Quiet {
		return
	}

	t.Render(w.Out)
}

// KeyValues writes label/value pairs with the labels padded to a common width.
func (w *Writer) KeyValues(pairs [][2]string) {
	if w.Quiet {
		return
	}

	width := 0
	for _, p := range pairs {
		width = max(width, cellWidth(p[0]))
	}

	for _, p := range pairs {
		label := p[0] + ":" + strings.Repeat(" ", width-cellWidth(p[0]))
		fmt.Fprintf(w.Out, "  %s %s\n", w.Colorize(ToneMuted, label), p[1])
	}
}

func cellWidth(s string) int {
	return runewidth.StringWidth(ansi.Strip(s))
}

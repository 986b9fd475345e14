// =============================================================================
// Weekly Recon - Report Emitter
// =============================================================================
//
// This module writes the finished upload tables. A Table is a fixed column
// set plus string rows; the pipeline fills it and picks a writer:
//   - WriteCSV:        flat CSV, optionally with a UTF-8 byte order mark
//                      (the EDI uploads expect one)
//   - WriteGroupedCSV: the "cleaned" layout, two blank spacer rows wherever
//                      a group column changes value
//   - WriteXLSX:       one worksheet per table
//
// =============================================================================

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// spacerRows is the number of blank rows between groups in the cleaned layout.
const spacerRows = 2

// =============================================================================
// TABLE
// =============================================================================

// Table is one output file's worth of rows.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// NewTable creates an empty table with the given columns.
func NewTable(name string, columns ...string) *Table {
	return &Table{Name: name, Columns: columns}
}

// Append adds a row. Missing trailing values are written as blanks.
func (t *Table) Append(values ...string) {
	row := make([]string, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// AppendMap adds a row from column -> value pairs.
func (t *Table) AppendMap(values map[string]string) {
	row := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		row[i] = values[c]
	}
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns every value of the named column.
func (t *Table) Column(name string) []string {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out
}

// Sort orders rows by the given columns, compared as strings. The sort is
// stable, so equal keys keep their insertion order. Unknown columns are
// ignored.
func Sort(t *Table, keys ...string) {
	idx := make([]int, 0, len(keys))
	for _, k := range keys {
		if i := t.ColumnIndex(k); i >= 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(t.Rows, func(a, b int) bool {
		for _, i := range idx {
			if t.Rows[a][i] != t.Rows[b][i] {
				return t.Rows[a][i] < t.Rows[b][i]
			}
		}
		return false
	})
}

// =============================================================================
// CSV OUTPUT
// =============================================================================

// CSVOptions controls WriteCSV.
type CSVOptions struct {
	// BOM prefixes the file with a UTF-8 byte order mark.
	BOM bool
}

// WriteCSV writes the header and rows of t to path.
func WriteCSV(path string, t *Table, opts CSVOptions) error {
	return writeFile(path, opts, func(w *csv.Writer) error {
		if err := w.Write(t.Columns); err != nil {
			return err
		}
		return w.WriteAll(t.Rows)
	})
}

// WriteGroupedCSV writes t with spacer rows between groups. A new group
// starts whenever any of groupColumns differs from the previous row, so t
// must already be sorted by those columns.
func WriteGroupedCSV(path string, t *Table, opts CSVOptions, groupColumns ...string) error {
	idx := make([]int, 0, len(groupColumns))
	for _, g := range groupColumns {
		i := t.ColumnIndex(g)
		if i < 0 {
			return fmt.Errorf("group column %q not in table %s", g, t.Name)
		}
		idx = append(idx, i)
	}

	blank := make([]string, len(t.Columns))

	return writeFile(path, opts, func(w *csv.Writer) error {
		if err := w.Write(t.Columns); err != nil {
			return err
		}
		for r, row := range t.Rows {
			if r > 0 && groupChanged(t.Rows[r-1], row, idx) {
				for i := 0; i < spacerRows; i++ {
					if err := w.Write(blank); err != nil {
						return err
					}
				}
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
}

func groupChanged(prev, cur []string, idx []int) bool {
	for _, i := range idx {
		if prev[i] != cur[i] {
			return true
		}
	}
	return false
}

func writeFile(path string, opts CSVOptions, body func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	var out io.Writer = f
	var bom io.WriteCloser
	if opts.BOM {
		bom = transform.NewWriter(f, unicode.UTF8BOM.NewEncoder())
		out = bom
	}

	w := csv.NewWriter(out)
	if err := body(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if bom != nil {
		if err := bom.Close(); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return f.Close()
}

// =============================================================================
// XLSX OUTPUT
// =============================================================================

// WriteXLSX writes each table to its own worksheet, named after the table.
func WriteXLSX(path string, tables ...*Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("no tables to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool, len(tables))
	for i, t := range tables {
		name := uniqueSheetName(sheetName(t.Name, i), used)

		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("failed to name sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %q: %w", name, err)
		}

		if err := writeSheet(f, name, t); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, t *Table) error {
	rows := make([][]string, 0, len(t.Rows)+1)
	rows = append(rows, t.Columns)
	rows = append(rows, t.Rows...)

	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write sheet %q row %d: %w", sheet, r+1, err)
		}
	}
	return nil
}

var sheetNameReplacer = strings.NewReplacer(":", "", "\\", "", "/", "", "?", "", "*", "", "[", "", "]", "")

// sheetName strips characters Excel rejects and truncates to 31 characters.
func sheetName(name string, index int) string {
	name = strings.TrimSpace(sheetNameReplacer.Replace(name))
	if name == "" {
		name = fmt.Sprintf("Sheet%d", index+1)
	}
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}
	return name
}

func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		base := []rune(name)
		if len(base)+len(suffix) > 31 {
			base = base[:31-len(suffix)]
		}
		candidate = string(base) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

// =============================================================================
// Weekly Recon - XLSX Feed Parser
// =============================================================================
//
// This module reads reference feeds that arrive as Excel workbooks instead of
// CSV exports: the combined invoice report and the customer list are often
// saved straight from Excel. The first row of the sheet is the header row,
// exactly like the CSV feeds, and the result uses the same CSVData shape so
// the loaders do not care which format a feed came in.
//
// SHEET SELECTION:
//   Parse reads the first sheet. ParseSheet reads a named sheet, which is
//   how a multi-tab workbook (e.g. "ILS" and "SHIP" tabs) is consumed.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/carrierledger/weekly-recon/internal/csvparser"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads the first sheet of an XLSX workbook.
//
// PARAMETERS:
//   - filePath: The path to the workbook.
//
// RETURNS:
//   - The sheet as header -> value rows.
//   - An error if the file cannot be opened or has no sheets.
func Parse(filePath string) (*csvparser.CSVData, error) {
	return ParseSheet(filePath, "")
}

// ParseSheet reads the named sheet of an XLSX workbook. An empty sheetName
// selects the first sheet.
func ParseSheet(filePath, sheetName string) (*csvparser.CSVData, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("%s: workbook has no sheets", filePath)
		}
	}

	data, err := parseSheet(f, sheetName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	data.SourceFile = filePath
	return data, nil
}

// SheetNames lists the sheets of a workbook in tab order.
func SheetNames(filePath string) ([]string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// parseSheet converts one sheet of an open workbook.
func parseSheet(f *excelize.File, sheetName string) (*csvparser.CSVData, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet %q: %w", sheetName, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		headers[i] = h
	}

	data := &csvparser.CSVData{Headers: headers}

	for i := 1; i < len(rows); i++ {
		row := rows[i]

		// GetRows trims trailing empty cells, so short rows are normal.
		if len(row) == 0 || isRowEmpty(row) {
			continue
		}

		rowMap := make(map[string]string, len(headers))
		for colIndex, header := range headers {
			if colIndex < len(row) {
				rowMap[header] = strings.TrimSpace(row[colIndex])
			} else {
				rowMap[header] = ""
			}
		}

		data.Rows = append(data.Rows, rowMap)
		data.RowNumbers = append(data.RowNumbers, i+1)
	}

	return data, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

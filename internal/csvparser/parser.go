// =============================================================================
// Weekly Recon - CSV Parser Module
// =============================================================================
//
// This module parses the delimited feeds the pipeline consumes: the raw
// payment export, the combined invoice report, the customer list and the EDI
// shipment export. It handles:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - UTF-8 with or without a byte order mark
//   - Windows-1252 and ISO-8859-1 exports
//   - Required-column checks, so a renamed column fails the load loudly
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/carrierledger/weekly-recon/internal/config"
)

// ErrMissingColumn is wrapped by RequireColumns when a header is absent.
var ErrMissingColumn = errors.New("missing required column")

// =============================================================================
// CSV DATA STRUCTURE
// =============================================================================

// CSVData represents a parsed feed.
type CSVData struct {
	// Headers contains the trimmed column headers in file order.
	Headers []string

	// Rows contains the data rows as maps of header -> value.
	Rows []map[string]string

	// RowNumbers holds the 1-indexed file line of each entry in Rows.
	RowNumbers []int

	// SourceFile is the path the data was read from.
	SourceFile string
}

// Len returns the number of data rows.
func (d *CSVData) Len() int {
	return len(d.Rows)
}

// HasColumn reports whether the header row contains name.
func (d *CSVData) HasColumn(name string) bool {
	for _, h := range d.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// RequireColumns returns an error naming every absent column.
func (d *CSVData) RequireColumns(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !d.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: %w: %s", d.SourceFile, ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns the parsed data.
func Parse(filePath string, settings config.CSVSettings) (*CSVData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := ParseReader(file, settings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	data.SourceFile = filePath
	return data, nil
}

// ParseReader parses CSV content from r. The first row is the header row.
func ParseReader(r io.Reader, settings config.CSVSettings) (*CSVData, error) {
	enc, err := encodingFor(settings.Encoding)
	if err != nil {
		return nil, err
	}

	reader := bufio.NewReader(transform.NewReader(r, enc.NewDecoder()))
	csvReader := csv.NewReader(reader)
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	headers := cleanHeaders(allRows[0])
	rows, rowNumbers := extractDataRows(allRows[1:], headers)

	return &CSVData{
		Headers:    headers,
		Rows:       rows,
		RowNumbers: rowNumbers,
	}, nil
}

// encodingFor maps a configured encoding name to a decoder. UTF-8 input has
// any leading byte order mark removed.
func encodingFor(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "UTF-8", "UTF8", "UTF-8-SIG":
		return unicode.UTF8BOM, nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Exports are ragged: trailing empty columns are often dropped.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
}

// cleanHeaders trims header values and names blank headers by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}

	return cleaned
}

// extractDataRows converts rows to maps, skipping blank lines. Values are
// trimmed; missing trailing cells become empty strings.
func extractDataRows(rawRows [][]string, headers []string) ([]map[string]string, []int) {
	dataRows := make([]map[string]string, 0, len(rawRows))
	rowNumbers := make([]int, 0, len(rawRows))

	for i, row := range rawRows {
		if isRowEmpty(row) {
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

		dataRows = append(dataRows, rowMap)
		// +2: one for the header row, one for 1-indexing.
		rowNumbers = append(rowNumbers, i+2)
	}

	return dataRows, rowNumbers
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

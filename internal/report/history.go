package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// HistoryColumns is the header of the history file.
var HistoryColumns = []string{"Date", "Total Amount", "ILS", "SHIP"}

// HistoryRow is one week's payment totals.
type HistoryRow struct {
	Date time.Time
	ILS  decimal.Decimal
	SHIP decimal.Decimal
}

// Total returns ILS + SHIP.
func (h HistoryRow) Total() decimal.Decimal {
	return h.ILS.Add(h.SHIP)
}

// AppendHistory appends row to the history CSV at path, writing the header
// first when the file does not exist yet.
func AppendHistory(path string, row HistoryRow) error {
	_, err := os.Stat(path)
	isNew := errors.Is(err, fs.ErrNotExist)
	if err != nil && !isNew {
		return fmt.Errorf("failed to stat history file: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(HistoryColumns); err != nil {
			return err
		}
	}
	if err := w.Write([]string{
		row.Date.Format("2006-01-02"),
		row.Total().StringFixed(2),
		row.ILS.StringFixed(2),
		row.SHIP.StringFixed(2),
	}); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return f.Close()
}

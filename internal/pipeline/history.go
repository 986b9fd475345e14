package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/carrierledger/weekly-recon/internal/config"
	"github.com/carrierledger/weekly-recon/internal/csvparser"
	"github.com/carrierledger/weekly-recon/internal/logger"
	"github.com/carrierledger/weekly-recon/internal/normalize"
	"github.com/carrierledger/weekly-recon/internal/report"
	"github.com/carrierledger/weekly-recon/internal/xlsxparser"
	"github.com/carrierledger/weekly-recon/pkg/utils"
)

// amountColumn is summed from each payment report.
const amountColumn = "AMOUNT"

// HistoryResult is the outcome of a history run.
type HistoryResult struct {
	Row report.HistoryRow

	// Sources are the payment reports that were summed.
	Sources []string

	// Archived are the copies written to the archive directory.
	Archived []string

	HistoryFile string
}

// History sums the AMOUNT column of this week's ILS and SHIP payment
// reports, appends the totals to the history file and copies the reports
// to the archive directory. The payment reports must already exist, so the
// output name format must not contain {uuid} or {timestamp}.
func (p *Pipeline) History(ctx context.Context) (*HistoryResult, error) {
	log := logger.FromContext(ctx)
	result := &HistoryResult{HistoryFile: p.cfg.HistoryFile}
	totals := make(map[string]decimal.Decimal, 2)

	// =========================================================================
	// STEP 1: SUM PAYMENT REPORTS
	// =========================================================================

	xlsx := strings.EqualFold(p.cfg.OutputFormat, "xlsx")
	archive := make(map[string]string, 2)
	for _, group := range []string{GroupILS, GroupSHIP} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			path string
			data *csvparser.CSVData
			err  error
		)
		if xlsx {
			path = p.files.OutputPath(p.outputName(p.cfg.OutputNameFormat, config.ReportPayments, GroupAll, ".xlsx"))
		} else {
			path = p.files.OutputPath(p.outputName(p.cfg.OutputNameFormat, config.ReportPayments, group, ".csv"))
		}
		if !utils.FileExists(path) {
			return nil, fmt.Errorf("%s payment report %s not found; run the payments report first", group, path)
		}

		if xlsx {
			data, err = xlsxparser.ParseSheet(path, group)
			archive[path] = "Payment_Report.xlsx"
		} else {
			data, err = csvparser.Parse(path, config.CSVSettings{})
			archive[path] = group + "_Payment_Report.csv"
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s payment report: %w", group, err)
		}

		total, err := sumColumn(data, amountColumn)
		if err != nil {
			return nil, fmt.Errorf("%s payment report: %w", group, err)
		}
		totals[group] = total

		log.Info().Str("group", group).Str("file", path).Str("total", total.StringFixed(2)).Msg("Summed payment report")
		if !contains(result.Sources, path) {
			result.Sources = append(result.Sources, path)
		}
	}

	result.Row = report.HistoryRow{
		Date: p.now(),
		ILS:  totals[GroupILS],
		SHIP: totals[GroupSHIP],
	}

	// =========================================================================
	// STEP 2: APPEND HISTORY
	// =========================================================================

	if err := report.AppendHistory(p.cfg.HistoryFile, result.Row); err != nil {
		return nil, err
	}
	log.Info().Str("file", p.cfg.HistoryFile).Str("total", result.Row.Total().StringFixed(2)).Msg("Appended history")

	// =========================================================================
	// STEP 3: ARCHIVE REPORTS
	// =========================================================================

	for _, src := range result.Sources {
		archived, err := p.files.ArchiveOutputFile(src, archive[src])
		if err != nil {
			return nil, err
		}
		result.Archived = append(result.Archived, archived)
	}

	return result, nil
}

// sumColumn adds up the non-blank values of a column.
func sumColumn(data *csvparser.CSVData, column string) (decimal.Decimal, error) {
	if err := data.RequireColumns(column); err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for i, row := range data.Rows {
		v := strings.TrimSpace(row[column])
		if v == "" {
			continue
		}
		amount, err := normalize.ParseAmount(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("row %d: %w", data.RowNumbers[i], err)
		}
		total = total.Add(amount)
	}
	return total, nil
}

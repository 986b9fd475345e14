package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/carrierledger/weekly-recon/internal/audit"
	"github.com/carrierledger/weekly-recon/internal/config"
	"github.com/carrierledger/weekly-recon/internal/csvparser"
	"github.com/carrierledger/weekly-recon/internal/reference"
	"github.com/carrierledger/weekly-recon/internal/types"
	"github.com/carrierledger/weekly-recon/internal/validation"
	"github.com/carrierledger/weekly-recon/internal/xlsxparser"
)

// =============================================================================
// FEED SELECTION
// =============================================================================

// Feed pairs a feed schema with the file configured for it.
type Feed struct {
	Schema validation.FeedSchema
	Path   string
}

// FeedsFor lists the feeds a report reads. An empty report type lists every
// configured feed, checked against its base schema.
func FeedsFor(cfg *config.MainConfig, rt config.ReportType) []Feed {
	transactions := Feed{validation.TransactionsFeed, cfg.TransactionsFile}
	cardFee := Feed{validation.CardFeeFeed, cfg.TransactionsFile}
	ref := Feed{validation.ReferenceFeed, cfg.ReferenceFile}
	customers := Feed{validation.CustomersFeed, cfg.CustomersFile}
	shipments := Feed{validation.ShipmentsFeed, cfg.ShipmentsFile}
	charges := Feed{validation.ShipmentChargesFeed, cfg.ShipmentsFile}

	switch rt {
	case config.ReportCleaned:
		return []Feed{ref, transactions}
	case config.ReportPayments:
		return []Feed{ref, customers, transactions}
	case config.ReportCardFee:
		return []Feed{ref, cardFee}
	case config.ReportILSIncome, config.ReportILSBills, config.ReportShipBills:
		return []Feed{customers, shipments}
	case config.ReportShipIncome:
		return []Feed{customers, charges}
	}

	var all []Feed
	for _, f := range []Feed{ref, customers, transactions, shipments} {
		if f.Path != "" {
			all = append(all, f)
		}
	}
	return all
}

// =============================================================================
// TABLE LOADING
// =============================================================================

// LoadTable reads a feed file. Workbooks (.xlsx, .xlsm) are read from their
// first sheet; anything else is parsed as CSV with settings.
func LoadTable(path string, settings config.CSVSettings) (*csvparser.CSVData, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return xlsxparser.Parse(path)
	default:
		return csvparser.Parse(path, settings)
	}
}

// loadFeed reads a feed and checks its required columns.
func (r *run) loadFeed(ctx context.Context, f Feed) (*csvparser.CSVData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Path == "" {
		return nil, fmt.Errorf("no %s file configured", f.Schema.Name)
	}

	data, err := LoadTable(r.cfg.InputPath(f.Path), r.cfg.CSVSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s feed: %w", f.Schema.Name, err)
	}
	if err := data.RequireColumns(f.Schema.RequiredColumns()...); err != nil {
		return nil, err
	}

	r.log.Info().
		Str("feed", f.Schema.Name).
		Str("file", data.SourceFile).
		Int("rows", data.Len()).
		Msg("Loaded feed")
	return data, nil
}

// feed returns the configured feed of the run's report with schema s.
func (r *run) feed(s validation.FeedSchema) Feed {
	for _, f := range FeedsFor(r.cfg, r.report) {
		if f.Schema.Name == s.Name {
			return f
		}
	}
	return Feed{Schema: s}
}

// =============================================================================
// TYPED LOADERS
// =============================================================================

// loadInvoices loads the combined invoice report. Invoices whose
// percentages do not sum to one are recorded as data-quality entries.
func (r *run) loadInvoices(ctx context.Context) (*reference.InvoiceTable, error) {
	data, err := r.loadFeed(ctx, r.feed(validation.ReferenceFeed))
	if err != nil {
		return nil, err
	}

	invoices, err := reference.LoadInvoices(data, r.aud)
	if err != nil {
		return nil, err
	}

	for _, d := range invoices.Diagnostics() {
		r.aud.Recordf(audit.DataQuality, d.InvoiceID, "allocation percentages sum to %s, not 1", d.Sum.String())
	}
	r.log.Debug().Int("invoices", invoices.Len()).Msg("Built invoice table")
	return invoices, nil
}

// loadCustomers loads the customer directory.
func (r *run) loadCustomers(ctx context.Context) (*reference.Directory, error) {
	data, err := r.loadFeed(ctx, r.feed(validation.CustomersFeed))
	if err != nil {
		return nil, err
	}
	return reference.LoadCustomers(data)
}

// loadTransactions loads the raw payment feed.
func (r *run) loadTransactions(ctx context.Context, schema validation.FeedSchema) ([]types.RawTransaction, error) {
	data, err := r.loadFeed(ctx, r.feed(schema))
	if err != nil {
		return nil, err
	}

	raws := make([]types.RawTransaction, data.Len())
	for i, row := range data.Rows {
		raws[i] = types.RawTransaction{
			Row:          data.RowNumbers[i],
			Amount:       row[validation.ColAmount],
			CheckNumber:  row[validation.ColCheckNumber],
			BankName:     row[validation.ColBankName],
			InvoiceIDs:   row[validation.ColInvoiceIDs],
			CustomerID:   row[validation.ColCustomerID],
			CustomerName: row[validation.ColCustomer],
			Notes:        row[validation.ColNotes],
			PaymentDate:  row[validation.ColPaymentDate],
			InvoiceTotal: row[validation.ColInvoiceTotal],
		}
	}

	r.stats.RowsRead = len(raws)
	r.aud.CountInput(len(raws))
	return raws, nil
}

// loadShipments loads the EDI shipment feed.
func (r *run) loadShipments(ctx context.Context, schema validation.FeedSchema) ([]types.ShipmentRecord, error) {
	data, err := r.loadFeed(ctx, r.feed(schema))
	if err != nil {
		return nil, err
	}

	ships := make([]types.ShipmentRecord, data.Len())
	for i, row := range data.Rows {
		charges := make([]string, len(validation.ChargeColumns))
		for j, c := range validation.ChargeColumns {
			charges[j] = row[c]
		}
		ships[i] = types.ShipmentRecord{
			Row:              data.RowNumbers[i],
			Carrier:          strings.TrimSpace(row[validation.ColCarrier]),
			SubCarrier:       strings.TrimSpace(row[validation.ColSubCarrier]),
			CustomerNumber:   strings.TrimSpace(row[validation.ColCustomerNumber]),
			CustomerName:     strings.TrimSpace(row[validation.ColShipCustomer]),
			CarrierInvoice:   strings.TrimSpace(row[validation.ColCarrierInvoice]),
			InvoiceNumber:    strings.TrimSpace(row[validation.ColInvoiceNumber]),
			ShipDate:         strings.TrimSpace(row[validation.ColShipDate]),
			AirbillNumber:    strings.TrimSpace(row[validation.ColAirbillNumber]),
			ServiceType:      strings.TrimSpace(row[validation.ColServiceType]),
			SalesRep:         strings.TrimSpace(row[validation.ColSalesRep]),
			CustomerTotal:    row[validation.ColCustomerTotal],
			CarrierCostTotal: row[validation.ColCarrierCostTotal],
			Charges:          charges,
		}
	}

	r.stats.RowsRead = len(ships)
	r.aud.CountInput(len(ships))
	return ships, nil
}

// =============================================================================
// FEED VALIDATION
// =============================================================================

// FeedCheck is the validation outcome of one feed.
type FeedCheck struct {
	Feed   Feed
	Result *validation.ValidationResult

	// Err is set when the feed could not be read at all.
	Err error
}

// ValidateFeeds reads and validates every feed rt needs, without running
// the report. An empty rt checks every configured feed.
func ValidateFeeds(cfg *config.MainConfig, rt config.ReportType) []FeedCheck {
	feeds := FeedsFor(cfg, rt)
	checks := make([]FeedCheck, 0, len(feeds))
	for _, f := range feeds {
		check := FeedCheck{Feed: f}
		if f.Path == "" {
			check.Err = fmt.Errorf("no %s file configured", f.Schema.Name)
			checks = append(checks, check)
			continue
		}

		data, err := LoadTable(cfg.InputPath(f.Path), cfg.CSVSettings)
		if err != nil {
			check.Err = err
		} else {
			check.Result = validation.NewValidator(f.Schema).ValidateFeed(data)
		}
		checks = append(checks, check)
	}
	return checks
}

package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrierledger/weekly-recon/internal/audit"
	"github.com/carrierledger/weekly-recon/internal/config"
	"github.com/carrierledger/weekly-recon/internal/csvparser"
	"github.com/carrierledger/weekly-recon/internal/logger"
)

var fixedNow = time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC)

// =============================================================================
// FIXTURES
// =============================================================================

func writeCSV(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(rows))
}

var referenceRows = [][]string{
	{"Invoice Number", "Column B", "Percentage of Total (%)"},
	{"INV10001", "DHL Express", "60"},
	{"INV10001", "FedEx Ground", "40"},
	{"INV20002", "SHIP Freight", "100"},
	{"INV30003", "Misc", "100"},
	{"INV40004", "DHL", "50"},
}

var customerRows = [][]string{
	{"Customer Id", "Customer", "Inv Terms", "Customer Salesrep"},
	{"C1", "Acme Corp", "30 days", "JSMITH01"},
	{"C2", "Blue Ox", "15", "ADOE"},
	{"10000001", "Acme Corp", "30", "JSMITH01"},
	{"50000002", "Blue Ox", "15", "ADOE"},
	{"60000003", "Crate Co", "", ""},
}

var transactionRows = [][]string{
	{"Amount", "Check #", "Bank Name", "Invoice Id(s)", "Customer Id", "Customer", "Notes", "Payment Date"},
	{"$1,000.00", "1234", "", "INV10001", "C1", "Acme", "", "03/10/2025"},
	{"250.00", "VISA4242", "", "INV20002", "C2", "Blue Ox", "", "03/10/2025"},
	{"75.00", "CC1234", "", "INV10001", "C1", "Acme", "", "03/11/2025"},
	{"50.00", "ACH", "", "INV99999", "C9", "Nobody", "", "03/11/2025"},
	{"20.00", "5555", "", "INV30003", "C1", "Acme", "Re-allocated to INV10001", "03/12/2025"},
	{"30.00", "", "Chase", "INV30003", "C1", "Acme", "", "03/12/2025"},
	{"10.00", "6666", "", "INV40004", "C3", "Crate", "prepaid deposit", "someday"},
}

var feeRows = [][]string{
	{"Amount", "Check #", "Bank Name", "Invoice Id(s)", "Customer Id", "Customer", "Notes", "Payment Date", "Invoice Total"},
	{"103.00", "VISA", "", "XX-INV10001", "C1", "Acme", "", "03/10/2025", "100.00"},
	{"50.00", "AMEX", "", "INV20002", "C2", "Blue Ox", "", "03/11/2025", "50.00"},
}

var shipmentHeader = []string{
	"Carrier", "Sub Carrier", "Customer #", "Customer", "Carrier Inv. #", "Invoice Number",
	"Ship Date", "Airbill Number", "Service Type", "Sales Rep", "Customer Total", "Carrier Cost Total",
	"Customer Base", "Chg 1 Total", "Chg 2 Total", "Chg 3 Total", "Chg 4 Total",
	"Chg 5 Total", "Chg 6 Total", "Chg 7 Total", "Chg 8 Total",
}

func shipment(carrier, sub, custNo, name, carrierInv, invNo, shipDate, airbill, service, rep, custTotal, costTotal, base, chg1 string) []string {
	row := []string{carrier, sub, custNo, name, carrierInv, invNo, shipDate, airbill, service, rep, custTotal, costTotal, base, chg1}
	for len(row) < len(shipmentHeader) {
		row = append(row, "")
	}
	return row
}

var shipmentRows = [][]string{
	shipmentHeader,
	shipment("DHL", "", "10000001", "Acme", "C100", "99912345YB15", "03/02/2025", "1234567890", "Express", "JSMITH01", "120.00", "80.00", "", ""),
	shipment("DHL", "", "60000003", "Curlmix LLC", "C200", "55500000YJ15", "", "222", "Express", "", "10.00", "5.00", "", ""),
	shipment("DHL", "", "50000002", "Blue Ox", "D300", "55500000YJ15", "", "333", "Express", "", "10.00", "5.00", "", ""),
	shipment("DHL", "", "10000009", "Ghost", "C400", "12340000YB1X", "", "444", "Express", "", "10.00", "5.00", "", ""),
	shipment("FedEx", "England", "10000001", "Acme", "F500", "77700000YJ15", "03/01/2025", "1.23457E+11", "Ground", "JSMITH01", "0", "7.00", "10.00", "2.50"),
	shipment("UPS", "Unknownsub", "10003217", "Excluded Co", "U600", "66600000YJ15", "", "666", "Ground", "", "0", "3.00", "5.00", ""),
	shipment("FREIGHT", "", "10000099", "Nobody", "R700", "88800000YC01", "", "555", "LTL", "", "0", "30.00", "40.00", ""),
	shipment("FedEx", "", "50000002", "Blue Ox", "F800", "12345678ZA05", "03/03/2025", "888", "Home", "ADOE", "0", "15.00", "20.00", ""),
	shipment("UPS", "Mystery", "10000001", "Acme", "U900", "11111111YA3X", "03/04/2025", "999", "Ground", "JSMITH01", "0", "5.00", "", ""),
	shipment("DHL", "", "50000002", "Blue Ox", "A050", "00000000ZL31", "", "42", "Express", "", "10.00", "10.00", "", ""),
}

type fixture struct {
	cfg *config.MainConfig
	out string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	in := filepath.Join(root, "input")
	out := filepath.Join(root, "output")
	require.NoError(t, os.MkdirAll(in, 0755))

	writeCSV(t, filepath.Join(in, "reference.csv"), referenceRows)
	writeCSV(t, filepath.Join(in, "customers.csv"), customerRows)
	writeCSV(t, filepath.Join(in, "transactions.csv"), transactionRows)
	writeCSV(t, filepath.Join(in, "fees.csv"), feeRows)
	writeCSV(t, filepath.Join(in, "shipments.csv"), shipmentRows)

	cfg := config.Default()
	cfg.InputDir = in
	cfg.OutputDir = out
	cfg.ArchiveDir = filepath.Join(out, "Report")
	cfg.HistoryFile = filepath.Join(out, "History Data.csv")
	cfg.WeekLabel = "wk"
	cfg.ReferenceFile = "reference.csv"
	cfg.CustomersFile = "customers.csv"
	cfg.TransactionsFile = "transactions.csv"
	cfg.ShipmentsFile = "shipments.csv"

	return fixture{cfg: cfg, out: out}
}

func (f fixture) run(t *testing.T, rt config.ReportType) *Result {
	t.Helper()
	p, err := New(f.cfg, WithClock(func() time.Time { return fixedNow }), WithRunID(uuid.MustParse("00000000-0000-0000-0000-000000000001")))
	require.NoError(t, err)

	ctx := logger.WithContext(context.Background(), logger.Nop())
	result, err := p.Run(ctx, rt, false)
	require.NoError(t, err)
	return result
}

func readOutput(t *testing.T, path string) *csvparser.CSVData {
	t.Helper()
	data, err := csvparser.Parse(path, config.CSVSettings{})
	require.NoError(t, err)
	return data
}

func column(data *csvparser.CSVData, name string) []string {
	out := make([]string, len(data.Rows))
	for i, row := range data.Rows {
		out[i] = row[name]
	}
	return out
}

// =============================================================================
// PAYMENT REPORTS
// =============================================================================

func TestRunCleaned(t *testing.T) {
	f := newFixture(t)
	result := f.run(t, config.ReportCleaned)

	require.Len(t, result.OutputFiles, 1)
	assert.Equal(t, filepath.Join(f.out, "ALL_cleaned_wk.csv"), result.OutputFiles[0])

	data, err := os.ReadFile(result.OutputFiles[0])
	require.NoError(t, err)
	want := "" +
		"Amount,Column B,Check #,Payment Date,Customer Id,Customer,Invoice Id(s),Notes,Payment Method\n" +
		"600.00,DHL Express,1234,03/10/2025,C1,Acme,INV10001,,Check\n" +
		"400.00,FedEx Ground,1234,03/10/2025,C1,Acme,INV10001,,Check\n" +
		",,,,,,,,\n,,,,,,,,\n" +
		"250.00,SHIP Freight,VISA4242,03/10/2025,C2,Blue Ox,INV20002,,Credit Card\n" +
		",,,,,,,,\n,,,,,,,,\n" +
		"50.00,,ACH,03/11/2025,C9,Nobody,INV99999,,ACH\n" +
		",,,,,,,,\n,,,,,,,,\n" +
		"30.00,Misc,Chase,03/12/2025,C1,Acme,INV30003,,Other\n" +
		",,,,,,,,\n,,,,,,,,\n" +
		"5.00,DHL,6666,someday,C3,Crate,INV40004,prepaid deposit,Check\n"
	assert.Equal(t, want, string(data))

	assert.Equal(t, 7, result.Summary.Input)
	assert.Equal(t, 2, result.Summary.Excluded)
	assert.Equal(t, 4, result.Summary.Matched)
	assert.Equal(t, 1, result.Summary.Unmatched)
	assert.Equal(t, 1, result.Categories[audit.InvalidDate])
	assert.Equal(t, 1, result.Categories[audit.DataQuality])
	assert.Equal(t, 7, result.Stats.RowsRead)
	assert.Equal(t, 6, result.Stats.RowsWritten[GroupAll])
}

func TestRunPayments(t *testing.T) {
	f := newFixture(t)
	result := f.run(t, config.ReportPayments)

	require.Len(t, result.OutputFiles, 2)

	ils := readOutput(t, filepath.Join(f.out, "ILS_payments_wk.csv"))
	assert.Equal(t, PaymentColumns, ils.Headers)
	require.Equal(t, 1, ils.Len())
	assert.Equal(t, map[string]string{
		"CUSTOMER":         "Acme Corp",
		"REF NO":           "5-0001",
		"DATE":             "03/10/2025",
		"PAYMENT METHOD":   "1234",
		"APPLY_TO_INVOICE": "0001",
		"AMOUNT":           "600.00",
		"DEPOSIT TO":       "15000",
		"MEMO":             "INV10001",
	}, ils.Rows[0])

	ship := readOutput(t, filepath.Join(f.out, "SHIP_payments_wk.csv"))
	assert.Equal(t, []string{"400.00", "250.00"}, column(ship, "AMOUNT"))
	assert.Equal(t, []string{"5-0001", "4-0002"}, column(ship, "REF NO"))
	assert.Equal(t, []string{"12000", "12000"}, column(ship, "DEPOSIT TO"))

	assert.Equal(t, 3, result.Summary.Excluded)
	assert.Equal(t, 2, result.Summary.Matched)
	assert.Equal(t, 1, result.Summary.Unmatched)
	assert.Equal(t, 4, result.Summary.NotInReport, "unmatched and unknown-group rows plus the re-allocated and prepaid rows")
	assert.Equal(t, 1, result.Categories[audit.UnknownClassification])
	assert.Zero(t, result.Summary.MissingCustomer)

	log, err := os.ReadFile(result.AuditLog)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.out, "payments_ProcessingLog.txt"), result.AuditLog)
	assert.Contains(t, string(log), "Run ID:     00000000-0000-0000-0000-000000000001")
	assert.Contains(t, string(log), "NOT-IN-REPORT (4)")
	assert.Contains(t, string(log), "INV99999: row 5: not in combined invoice report")
	assert.Contains(t, string(log), "INV40004: row 8 produced no output record")
	assert.NotContains(t, string(log), "INV10001: row 4 produced no output record")
}

func TestRunPaymentsZeroShare(t *testing.T) {
	f := newFixture(t)
	writeCSV(t, filepath.Join(f.cfg.InputDir, "reference.csv"), [][]string{
		referenceRows[0],
		{"INV50005", "DHL Express", "100"},
		{"INV50005", "FedEx Ground", "0"},
	})
	writeCSV(t, filepath.Join(f.cfg.InputDir, "transactions.csv"), [][]string{
		transactionRows[0],
		{"100.00", "1234", "", "INV50005", "C1", "Acme", "", "03/10/2025"},
		{"0.00", "2222", "", "INV50005", "C1", "Acme", "", "03/10/2025"},
	})

	result := f.run(t, config.ReportPayments)

	ils := readOutput(t, filepath.Join(f.out, "ILS_payments_wk.csv"))
	assert.Equal(t, []string{"100.00", "0.00"}, column(ils, "AMOUNT"))
	ship := readOutput(t, filepath.Join(f.out, "SHIP_payments_wk.csv"))
	assert.Equal(t, []string{"0.00", "0.00"}, column(ship, "AMOUNT"))

	// One entry for the zero FedEx share, one for the zero payment itself.
	assert.Equal(t, 2, result.Categories[audit.ZeroAmount])
	assert.Zero(t, result.Summary.NotInReport)

	log, err := os.ReadFile(result.AuditLog)
	require.NoError(t, err)
	assert.Contains(t, string(log), "INV50005: row 2: FedEx Ground share of 100.00 is zero")
	assert.Contains(t, string(log), "row 3: amount is zero")
}

func TestRunPaymentsMissingCustomer(t *testing.T) {
	f := newFixture(t)
	writeCSV(t, filepath.Join(f.cfg.InputDir, "customers.csv"), customerRows[:2])

	result := f.run(t, config.ReportPayments)

	ship := readOutput(t, filepath.Join(f.out, "SHIP_payments_wk.csv"))
	assert.Equal(t, []string{"Acme Corp", "N/A"}, column(ship, "CUSTOMER"))
	assert.Equal(t, 1, result.Summary.MissingCustomer)
}

func TestRunCardFee(t *testing.T) {
	f := newFixture(t)
	f.cfg.TransactionsFile = "fees.csv"
	result := f.run(t, config.ReportCardFee)

	ils := readOutput(t, filepath.Join(f.out, "ILS_ccfee_wk.csv"))
	assert.Equal(t, IncomeColumns, ils.Headers)
	require.Equal(t, 1, ils.Len())
	assert.Equal(t, map[string]string{
		"CUST NO":       "C1",
		"INV NO":        "CCINV10001",
		"CUSTOMER":      "Acme",
		"MEMO INV ITEM": "CC-Fee paid by customer",
		"DATE":          "03/10/2025",
		"TERMS":         "NET 15",
		"ACCOUNT":       "MERCHANT FEE",
		"AMOUNT":        "1.80",
		"REP":           "",
	}, ils.Rows[0])

	ship := readOutput(t, filepath.Join(f.out, "SHIP_ccfee_wk.csv"))
	assert.Equal(t, []string{"1.20"}, column(ship, "AMOUNT"))

	assert.Equal(t, 1, result.Categories[audit.MarkupMismatch])
	assert.Equal(t, 1, result.Summary.Matched)
}

func TestRunCardFeeKeepsEveryRow(t *testing.T) {
	f := newFixture(t)
	writeCSV(t, filepath.Join(f.cfg.InputDir, "fees.csv"), [][]string{
		feeRows[0],
		{"103.00", "", "", "INV10001", "C1", "Acme", "Re-allocated from INV20002", "03/10/2025", "100.00"},
	})
	f.cfg.TransactionsFile = "fees.csv"
	result := f.run(t, config.ReportCardFee)

	ils := readOutput(t, filepath.Join(f.out, "ILS_ccfee_wk.csv"))
	assert.Equal(t, []string{"1.80"}, column(ils, "AMOUNT"))
	ship := readOutput(t, filepath.Join(f.out, "SHIP_ccfee_wk.csv"))
	assert.Equal(t, []string{"1.20"}, column(ship, "AMOUNT"))

	assert.Zero(t, result.Summary.Excluded)
	assert.Equal(t, 1, result.Summary.Matched)
}

func TestRunCardFeeNeedsInvoiceTotal(t *testing.T) {
	f := newFixture(t)
	p, err := New(f.cfg)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), config.ReportCardFee, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, csvparser.ErrMissingColumn)
	assert.NoFileExists(t, filepath.Join(f.out, "ILS_ccfee_wk.csv"))
}

// =============================================================================
// EDI REPORTS
// =============================================================================

func TestRunILSIncome(t *testing.T) {
	f := newFixture(t)
	result := f.run(t, config.ReportILSIncome)

	path := filepath.Join(f.out, "ILS_ils-income_wk.csv")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\xef\xbb\xbf", string(raw[:3]))

	data := readOutput(t, path)
	require.Equal(t, 1, data.Len())
	assert.Equal(t, map[string]string{
		"CUST NO":       "10000001",
		"INV NO":        "2345YB15",
		"CUSTOMER":      "Acme Corp",
		"MEMO INV ITEM": "DHL | AIRBILL# 1234567890 | DATE 03/02/2025",
		"DATE":          "02/15/2024",
		"TERMS":         "NET 30",
		"ACCOUNT":       "DHL SALES",
		"AMOUNT":        "120.00",
		"REP":           "JSMITH01",
	}, data.Rows[0])

	assert.Equal(t, 10, result.Summary.Input)
	assert.Equal(t, 3, result.Summary.Excluded)
	assert.Equal(t, 1, result.Summary.MissingCustomer)
	assert.Equal(t, 1, result.Summary.Matched)
}

func TestRunILSBills(t *testing.T) {
	f := newFixture(t)
	result := f.run(t, config.ReportILSBills)

	data := readOutput(t, filepath.Join(f.out, "ILS_ils-bills_wk.csv"))
	assert.Equal(t, BillColumns, data.Headers)
	assert.Equal(t, []string{"A050", "C100"}, column(data, "BILL NO"))
	assert.Equal(t, []string{"Invalid Date", "02/15/2024"}, column(data, "DATE"))
	assert.Equal(t, []string{"DHL COST FJ", "DHL COST"}, column(data, "ACCOUNT"))
	assert.Equal(t, []string{"ADOE", "JSMIT"}, column(data, "CLASS"))
	assert.Equal(t, []string{"DHL EXPRESS", "DHL EXPRESS"}, column(data, "VENDOR"))
	assert.Equal(t, "DHL | AIRBILL# 1234567890 | Express", data.Rows[1]["MEMO BILL ITEM"])
	assert.Equal(t, []string{"10.00", "80.00"}, column(data, "AMOUNT"))

	assert.Equal(t, 2, result.Summary.Excluded)
	assert.Equal(t, 1, result.Summary.MissingCustomer)
	assert.Equal(t, 1, result.Categories[audit.InvalidDate])
}

func TestRunShipIncome(t *testing.T) {
	f := newFixture(t)
	result := f.run(t, config.ReportShipIncome)

	data := readOutput(t, filepath.Join(f.out, "SHIP_ship-income_wk.csv"))
	require.Equal(t, 4, data.Len())
	assert.Equal(t, []string{"10000001", "10000099", "50000002", "10000001"}, column(data, "CUST NO"))
	assert.Equal(t, []string{"12.50", "40.00", "20.00", "0.00"}, column(data, "AMOUNT"))
	assert.Equal(t, []string{
		"FEDEX SALES (ENGLAND LOGISTICS)", "FREIGHT & OTHER", "FEDEX SALES (DESCARTE)", "UPS SALES",
	}, column(data, "ACCOUNT"))
	assert.Equal(t, []string{"09/15/2024", "03/01/2024", "01/05/2025", "Invalid Date"}, column(data, "DATE"))

	assert.Equal(t, "FedEx | AIRBILL# 123457000000 | DATE 03/01/2025", data.Rows[0]["MEMO INV ITEM"])
	assert.Equal(t, "FREIGHT (LTL) | AIRBILL# 555 | DATE N/A", data.Rows[1]["MEMO INV ITEM"])
	assert.Equal(t, "N/A", data.Rows[1]["CUSTOMER"])
	assert.Equal(t, "N/A", data.Rows[1]["TERMS"])
	assert.Equal(t, "NET 15", data.Rows[2]["TERMS"])

	assert.Equal(t, 1, result.Summary.Excluded)
	assert.Equal(t, 1, result.Summary.MissingCustomer)
	assert.Equal(t, 1, result.Categories[audit.UnknownClassification])
	assert.Equal(t, 1, result.Categories[audit.ZeroAmount])
	assert.Equal(t, 1, result.Categories[audit.InvalidDate])
}

func TestRunShipBills(t *testing.T) {
	f := newFixture(t)
	result := f.run(t, config.ReportShipBills)

	data := readOutput(t, filepath.Join(f.out, "SHIP_ship-bills_wk.csv"))
	assert.Equal(t, []string{"F500", "F800", "U900"}, column(data, "BILL NO"))
	assert.Equal(t, []string{"ENGLAND LOGISTICS", "DESCARTES", "UPS ENGLAND"}, column(data, "VENDOR"))
	assert.Equal(t, []string{"FEDEX COST (ENGLAND LOGISTICS)", "FEDEX COST (DESCARTES)", "UPS COST"}, column(data, "ACCOUNT"))
	assert.Equal(t, []string{
		"FedEx | AIRBILL# 123457000000 | Ground | England",
		"FedEx | AIRBILL# 888 | Home | RSIS",
		"UPS | AIRBILL# 999 | Ground | Mystery",
	}, column(data, "MEMO BILL ITEM"))
	assert.Equal(t, []string{"7.00", "15.00", "5.00"}, column(data, "AMOUNT"))

	assert.Equal(t, 1, result.Summary.Excluded)
	assert.Equal(t, 1, result.Categories[audit.UnknownClassification])
	assert.Equal(t, 3, result.Summary.Matched)
}

// edgeShipments covers the customer-number and carrier-invoice filters and
// a shipment without an invoice number.
func edgeShipments(t *testing.T, f fixture) {
	t.Helper()
	writeCSV(t, filepath.Join(f.cfg.InputDir, "shipments.csv"), [][]string{
		shipmentHeader,
		shipment("FedEx", "England", "10000001", "Acme", "D500", "77700000YJ15", "03/01/2025", "501", "Ground", "JSMITH01", "0", "7.00", "10.00", ""),
		shipment("UPS", "", "100032175", "Sub Co", "U610", "66600000YJ15", "03/01/2025", "610", "Ground", "", "0", "3.00", "5.00", ""),
		shipment("FedEx", "", "10000001", "Acme", "F520", "", "03/02/2025", "520", "Home", "JSMITH01", "0", "4.00", "6.00", ""),
	})
	writeCSV(t, filepath.Join(f.cfg.InputDir, "customers.csv"),
		append(append([][]string(nil), customerRows...), []string{"100032175", "Sub Co", "30", "ADOE"}))
}

func TestRunShipIncomeFilters(t *testing.T) {
	f := newFixture(t)
	edgeShipments(t, f)
	result := f.run(t, config.ReportShipIncome)

	data := readOutput(t, filepath.Join(f.out, "SHIP_ship-income_wk.csv"))
	assert.Equal(t, []string{"10000001", "10000001"}, column(data, "CUST NO"))
	assert.Equal(t, []string{"0000YJ15", "N/A"}, column(data, "INV NO"))
	assert.Equal(t, []string{"09/15/2024", "N/A"}, column(data, "DATE"))

	assert.Equal(t, 1, result.Summary.Excluded, "sub-account of an excluded customer number")
	assert.Equal(t, 1, result.Categories[audit.InvalidDate])
}

func TestRunShipBillsFilters(t *testing.T) {
	f := newFixture(t)
	edgeShipments(t, f)
	result := f.run(t, config.ReportShipBills)

	data := readOutput(t, filepath.Join(f.out, "SHIP_ship-bills_wk.csv"))
	assert.Equal(t, []string{"F520", "U610"}, column(data, "BILL NO"))
	assert.Equal(t, []string{"10000001", "100032175"}, column(data, "CUST NO"))

	assert.Equal(t, 1, result.Summary.Excluded, "carrier invoice starting with D")
	assert.Equal(t, 2, result.Summary.Matched)
}

// =============================================================================
// RUN OPTIONS
// =============================================================================

func TestRunDryRunWritesNothing(t *testing.T) {
	f := newFixture(t)
	p, err := New(f.cfg)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), config.ReportPayments, true)
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Empty(t, result.OutputFiles)
	assert.Empty(t, result.AuditLog)
	assert.Equal(t, 3, result.Summary.Excluded)
	assert.NoDirExists(t, f.out)
}

func TestRunXLSXAndHistory(t *testing.T) {
	f := newFixture(t)
	f.cfg.OutputFormat = "xlsx"
	result := f.run(t, config.ReportPayments)
	require.Equal(t, []string{filepath.Join(f.out, "ALL_payments_wk.xlsx")}, result.OutputFiles)

	p, err := New(f.cfg, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	history, err := p.History(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "600.00", history.Row.ILS.StringFixed(2))
	assert.Equal(t, "650.00", history.Row.SHIP.StringFixed(2))
	assert.Equal(t, []string{filepath.Join(f.out, "Report", "Payment_Report.xlsx")}, history.Archived)
	assert.FileExists(t, history.Archived[0])
}

func TestHistoryCSV(t *testing.T) {
	f := newFixture(t)
	f.run(t, config.ReportPayments)

	p, err := New(f.cfg, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	history, err := p.History(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(f.cfg.HistoryFile)
	require.NoError(t, err)
	assert.Equal(t, "Date,Total Amount,ILS,SHIP\n2025-03-17,1250.00,600.00,650.00\n", string(data))

	assert.Equal(t, []string{
		filepath.Join(f.out, "Report", "ILS_Payment_Report.csv"),
		filepath.Join(f.out, "Report", "SHIP_Payment_Report.csv"),
	}, history.Archived)
	assert.FileExists(t, filepath.Join(f.out, "ILS_payments_wk.csv"))
}

func TestHistoryNeedsPaymentReports(t *testing.T) {
	f := newFixture(t)
	p, err := New(f.cfg)
	require.NoError(t, err)

	_, err = p.History(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run the payments report first")
	assert.NoFileExists(t, f.cfg.HistoryFile)
}

func TestOutputNameCollision(t *testing.T) {
	f := newFixture(t)
	f.cfg.OutputNameFormat = "{report}_{week}"
	p, err := New(f.cfg)
	require.NoError(t, err)

	_, err = p.Run(context.Background(), config.ReportPayments, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add {group}")
}

// =============================================================================
// FEEDS AND HELPERS
// =============================================================================

func TestLoadTableXLSX(t *testing.T) {
	f := newFixture(t)
	f.cfg.OutputFormat = "xlsx"
	result := f.run(t, config.ReportCleaned)

	data, err := LoadTable(result.OutputFiles[0], f.cfg.CSVSettings)
	require.NoError(t, err)
	assert.Equal(t, CleanedColumns, data.Headers)
	assert.Equal(t, 6, data.Len())
}

func TestFeedsForAndValidateFeeds(t *testing.T) {
	f := newFixture(t)

	feeds := FeedsFor(f.cfg, config.ReportShipIncome)
	require.Len(t, feeds, 2)
	assert.Equal(t, "shipments with charges", feeds[1].Schema.Name)

	all := FeedsFor(f.cfg, "")
	assert.Len(t, all, 4)

	checks := ValidateFeeds(f.cfg, config.ReportCardFee)
	require.Len(t, checks, 2)
	require.NoError(t, checks[0].Err)
	assert.True(t, checks[0].Result.IsValid)
	require.NoError(t, checks[1].Err)
	assert.False(t, checks[1].Result.IsValid, "transactions feed lacks Invoice Total")

	f.cfg.ShipmentsFile = ""
	checks = ValidateFeeds(f.cfg, config.ReportShipBills)
	assert.Error(t, checks[1].Err)
}

func TestCustomerKeyAndAirbill(t *testing.T) {
	assert.Equal(t, "10003217", CustomerKey("10003217.0"))
	assert.Equal(t, "10003217", CustomerKey("1.0003217E7"))
	assert.Equal(t, "00123", CustomerKey(" 00123 "))
	assert.Equal(t, "ABC.1", CustomerKey("ABC.1"))

	assert.Equal(t, "123457000000", ExpandAirbill("1.23457E+11"))
	assert.Equal(t, "1234567890", ExpandAirbill("1234567890"))
	assert.Equal(t, "ABCDE", ExpandAirbill("ABCDE"))
}

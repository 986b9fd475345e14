// Package reference builds the read-only lookup tables of a batch: the
// combined invoice report (invoice id -> allocation lines) and the customer
// list (customer id -> customer).
package reference

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/carrierledger/weekly-recon/internal/audit"
	"github.com/carrierledger/weekly-recon/internal/csvparser"
	"github.com/carrierledger/weekly-recon/internal/types"
)

// Combined invoice report columns.
const (
	ColInvoiceNumber = "Invoice Number"
	ColTag           = "Column B"
	ColPercentage    = "Percentage of Total (%)"
)

// Customer list columns.
const (
	ColCustomerID = "Customer Id"
	ColCustomer   = "Customer"
	ColTerms      = "Inv Terms"
	ColSalesRep   = "Customer Salesrep"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)

	percentReplacer = strings.NewReplacer("%", "", "$", "", ",", "", " ", "", "\t", "", "\u00a0", "")
)

// InvoiceTable maps an invoice id to its allocation lines in file order.
type InvoiceTable struct {
	lines map[string][]types.AllocationLine
}

// Diagnostic reports an invoice whose allocation percentages do not sum to 1.
type Diagnostic struct {
	InvoiceID string
	Sum       decimal.Decimal
}

// LoadInvoices builds the invoice table from the combined invoice report.
// Rows without an invoice number are skipped. Rows whose percentage cannot
// be parsed produce no line and a data-quality entry.
func LoadInvoices(feed *csvparser.CSVData, aud *audit.Auditor) (*InvoiceTable, error) {
	if err := feed.RequireColumns(ColInvoiceNumber, ColTag, ColPercentage); err != nil {
		return nil, err
	}

	t := &InvoiceTable{lines: make(map[string][]types.AllocationLine)}
	for i, row := range feed.Rows {
		id := strings.TrimSpace(row[ColInvoiceNumber])
		if id == "" {
			continue
		}

		pct, err := NormalizePercentage(row[ColPercentage])
		if err != nil {
			aud.Recordf(audit.DataQuality, id, "row %d: %v", feed.RowNumbers[i], err)
			continue
		}

		t.lines[id] = append(t.lines[id], types.AllocationLine{
			InvoiceID:  id,
			Tag:        strings.TrimSpace(row[ColTag]),
			Percentage: pct,
			Row:        feed.RowNumbers[i],
		})
	}
	return t, nil
}

// NormalizePercentage parses a percentage cell into a fraction. Values
// above 1 are whole-number percentages and are divided by 100.
func NormalizePercentage(s string) (decimal.Decimal, error) {
	cleaned := percentReplacer.Replace(s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty percentage")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid percentage %q", s)
	}

	if d.GreaterThan(one) {
		d = d.Div(hundred)
	}
	return d, nil
}

// Lines returns the allocation lines of id, or nil.
func (t *InvoiceTable) Lines(id string) []types.AllocationLine {
	return t.lines[id]
}

// Len returns the number of distinct invoice ids.
func (t *InvoiceTable) Len() int {
	return len(t.lines)
}

// PercentSum returns the sum of the percentages of id's lines.
func (t *InvoiceTable) PercentSum(id string) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range t.lines[id] {
		sum = sum.Add(l.Percentage)
	}
	return sum
}

// Diagnostics lists, sorted by id, every invoice whose percentages do not
// sum to exactly 1. The table is not modified.
func (t *InvoiceTable) Diagnostics() []Diagnostic {
	var out []Diagnostic
	for id := range t.lines {
		if sum := t.PercentSum(id); !sum.Equal(one) {
			out = append(out, Diagnostic{InvoiceID: id, Sum: sum})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceID < out[j].InvoiceID })
	return out
}

// Directory is the customer list keyed by customer id.
type Directory struct {
	byID map[string]types.Customer
}

// LoadCustomers builds the customer directory. A repeated id keeps the last
// row. Terms and sales rep columns are optional.
func LoadCustomers(feed *csvparser.CSVData) (*Directory, error) {
	if err := feed.RequireColumns(ColCustomerID, ColCustomer); err != nil {
		return nil, err
	}

	d := &Directory{byID: make(map[string]types.Customer, feed.Len())}
	for _, row := range feed.Rows {
		id := strings.TrimSpace(row[ColCustomerID])
		if id == "" {
			continue
		}
		d.byID[id] = types.Customer{
			ID:       id,
			Name:     row[ColCustomer],
			Terms:    row[ColTerms],
			SalesRep: row[ColSalesRep],
		}
	}
	return d, nil
}

// Lookup returns the customer with the given id.
func (d *Directory) Lookup(id string) (types.Customer, bool) {
	c, ok := d.byID[strings.TrimSpace(id)]
	return c, ok
}

// Len returns the number of customers.
func (d *Directory) Len() int {
	return len(d.byID)
}

// Terms formats the payment terms of c as "NET nn" from the first two
// characters of its terms code, or "NET" when the code is empty.
func Terms(c types.Customer) string {
	code := strings.TrimSpace(c.Terms)
	if code == "" {
		return "NET"
	}
	if r := []rune(code); len(r) > 2 {
		code = string(r[:2])
	}
	return "NET " + code
}

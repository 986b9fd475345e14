package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/carrierledger/weekly-recon/internal/allocation"
	"github.com/carrierledger/weekly-recon/internal/audit"
	"github.com/carrierledger/weekly-recon/internal/classify"
	"github.com/carrierledger/weekly-recon/internal/normalize"
	"github.com/carrierledger/weekly-recon/internal/reference"
	"github.com/carrierledger/weekly-recon/internal/report"
	"github.com/carrierledger/weekly-recon/internal/types"
	"github.com/carrierledger/weekly-recon/internal/validation"
)

// BillColumns is the layout of the ILS and SHIP bill uploads.
var BillColumns = []string{
	"DATE", "CUST NO", "CUSTOMER", "CLASS", "BILL NO", "VENDOR",
	"MEMO BILL ITEM", "AMOUNT", "ACCOUNT",
}

// =============================================================================
// ILS INCOME
// =============================================================================

// buildILSIncome invoices ILS-carrier shipments to known customers with
// numeric customer numbers below the configured bound.
func (r *run) buildILSIncome(ctx context.Context) (*output, error) {
	customers, ships, err := r.loadEDI(ctx, validation.ShipmentsFeed)
	if err != nil {
		return nil, err
	}

	rule := r.cfg.Rules.EDI
	bound := decimal.NewFromInt(rule.ILSMaxCustomerNumber)
	table := report.NewTable(GroupILS, IncomeColumns...)

	for _, s := range ships {
		if s.Carrier != rule.ILSCarrier {
			continue
		}
		id := shipmentID(s)

		no, err := decimal.NewFromString(s.CustomerNumber)
		if err != nil || !no.IsInteger() || !no.LessThan(bound) {
			r.aud.Recordf(audit.ExcludedRecord, id, "row %d: customer number %q is not a number below %d",
				s.Row, s.CustomerNumber, rule.ILSMaxCustomerNumber)
			continue
		}
		if r.excludedInvoice(s, id) {
			continue
		}

		custNo := CustomerKey(s.CustomerNumber)
		c, ok := r.knownCustomer(customers, s, custNo, id)
		if !ok {
			continue
		}

		invNo, date := r.invoiceDate(s, id)
		amount := r.ediAmount(s, id, s.CustomerTotal)
		res := r.classifier.Resolve(s.Carrier, s.SubCarrier)

		table.Append(
			custNo,
			invNo,
			c.Name,
			fmt.Sprintf("%s | AIRBILL# %s | DATE %s", res.MemoLabel, ExpandAirbill(s.AirbillNumber), orNotAvailable(s.ShipDate)),
			date,
			reference.Terms(c),
			res.SalesAccount,
			amount.StringFixed(2),
			c.SalesRep,
		)
		r.aud.CountMatched(1)
	}

	return &output{tables: []*report.Table{table}, bom: true}, nil
}

// =============================================================================
// ILS BILLS
// =============================================================================

// buildILSBills produces the ILS carrier bills, with the cost account
// chosen by customer-number prefix.
func (r *run) buildILSBills(ctx context.Context) (*output, error) {
	customers, ships, err := r.loadEDI(ctx, validation.ShipmentsFeed)
	if err != nil {
		return nil, err
	}

	rule := r.cfg.Rules.EDI
	table := report.NewTable(GroupILS, BillColumns...)

	for _, s := range ships {
		if s.Carrier != rule.ILSCarrier {
			continue
		}
		id := shipmentID(s)

		if r.excludedInvoice(s, id) {
			continue
		}
		if name, ok := hasAnyPrefix(s.CustomerName, rule.ExcludedCustomerNames); ok {
			r.aud.Recordf(audit.ExcludedRecord, id, "row %d: customer name starts with %q", s.Row, name)
			continue
		}

		custNo := CustomerKey(s.CustomerNumber)
		c, ok := r.knownCustomer(customers, s, custNo, id)
		if !ok {
			continue
		}

		account, known := r.classifier.CostAccountByPrefix(custNo)
		if !known {
			r.aud.Recordf(audit.UnknownClassification, custNo, "row %d: no cost account for customer number prefix", s.Row)
		}

		_, date := r.invoiceDate(s, id)
		amount := r.ediAmount(s, id, s.CarrierCostTotal)
		res := r.classifier.Resolve(s.Carrier, s.SubCarrier)

		table.Append(
			date,
			custNo,
			c.Name,
			r.class(s, c),
			s.CarrierInvoice,
			res.Vendor,
			fmt.Sprintf("%s | AIRBILL# %s | %s", res.MemoLabel, ExpandAirbill(s.AirbillNumber), s.ServiceType),
			amount.StringFixed(2),
			account,
		)
		r.aud.CountMatched(1)
	}

	report.Sort(table, "BILL NO")
	return &output{tables: []*report.Table{table}, bom: true}, nil
}

// =============================================================================
// SHIP INCOME
// =============================================================================

// buildShipIncome invoices the SHIP carriers. The amount is the customer
// base plus the eight charge columns. Unknown customers are kept with N/A
// customer fields.
func (r *run) buildShipIncome(ctx context.Context) (*output, error) {
	customers, ships, err := r.loadEDI(ctx, validation.ShipmentChargesFeed)
	if err != nil {
		return nil, err
	}

	rule := r.cfg.Rules.EDI
	table := report.NewTable(GroupSHIP, IncomeColumns...)

	for _, s := range ships {
		if !contains(rule.IncomeCarriers, s.Carrier) {
			continue
		}
		id := shipmentID(s)
		custNo := CustomerKey(s.CustomerNumber)

		if r.excludedCustomer(s, custNo, id, strings.HasPrefix) {
			continue
		}

		name, terms, rep := notAvailable, notAvailable, notAvailable
		if c, ok := customers.Lookup(custNo); ok {
			name, terms, rep = c.Name, reference.Terms(c), c.SalesRep
		} else {
			r.aud.Recordf(audit.MissingCustomer, custNo, "row %d: customer number not in customer list", s.Row)
		}

		invNo, date := r.invoiceDate(s, id)
		amount := r.chargeTotal(s, id)
		res := r.resolve(s)

		table.Append(
			custNo,
			invNo,
			name,
			fmt.Sprintf("%s | AIRBILL# %s | DATE %s", res.MemoLabel, ExpandAirbill(s.AirbillNumber), orNotAvailable(s.ShipDate)),
			date,
			terms,
			res.SalesAccount,
			amount.StringFixed(2),
			rep,
		)
		r.aud.CountMatched(1)
	}

	return &output{tables: []*report.Table{table}, bom: true}, nil
}

// =============================================================================
// SHIP BILLS
// =============================================================================

// buildShipBills produces the SHIP carrier bills. Vendor and cost account
// follow the sub-carrier.
func (r *run) buildShipBills(ctx context.Context) (*output, error) {
	customers, ships, err := r.loadEDI(ctx, validation.ShipmentsFeed)
	if err != nil {
		return nil, err
	}

	rule := r.cfg.Rules.EDI
	table := report.NewTable(GroupSHIP, BillColumns...)

	for _, s := range ships {
		if !contains(rule.BillCarriers, s.Carrier) {
			continue
		}
		id := shipmentID(s)
		custNo := CustomerKey(s.CustomerNumber)

		if r.excludedInvoice(s, id) {
			continue
		}
		if r.excludedCustomer(s, custNo, id, equal) {
			continue
		}
		c, ok := r.knownCustomer(customers, s, custNo, id)
		if !ok {
			continue
		}

		_, date := r.invoiceDate(s, id)
		amount := r.ediAmount(s, id, s.CarrierCostTotal)
		res := r.resolve(s)

		table.Append(
			date,
			custNo,
			c.Name,
			r.class(s, c),
			s.CarrierInvoice,
			res.Vendor,
			fmt.Sprintf("%s | AIRBILL# %s | %s | %s", res.MemoLabel, ExpandAirbill(s.AirbillNumber), s.ServiceType, res.SubCarrier),
			amount.StringFixed(2),
			res.CostAccount,
		)
		r.aud.CountMatched(1)
	}

	report.Sort(table, "BILL NO")
	return &output{tables: []*report.Table{table}, bom: true}, nil
}

// =============================================================================
// SHARED EDI STEPS
// =============================================================================

func (r *run) loadEDI(ctx context.Context, schema validation.FeedSchema) (*reference.Directory, []types.ShipmentRecord, error) {
	customers, err := r.loadCustomers(ctx)
	if err != nil {
		return nil, nil, err
	}
	ships, err := r.loadShipments(ctx, schema)
	if err != nil {
		return nil, nil, err
	}
	return customers, ships, nil
}

// excludedInvoice drops carrier invoices with the excluded prefix.
func (r *run) excludedInvoice(s types.ShipmentRecord, id string) bool {
	prefix := r.cfg.Rules.EDI.ExcludedInvoicePrefix
	if prefix != "" && strings.HasPrefix(s.CarrierInvoice, prefix) {
		r.aud.Recordf(audit.ExcludedRecord, id, "row %d: carrier invoice %q starts with %q", s.Row, s.CarrierInvoice, prefix)
		return true
	}
	return false
}

// excludedCustomer drops the configured customer numbers. Income excludes
// every number starting with one of them, bills only the numbers themselves.
func (r *run) excludedCustomer(s types.ShipmentRecord, custNo, id string, match func(custNo, excluded string) bool) bool {
	for _, ex := range r.cfg.Rules.EDI.ExcludedCustomerNumbers {
		if ex != "" && match(custNo, ex) {
			r.aud.Recordf(audit.ExcludedRecord, id, "row %d: customer number %s is excluded (%s)", s.Row, custNo, ex)
			return true
		}
	}
	return false
}

// knownCustomer looks the customer up, recording a missing one.
func (r *run) knownCustomer(customers *reference.Directory, s types.ShipmentRecord, custNo, id string) (types.Customer, bool) {
	c, ok := customers.Lookup(custNo)
	if !ok {
		r.aud.Recordf(audit.MissingCustomer, custNo, "row %d: customer number not in customer list (%s)", s.Row, id)
	}
	return c, ok
}

// resolve classifies the carrier and records unknown sub-carriers.
func (r *run) resolve(s types.ShipmentRecord) classify.Resolution {
	res := r.classifier.Resolve(s.Carrier, s.SubCarrier)
	if res.UnknownSubCarrier {
		r.aud.Recordf(audit.UnknownClassification, classify.Unknown,
			"row %d: sub-carrier %q of %s has no rule; carrier defaults used", s.Row, res.SubCarrier, s.Carrier)
	}
	return res
}

// invoiceDate returns INV NO (the trailing characters of the invoice
// number) and the date it encodes, recording missing and invalid dates.
func (r *run) invoiceDate(s types.ShipmentRecord, id string) (string, string) {
	invNo := allocation.TrimID(strings.TrimSpace(s.InvoiceNumber), r.cfg.Rules.EDI.InvoiceNumberLength)
	date, status := r.dates.Format(invNo)
	if status != classify.DateValid {
		r.aud.Recordf(audit.InvalidDate, id, "row %d: invoice number %q has a %s date", s.Row, s.InvoiceNumber, status)
	}
	return orNotAvailable(invNo), date
}

// ediAmount parses an amount column, recording bad and zero values.
func (r *run) ediAmount(s types.ShipmentRecord, id, value string) decimal.Decimal {
	amount, err := normalize.ParseAmount(value)
	if err != nil {
		r.aud.Recordf(audit.DataQuality, id, "row %d: %v", s.Row, err)
		return amount
	}
	if amount.IsZero() {
		r.aud.Recordf(audit.ZeroAmount, id, "row %d: amount is zero", s.Row)
	}
	return amount
}

// chargeTotal sums the customer base and charge columns. Blank charges
// count as zero.
func (r *run) chargeTotal(s types.ShipmentRecord, id string) decimal.Decimal {
	total := decimal.Zero
	for i, v := range s.Charges {
		if strings.TrimSpace(v) == "" {
			continue
		}
		amount, err := normalize.ParseAmount(v)
		if err != nil {
			r.aud.Recordf(audit.DataQuality, id, "row %d: %s: %v", s.Row, validation.ChargeColumns[i], err)
			continue
		}
		total = total.Add(amount)
	}
	if total.IsZero() {
		r.aud.Recordf(audit.ZeroAmount, id, "row %d: charges total zero", s.Row)
	}
	return total
}

// class is the leading characters of the sales rep, from the feed or else
// the customer list.
func (r *run) class(s types.ShipmentRecord, c types.Customer) string {
	rep := s.SalesRep
	if rep == "" {
		rep = strings.TrimSpace(c.SalesRep)
	}
	if n := r.cfg.Rules.EDI.ClassLength; len(rep) > n {
		return rep[:n]
	}
	return rep
}

// =============================================================================
// HELPERS
// =============================================================================

// CustomerKey normalizes a customer number as exported by spreadsheets:
// "10003217.0" and "1.0003217E7" both become "10003217". Values that are
// not whole numbers are returned trimmed, and so are plain digit strings.
func CustomerKey(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return s
	}
	return d.String()
}

// ExpandAirbill rewrites airbill numbers in scientific notation as integers.
func ExpandAirbill(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, "eE") {
		return s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return d.StringFixed(0)
}

// shipmentID identifies a shipment in the audit log.
func shipmentID(s types.ShipmentRecord) string {
	if a := ExpandAirbill(s.AirbillNumber); a != "" {
		return a
	}
	return s.CarrierInvoice
}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func equal(a, b string) bool { return a == b }

func hasAnyPrefix(s string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return p, true
		}
	}
	return "", false
}

package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/carrierledger/weekly-recon/internal/allocation"
	"github.com/carrierledger/weekly-recon/internal/audit"
	"github.com/carrierledger/weekly-recon/internal/classify"
	"github.com/carrierledger/weekly-recon/internal/normalize"
	"github.com/carrierledger/weekly-recon/internal/reference"
	"github.com/carrierledger/weekly-recon/internal/report"
	"github.com/carrierledger/weekly-recon/internal/types"
	"github.com/carrierledger/weekly-recon/internal/validation"
)

// Report column layouts.
var (
	CleanedColumns = []string{
		"Amount", "Column B", "Check #", "Payment Date", "Customer Id",
		"Customer", "Invoice Id(s)", "Notes", "Payment Method",
	}
	PaymentColumns = []string{
		"CUSTOMER", "REF NO", "DATE", "PAYMENT METHOD", "APPLY_TO_INVOICE",
		"AMOUNT", "DEPOSIT TO", "MEMO",
	}
	IncomeColumns = []string{
		"CUST NO", "INV NO", "CUSTOMER", "MEMO INV ITEM", "DATE", "TERMS",
		"ACCOUNT", "AMOUNT", "REP",
	}
)

// cleanedGroupBy are the columns that start a new block in the cleaned layout.
var cleanedGroupBy = []string{"Payment Date", "Payment Method"}

// notAvailable fills customer fields that could not be resolved.
const notAvailable = "N/A"

// =============================================================================
// NORMALIZATION
// =============================================================================

// normalizeAll applies the exclusion rules and returns the kept rows.
// Excluded rows and row-level parse problems are recorded. Zero amounts are
// recorded when auditZero is set.
func (r *run) normalizeAll(raws []types.RawTransaction, opts normalize.Options, auditZero bool) []types.NormalizedTransaction {
	kept := make([]types.NormalizedTransaction, 0, len(raws))
	for _, raw := range raws {
		tx, decision := normalize.Normalize(raw, opts)
		id := strings.TrimSpace(raw.InvoiceIDs)

		if !decision.Keep() {
			r.aud.Recordf(audit.ExcludedRecord, id, "row %d: %s", raw.Row, decision.Reason)
			continue
		}
		for _, issue := range decision.Issues {
			r.aud.Recordf(audit.DataQuality, id, "row %d: %s", raw.Row, issue)
		}
		if auditZero && len(decision.Issues) == 0 && tx.Amount.IsZero() {
			r.aud.Recordf(audit.ZeroAmount, id, "row %d: amount is zero", raw.Row)
		}
		kept = append(kept, tx)
	}

	r.log.Debug().
		Int("kept", len(kept)).
		Int("excluded", len(raws)-len(kept)).
		Msg("Normalized transactions")
	return kept
}

// auditZeroShares records derived records that come to $0.00. A payment
// that is itself zero was already recorded by normalizeAll.
func (r *run) auditZeroShares(tx types.NormalizedTransaction, records []types.DerivedPaymentRecord) {
	if tx.Amount.IsZero() {
		return
	}
	for _, rec := range records {
		if rec.Amount.IsZero() {
			r.aud.Recordf(audit.ZeroAmount, rec.InvoiceID, "row %d: %s share of %s is zero",
				tx.Raw.Row, rec.Tag, tx.Amount.StringFixed(2))
		}
	}
}

// =============================================================================
// CLEANED DATA REPORT
// =============================================================================

// buildCleaned lists every derived record, unsplit fallbacks included,
// ordered by payment date, payment method and label.
func (r *run) buildCleaned(ctx context.Context) (*output, error) {
	invoices, err := r.loadInvoices(ctx)
	if err != nil {
		return nil, err
	}
	raws, err := r.loadTransactions(ctx, validation.TransactionsFeed)
	if err != nil {
		return nil, err
	}

	engine := allocation.New(invoices, r.aud, r.fee)
	kept := r.normalizeAll(raws, normalize.Options{ExcludeCardSettled: true}, true)

	var records []types.DerivedPaymentRecord
	for _, tx := range kept {
		if _, ok := normalize.ParsePaymentDate(tx.Raw.PaymentDate); !ok {
			r.aud.Recordf(audit.InvalidDate, strings.TrimSpace(tx.Raw.InvoiceIDs),
				"row %d: unparsable payment date %q", tx.Raw.Row, tx.Raw.PaymentDate)
		}

		derived := engine.Allocate(tx)
		if !derived[0].Unsplit {
			r.aud.CountMatched(1)
		}
		r.auditZeroShares(tx, derived)
		records = append(records, derived...)
	}

	sortCleaned(records)

	table := report.NewTable(GroupAll, CleanedColumns...)
	for _, rec := range records {
		raw := rec.Source.Raw
		table.Append(
			rec.Amount.StringFixed(2),
			rec.Tag,
			rec.Source.Label,
			raw.PaymentDate,
			raw.CustomerID,
			raw.CustomerName,
			rec.InvoiceID,
			raw.Notes,
			rec.Source.Method.String(),
		)
	}

	return &output{tables: []*report.Table{table}, groupBy: cleanedGroupBy}, nil
}

// sortCleaned orders records by parsed payment date, then payment method
// rank, then label. Unparsable dates sort after parsed ones, by raw text.
func sortCleaned(records []types.DerivedPaymentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Source, records[j].Source
		da, okA := normalize.ParsePaymentDate(a.Raw.PaymentDate)
		db, okB := normalize.ParsePaymentDate(b.Raw.PaymentDate)

		switch {
		case okA != okB:
			return okA
		case okA && !da.Equal(db):
			return da.Before(db)
		case !okA && a.Raw.PaymentDate != b.Raw.PaymentDate:
			return a.Raw.PaymentDate < b.Raw.PaymentDate
		}

		if ra, rb := a.Method.Rank(), b.Method.Rank(); ra != rb {
			return ra < rb
		}
		return a.Label < b.Label
	})
}

// =============================================================================
// PAYMENTS REPORT
// =============================================================================

// buildPayments produces the ILS and SHIP payment uploads. Fallback records
// and records whose tag matches no service group are not emitted.
func (r *run) buildPayments(ctx context.Context) (*output, error) {
	invoices, err := r.loadInvoices(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := r.loadCustomers(ctx)
	if err != nil {
		return nil, err
	}
	raws, err := r.loadTransactions(ctx, validation.TransactionsFeed)
	if err != nil {
		return nil, err
	}

	engine := allocation.New(invoices, r.aud, r.fee)
	kept := r.normalizeAll(raws, normalize.Options{
		ExcludeCardSettled: true,
		FoldCardMarker:     true,
		ExcludePrepaid:     true,
	}, true)

	var emitted []types.DerivedPaymentRecord

	for _, tx := range kept {
		customer := ""
		label := strings.TrimSpace(tx.Raw.CheckNumber)
		var contributed []types.DerivedPaymentRecord

		for _, rec := range engine.Allocate(tx) {
			if rec.Unsplit {
				continue
			}

			group, deposit := r.classifier.ServiceGroup(rec.Tag)
			if group == types.GroupUnknown {
				r.aud.Recordf(audit.UnknownClassification, rec.InvoiceID,
					"row %d: tag %q matches no service group", tx.Raw.Row, rec.Tag)
				continue
			}

			if customer == "" {
				customer = r.customerName(customers, tx.Raw)
			}

			ref, err := r.classifier.RefNumber(label, rec.InvoiceID)
			if err != nil {
				r.aud.Recordf(audit.DataQuality, rec.InvoiceID, "row %d: %v", tx.Raw.Row, err)
			}

			rec.Group = group
			rec.Account = deposit
			rec.CustomerName = customer
			rec.RefNumber = ref
			rec.ApplyToInvoice = classify.ApplyToInvoice(rec.InvoiceID)
			contributed = append(contributed, rec)
		}

		if len(contributed) > 0 {
			r.aud.CountMatched(1)
			r.auditZeroShares(tx, contributed)
			emitted = append(emitted, contributed...)
		}
	}

	missing := r.aud.NotInReport(raws, emitted)
	r.log.Debug().Int("not_in_report", missing).Msg("Checked raw rows against output")

	tables := map[types.ServiceGroup]*report.Table{
		types.GroupILS:  report.NewTable(GroupILS, PaymentColumns...),
		types.GroupSHIP: report.NewTable(GroupSHIP, PaymentColumns...),
	}
	for _, rec := range emitted {
		raw := rec.Source.Raw
		tables[rec.Group].Append(
			rec.CustomerName,
			rec.RefNumber,
			raw.PaymentDate,
			strings.TrimSpace(raw.CheckNumber),
			rec.ApplyToInvoice,
			rec.Amount.StringFixed(2),
			rec.Account,
			rec.Memo,
		)
	}

	return &output{tables: []*report.Table{tables[types.GroupILS], tables[types.GroupSHIP]}}, nil
}

// customerName resolves the display name of a payment's customer. Unknown
// customers are recorded and shown as N/A.
func (r *run) customerName(customers *reference.Directory, raw types.RawTransaction) string {
	if c, ok := customers.Lookup(raw.CustomerID); ok {
		return c.Name
	}
	r.aud.Recordf(audit.MissingCustomer, strings.TrimSpace(raw.CustomerID),
		"row %d: customer id not in customer list", raw.Row)
	return notAvailable
}

// =============================================================================
// CARD FEE REPORT
// =============================================================================

// buildCardFee produces the merchant fee invoices for card payments made at
// the configured markup over the invoice total.
func (r *run) buildCardFee(ctx context.Context) (*output, error) {
	invoices, err := r.loadInvoices(ctx)
	if err != nil {
		return nil, err
	}
	raws, err := r.loadTransactions(ctx, validation.CardFeeFeed)
	if err != nil {
		return nil, err
	}

	engine := allocation.New(invoices, r.aud, r.fee)
	kept := r.normalizeAll(raws, normalize.Options{KeepAll: true}, false)
	rule := r.cfg.Rules.CardFee

	tables := map[types.ServiceGroup]*report.Table{
		types.GroupILS:  report.NewTable(GroupILS, IncomeColumns...),
		types.GroupSHIP: report.NewTable(GroupSHIP, IncomeColumns...),
	}

	for _, tx := range kept {
		contributed := false
		fees := engine.AllocateFee(tx)
		r.auditZeroShares(tx, fees)
		for _, rec := range fees {
			group, _ := r.classifier.ServiceGroup(rec.Tag)
			if group == types.GroupUnknown {
				r.aud.Recordf(audit.UnknownClassification, rec.InvoiceID,
					"row %d: tag %q matches no service group", tx.Raw.Row, rec.Tag)
				continue
			}

			raw := tx.Raw
			tables[group].Append(
				strings.TrimSpace(raw.CustomerID),
				rule.InvoicePrefix+rec.InvoiceID,
				raw.CustomerName,
				rule.Memo,
				raw.PaymentDate,
				rule.Terms,
				rule.Account,
				rec.Amount.StringFixed(2),
				"",
			)
			contributed = true
		}
		if contributed {
			r.aud.CountMatched(1)
		}
	}

	return &output{tables: []*report.Table{tables[types.GroupILS], tables[types.GroupSHIP]}}, nil
}

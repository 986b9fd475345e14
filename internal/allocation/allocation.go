// Package allocation splits normalized payments across the allocation lines
// of the invoices they reference.
package allocation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/carrierledger/weekly-recon/internal/audit"
	"github.com/carrierledger/weekly-recon/internal/config"
	"github.com/carrierledger/weekly-recon/internal/normalize"
	"github.com/carrierledger/weekly-recon/internal/reference"
	"github.com/carrierledger/weekly-recon/internal/types"
)

// FeeSettings configures the credit-card-fee mode.
type FeeSettings struct {
	Markup     decimal.Decimal
	Tolerance  decimal.Decimal
	TrimLength int
}

// NewFeeSettings parses the configured fee rule.
func NewFeeSettings(rule config.CardFeeRule) (FeeSettings, error) {
	markup, err := decimal.NewFromString(rule.Markup)
	if err != nil {
		return FeeSettings{}, fmt.Errorf("invalid card fee markup %q: %w", rule.Markup, err)
	}
	tolerance, err := decimal.NewFromString(rule.Tolerance)
	if err != nil {
		return FeeSettings{}, fmt.Errorf("invalid card fee tolerance %q: %w", rule.Tolerance, err)
	}
	if rule.TrimLength <= 0 {
		return FeeSettings{}, fmt.Errorf("card fee trim length must be positive, got %d", rule.TrimLength)
	}
	return FeeSettings{Markup: markup, Tolerance: tolerance, TrimLength: rule.TrimLength}, nil
}

// Engine allocates payments against a read-only invoice table.
type Engine struct {
	invoices *reference.InvoiceTable
	aud      *audit.Auditor
	fee      FeeSettings
}

// New creates an Engine. Anomalies are recorded in aud.
func New(invoices *reference.InvoiceTable, aud *audit.Auditor, fee FeeSettings) *Engine {
	return &Engine{invoices: invoices, aud: aud, fee: fee}
}

// Allocate produces one record per allocation line of every referenced
// invoice, with amount = tx amount x line percentage rounded half-even to
// cents. References are resolved independently; each reference without
// lines is recorded as unmatched. When nothing matched at all, a single
// unsplit record carries the full amount with a blank tag.
func (e *Engine) Allocate(tx types.NormalizedTransaction) []types.DerivedPaymentRecord {
	src := &tx
	var records []types.DerivedPaymentRecord

	for _, ref := range tx.References {
		lines := e.invoices.Lines(ref)
		if len(lines) == 0 {
			e.aud.Recordf(audit.UnmatchedInvoice, ref, "row %d: not in combined invoice report", tx.Raw.Row)
			continue
		}
		for _, line := range lines {
			records = append(records, types.DerivedPaymentRecord{
				Source:     src,
				InvoiceID:  ref,
				Amount:     tx.Amount.Mul(line.Percentage).RoundBank(2),
				Percentage: line.Percentage,
				Tag:        line.Tag,
				Memo:       memo(tx, ref),
			})
		}
	}

	if len(records) == 0 {
		records = append(records, types.DerivedPaymentRecord{
			Source:     src,
			InvoiceID:  tx.Raw.InvoiceIDs,
			Amount:     tx.Amount,
			Percentage: decimal.NewFromInt(1),
			Unsplit:    true,
			Memo:       memo(tx, tx.Raw.InvoiceIDs),
		})
	}

	return records
}

// AllocateFee allocates the card fee of a payment: the amount above the
// invoice total, split by the invoice's lines. Payments that are not
// total x markup within tolerance are recorded and skipped. Lines are
// matched by the full reference or by its trailing TrimLength characters.
func (e *Engine) AllocateFee(tx types.NormalizedTransaction) []types.DerivedPaymentRecord {
	id := strings.TrimSpace(tx.Raw.InvoiceIDs)
	trimmed := TrimID(id, e.fee.TrimLength)

	total, err := normalize.ParseAmount(tx.Raw.InvoiceTotal)
	if err != nil || total.IsZero() || tx.Amount.IsZero() {
		e.aud.Recordf(audit.DataQuality, id, "row %d: invalid Amount %q or Invoice Total %q",
			tx.Raw.Row, tx.Raw.Amount, tx.Raw.InvoiceTotal)
		return nil
	}

	expected := total.Mul(e.fee.Markup).RoundBank(2)
	if tx.Amount.Sub(expected).Abs().GreaterThan(e.fee.Tolerance) {
		e.aud.Recordf(audit.MarkupMismatch, id, "row %d: amount %s != %s (%sx invoice total %s)",
			tx.Raw.Row, tx.Amount.StringFixed(2), expected.StringFixed(2), e.fee.Markup, total.StringFixed(2))
		return nil
	}

	lines := e.invoices.Lines(id)
	if trimmed != id {
		lines = append(append([]types.AllocationLine(nil), lines...), e.invoices.Lines(trimmed)...)
	}
	if len(lines) == 0 {
		e.aud.Recordf(audit.UnmatchedInvoice, id, "row %d: neither %s nor %s is in combined invoice report", tx.Raw.Row, id, trimmed)
		return nil
	}

	src := &tx
	fee := tx.Amount.Sub(total)
	records := make([]types.DerivedPaymentRecord, 0, len(lines))
	for _, line := range lines {
		records = append(records, types.DerivedPaymentRecord{
			Source:     src,
			InvoiceID:  trimmed,
			Amount:     fee.Mul(line.Percentage).RoundBank(2),
			Percentage: line.Percentage,
			Tag:        line.Tag,
		})
	}
	return records
}

// TrimID returns the last n characters of id, or id when it is not longer.
func TrimID(id string, n int) string {
	if len(id) > n {
		return id[len(id)-n:]
	}
	return id
}

func memo(tx types.NormalizedTransaction, invoiceID string) string {
	if notes := strings.TrimSpace(tx.Raw.Notes); notes != "" {
		return notes
	}
	return invoiceID
}

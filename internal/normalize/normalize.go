// Package normalize cleans raw payment rows: exclusion rules, payment
// method, amount parsing and invoice reference splitting.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/carrierledger/weekly-recon/internal/types"
)

// CardMarker in the instrument label marks a card payment settled elsewhere.
const CardMarker = "CC"

var (
	reallocatedPattern = regexp.MustCompile(`(?i)re-allocated`)
	prepaidPattern     = regexp.MustCompile(`(?i)prepaid|prepay`)
	cardBrandPattern   = regexp.MustCompile(`^(AMEX|MASTERCARD|MC|VISA|DISCOVER|CARD)`)
	referenceSeparator = regexp.MustCompile(`[,;]`)
)

// Options select the report-specific exclusion rules.
type Options struct {
	// ExcludeCardSettled drops rows whose instrument label contains CardMarker.
	ExcludeCardSettled bool

	// FoldCardMarker matches CardMarker case-insensitively.
	FoldCardMarker bool

	// ExcludePrepaid drops rows whose notes mention prepaid or prepay.
	ExcludePrepaid bool

	// KeepAll disables every exclusion rule, including the re-allocated and
	// unlabeled checks that otherwise always apply.
	KeepAll bool
}

// Decision is the outcome of normalizing one row.
type Decision struct {
	Excluded bool
	Reason   string

	// Issues lists recoverable data-quality problems found in a kept row.
	Issues []string
}

// Keep reports whether the row continues to allocation.
func (d Decision) Keep() bool {
	return !d.Excluded
}

func exclude(reason string) Decision {
	return Decision{Excluded: true, Reason: reason}
}

// Normalize applies the exclusion rules to raw and, when it is kept,
// derives the amount, effective label, payment method and references.
func Normalize(raw types.RawTransaction, opts Options) (types.NormalizedTransaction, Decision) {
	label := strings.TrimSpace(raw.CheckNumber)
	bank := strings.TrimSpace(raw.BankName)

	if opts.KeepAll {
		return derive(raw, label, bank)
	}
	if opts.ExcludeCardSettled && hasCardMarker(label, opts.FoldCardMarker) {
		return types.NormalizedTransaction{Raw: raw}, exclude("card payment settled elsewhere")
	}
	if reallocatedPattern.MatchString(raw.Notes) {
		return types.NormalizedTransaction{Raw: raw}, exclude("re-allocated payment")
	}
	if opts.ExcludePrepaid && prepaidPattern.MatchString(raw.Notes) {
		return types.NormalizedTransaction{Raw: raw}, exclude("prepaid payment")
	}
	if label == "" && bank == "" {
		return types.NormalizedTransaction{Raw: raw}, exclude("both Check # and Bank Name are empty")
	}
	return derive(raw, label, bank)
}

func derive(raw types.RawTransaction, label, bank string) (types.NormalizedTransaction, Decision) {
	var decision Decision

	amount, err := ParseAmount(raw.Amount)
	if err != nil {
		decision.Issues = append(decision.Issues, err.Error())
	}

	effective := EffectiveLabel(label, bank)

	return types.NormalizedTransaction{
		Raw:        raw,
		Amount:     amount,
		Label:      effective,
		Method:     ClassifyMethod(effective),
		References: SplitReferences(raw.InvoiceIDs),
	}, decision
}

func hasCardMarker(label string, fold bool) bool {
	if fold {
		return strings.Contains(strings.ToUpper(label), CardMarker)
	}
	return strings.Contains(label, CardMarker)
}

// EffectiveLabel returns the instrument label, falling back to the bank
// name when it is blank, with "American Express" shortened to "Amex".
func EffectiveLabel(label, bank string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = strings.TrimSpace(bank)
	}
	return strings.ReplaceAll(label, "American Express", "Amex")
}

// ClassifyMethod derives the payment method from an effective label. A
// card brand prefix wins over an all-digit label.
func ClassifyMethod(label string) types.PaymentMethod {
	upper := strings.ToUpper(label)
	switch {
	case cardBrandPattern.MatchString(upper):
		return types.MethodCreditCard
	case strings.Contains(upper, "ACH"):
		return types.MethodACH
	case isDigits(label):
		return types.MethodCheck
	default:
		return types.MethodOther
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseAmount keeps the digits, decimal points and a minus sign that
// precedes every digit, then parses the result. Unparsable input yields
// zero and an error describing it.
func ParseAmount(s string) (decimal.Decimal, error) {
	var b strings.Builder
	seenDigit, seenMinus := false, false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r) && r <= unicode.MaxASCII:
			seenDigit = true
			b.WriteRune(r)
		case r == '.':
			b.WriteRune(r)
		case r == '-' && !seenDigit && !seenMinus:
			seenMinus = true
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount %q", s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// SplitReferences splits an invoice reference list on commas and
// semicolons, dropping blank tokens.
func SplitReferences(s string) []string {
	var refs []string
	for _, tok := range referenceSeparator.Split(s, -1) {
		if tok = strings.TrimSpace(tok); tok != "" {
			refs = append(refs, tok)
		}
	}
	return refs
}

// PaymentDateLayouts are the payment date formats accepted, in order.
var PaymentDateLayouts = []string{
	"01/02/2006",
	"01-02-2006",
	"2006-01-02",
	"01/02/06",
	"01-02-06",
	"1/2/2006",
	"1/2/06",
}

// ParsePaymentDate parses a payment date in any of PaymentDateLayouts.
func ParsePaymentDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range PaymentDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// =============================================================================
// Weekly Recon - Shared Types
// =============================================================================
//
// This package contains the record types that flow between pipeline stages.
// They live here to avoid import cycles between:
//   - normalize
//   - allocation
//   - classify
//   - audit
//   - report
//
// STAGES:
//   RawTransaction -> NormalizedTransaction -> DerivedPaymentRecord
//   ShipmentRecord (EDI feed) is classified directly into report rows.
//
// =============================================================================

package types

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT METHOD
// =============================================================================

// PaymentMethod is the closed set of payment-instrument classes.
type PaymentMethod int

const (
	// MethodOther is any label not recognized by the other rules.
	MethodOther PaymentMethod = iota
	MethodCheck
	MethodACH
	MethodCreditCard
)

// PaymentMethodOrder is the order used when sorting and grouping output.
var PaymentMethodOrder = []PaymentMethod{MethodCheck, MethodACH, MethodCreditCard, MethodOther}

// String returns the label written to output files.
func (m PaymentMethod) String() string {
	switch m {
	case MethodCheck:
		return "Check"
	case MethodACH:
		return "ACH"
	case MethodCreditCard:
		return "Credit Card"
	default:
		return "Other"
	}
}

// Rank returns the position of m in PaymentMethodOrder.
func (m PaymentMethod) Rank() int {
	for i, candidate := range PaymentMethodOrder {
		if candidate == m {
			return i
		}
	}
	return len(PaymentMethodOrder)
}

// =============================================================================
// SERVICE GROUP
// =============================================================================

// ServiceGroup is the output group a payment record is routed to.
type ServiceGroup string

const (
	GroupILS     ServiceGroup = "ILS"
	GroupSHIP    ServiceGroup = "SHIP"
	GroupUnknown ServiceGroup = "UNKNOWN"
)

// =============================================================================
// TRANSACTION RECORDS
// =============================================================================

// RawTransaction is one row of the weekly payment feed, as read.
type RawTransaction struct {
	// Row is the 1-indexed data row number in the source feed.
	Row int

	Amount       string
	CheckNumber  string
	BankName     string
	InvoiceIDs   string
	CustomerID   string
	CustomerName string
	Notes        string
	PaymentDate  string
	InvoiceTotal string
}

// NormalizedTransaction is a RawTransaction that passed the exclusion rules.
type NormalizedTransaction struct {
	Raw RawTransaction

	// Amount is the parsed transaction amount (zero when unparsable).
	Amount decimal.Decimal

	// Label is the effective instrument label: the check number, or the
	// bank name when the check number is blank.
	Label string

	Method PaymentMethod

	// References are the trimmed, non-empty invoice reference tokens.
	References []string
}

// DerivedPaymentRecord is one output row produced by allocation.
type DerivedPaymentRecord struct {
	// Source is the transaction the record was derived from.
	Source *NormalizedTransaction

	// InvoiceID is the reference token that matched, or the full raw
	// reference string for unsplit records.
	InvoiceID string

	Amount decimal.Decimal

	// Percentage is the allocation fraction applied. One for unsplit records.
	Percentage decimal.Decimal

	// Tag is the classification tag of the allocation line. Blank for
	// unsplit records.
	Tag string

	// Unsplit marks the fallback record emitted when nothing matched.
	Unsplit bool

	// Fields filled by the classifier and pipeline.
	Group          ServiceGroup
	Account        string
	CustomerName   string
	RefNumber      string
	ApplyToInvoice string
	Memo           string
}

// =============================================================================
// EDI RECORDS
// =============================================================================

// ShipmentRecord is one row of the EDI shipment feed.
type ShipmentRecord struct {
	Row int

	Carrier          string
	SubCarrier       string
	CustomerNumber   string
	CustomerName     string
	CarrierInvoice   string
	InvoiceNumber    string
	ShipDate         string
	AirbillNumber    string
	ServiceType      string
	SalesRep         string
	CustomerTotal    string
	CarrierCostTotal string

	// Charges holds Customer Base followed by Chg 1 Total .. Chg 8 Total.
	Charges []string
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// AllocationLine is one (tag, percentage) pair for an invoice id.
type AllocationLine struct {
	InvoiceID  string
	Tag        string
	Percentage decimal.Decimal

	// Row is the source row in the reference table.
	Row int
}

// Customer is one row of the customer table.
type Customer struct {
	ID       string
	Name     string
	Terms    string
	SalesRep string
}

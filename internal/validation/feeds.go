package validation

import (
	"github.com/carrierledger/weekly-recon/internal/reference"
)

// =============================================================================
// FEED SCHEMAS
// =============================================================================

// Column names of the raw payment feed.
const (
	ColAmount       = "Amount"
	ColCheckNumber  = "Check #"
	ColBankName     = "Bank Name"
	ColInvoiceIDs   = "Invoice Id(s)"
	ColCustomerID   = "Customer Id"
	ColCustomer     = "Customer"
	ColNotes        = "Notes"
	ColPaymentDate  = "Payment Date"
	ColInvoiceTotal = "Invoice Total"
)

// Column names of the EDI shipment feed.
const (
	ColCarrier          = "Carrier"
	ColSubCarrier       = "Sub Carrier"
	ColCustomerNumber   = "Customer #"
	ColShipCustomer     = "Customer"
	ColCarrierInvoice   = "Carrier Inv. #"
	ColInvoiceNumber    = "Invoice Number"
	ColShipDate         = "Ship Date"
	ColAirbillNumber    = "Airbill Number"
	ColServiceType      = "Service Type"
	ColSalesRep         = "Sales Rep"
	ColCustomerTotal    = "Customer Total"
	ColCarrierCostTotal = "Carrier Cost Total"
	ColCustomerBase     = "Customer Base"
)

// ChargeColumns are Customer Base followed by Chg 1 Total .. Chg 8 Total.
var ChargeColumns = []string{
	ColCustomerBase,
	"Chg 1 Total", "Chg 2 Total", "Chg 3 Total", "Chg 4 Total",
	"Chg 5 Total", "Chg 6 Total", "Chg 7 Total", "Chg 8 Total",
}

// FieldRule describes one column of a feed.
type FieldRule struct {
	Column string

	// Required columns must be present in the header.
	Required bool

	// DataType is checked on every non-empty value.
	// Supported: "string", "amount", "percent", "numeric", "date"
	DataType string
}

// FeedSchema is the column layout of one input feed.
type FeedSchema struct {
	Name   string
	Fields []FieldRule
}

// RequiredColumns lists the columns that must be present.
func (s FeedSchema) RequiredColumns() []string {
	var cols []string
	for _, f := range s.Fields {
		if f.Required {
			cols = append(cols, f.Column)
		}
	}
	return cols
}

// With returns a copy of s named name with extra fields appended.
func (s FeedSchema) With(name string, fields ...FieldRule) FeedSchema {
	out := FeedSchema{Name: name, Fields: make([]FieldRule, 0, len(s.Fields)+len(fields))}
	out.Fields = append(out.Fields, s.Fields...)
	out.Fields = append(out.Fields, fields...)
	return out
}

// TransactionsFeed is the weekly raw payment export.
var TransactionsFeed = FeedSchema{
	Name: "transactions",
	Fields: []FieldRule{
		{Column: ColAmount, Required: true, DataType: "amount"},
		{Column: ColCheckNumber, Required: true},
		{Column: ColBankName, Required: true},
		{Column: ColInvoiceIDs, Required: true},
		{Column: ColCustomerID, Required: true},
		{Column: ColCustomer, Required: true},
		{Column: ColNotes, Required: true},
		{Column: ColPaymentDate, Required: true, DataType: "date"},
	},
}

// CardFeeFeed is the raw payment export with invoice totals, used by the
// card fee report.
var CardFeeFeed = TransactionsFeed.With("card fee transactions",
	FieldRule{Column: ColInvoiceTotal, Required: true, DataType: "amount"},
)

// ReferenceFeed is the combined invoice report.
var ReferenceFeed = FeedSchema{
	Name: "reference",
	Fields: []FieldRule{
		{Column: reference.ColInvoiceNumber, Required: true},
		{Column: reference.ColTag, Required: true},
		{Column: reference.ColPercentage, Required: true, DataType: "percent"},
	},
}

// CustomersFeed is the customer list.
var CustomersFeed = FeedSchema{
	Name: "customers",
	Fields: []FieldRule{
		{Column: reference.ColCustomerID, Required: true},
		{Column: reference.ColCustomer, Required: true},
		{Column: reference.ColTerms},
		{Column: reference.ColSalesRep},
	},
}

// ShipmentsFeed is the EDI shipment export.
var ShipmentsFeed = FeedSchema{
	Name: "shipments",
	Fields: []FieldRule{
		{Column: ColCarrier, Required: true},
		{Column: ColSubCarrier, Required: true},
		{Column: ColCustomerNumber, Required: true, DataType: "numeric"},
		{Column: ColShipCustomer, Required: true},
		{Column: ColCarrierInvoice, Required: true},
		{Column: ColInvoiceNumber, Required: true},
		{Column: ColShipDate, Required: true},
		{Column: ColAirbillNumber, Required: true},
		{Column: ColServiceType, Required: true},
		{Column: ColSalesRep, Required: true},
		{Column: ColCustomerTotal, Required: true, DataType: "amount"},
		{Column: ColCarrierCostTotal, Required: true, DataType: "amount"},
	},
}

// ShipmentChargesFeed is ShipmentsFeed with the charge breakdown, which
// the SHIP income report sums.
var ShipmentChargesFeed = ShipmentsFeed.With("shipments with charges", chargeFields()...)

func chargeFields() []FieldRule {
	fields := make([]FieldRule, len(ChargeColumns))
	for i, c := range ChargeColumns {
		fields[i] = FieldRule{Column: c, Required: true, DataType: "amount"}
	}
	return fields
}

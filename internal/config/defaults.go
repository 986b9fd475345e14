package config

// DefaultRules returns the rule tables used by the weekly uploads.
func DefaultRules() Rules {
	var r Rules
	applyRulesDefaults(&r)
	return r
}

// applyRulesDefaults fills every empty table and scalar with its default.
// Tables are replaced whole, never merged.
func applyRulesDefaults(r *Rules) {
	if len(r.ServiceGroups) == 0 {
		r.ServiceGroups = []ServiceGroupRule{
			{Group: "ILS", Pattern: "DHL|ILS", DepositAccount: "15000"},
			{Group: "SHIP", Pattern: "FEDEX|SHIP", DepositAccount: "12000"},
		}
	}

	if len(r.RefPrefixes) == 0 {
		r.RefPrefixes = []RefPrefixRule{
			{Pattern: `^\d+$`, Prefix: "5-"},
			{Pattern: `(?i)VISA|MasterCard`, Prefix: "4-"},
			{Pattern: `(?i)AMEX`, Prefix: "3-"},
			{Pattern: `(?i)ACH`, Prefix: "6-"},
		}
	}

	if len(r.PrefixAccounts) == 0 {
		r.PrefixAccounts = []PrefixAccountRule{
			{Prefix: "1", Account: "DHL COST"},
			{Prefix: "5", Account: "DHL COST FJ"},
			{Prefix: "6", Account: "DHL COST FS"},
		}
	}

	if len(r.Carriers) == 0 {
		r.Carriers = []CarrierRule{
			{
				Carrier:      "DHL",
				SalesAccount: "DHL SALES",
				Vendor:       "DHL EXPRESS",
			},
			{
				Carrier:           "FedEx",
				SalesAccount:      "FEDEX SALES (DESCARTE)",
				CostAccount:       "FEDEX COST",
				DefaultSubCarrier: "RSIS",
				Vendor:            "{carrier} ENGLAND",
				SubCarriers: []SubCarrierRule{
					{Name: "England", SalesAccount: "FEDEX SALES (ENGLAND LOGISTICS)", CostAccount: "FEDEX COST (ENGLAND LOGISTICS)", Vendor: "ENGLAND LOGISTICS"},
					{Name: "RSIS", CostAccount: "FEDEX COST (DESCARTES)", Vendor: "DESCARTES"},
				},
			},
			{
				Carrier:      "UPS",
				SalesAccount: "UPS SALES",
				CostAccount:  "UPS COST",
				Vendor:       "{carrier} ENGLAND",
				SubCarriers: []SubCarrierRule{
					{Name: "England", Vendor: "ENGLAND LOGISTICS"},
					{Name: "RSIS", Vendor: "DESCARTES"},
				},
			},
			{
				Carrier:      "FREIGHT",
				SalesAccount: "FREIGHT & OTHER",
				MemoLabel:    "FREIGHT (LTL)",
			},
		}
	}

	dc := &r.DateCode
	if dc.YearLetter == "" {
		dc.YearLetter = "Y"
	}
	if dc.BaseYear == 0 {
		dc.BaseYear = 2024
	}
	if dc.MonthLetter == "" {
		dc.MonthLetter = "A"
	}
	if dc.SkippedLetter == "" {
		dc.SkippedLetter = "I"
	}

	cf := &r.CardFee
	if cf.Markup == "" {
		cf.Markup = "1.03"
	}
	if cf.Tolerance == "" {
		cf.Tolerance = "0.01"
	}
	if cf.TrimLength == 0 {
		cf.TrimLength = 8
	}
	if cf.InvoicePrefix == "" {
		cf.InvoicePrefix = "CC"
	}
	if cf.Memo == "" {
		cf.Memo = "CC-Fee paid by customer"
	}
	if cf.Terms == "" {
		cf.Terms = "NET 15"
	}
	if cf.Account == "" {
		cf.Account = "MERCHANT FEE"
	}

	e := &r.EDI
	if e.ILSCarrier == "" {
		e.ILSCarrier = "DHL"
	}
	if e.ILSMaxCustomerNumber == 0 {
		e.ILSMaxCustomerNumber = 50000000
	}
	if e.ExcludedInvoicePrefix == "" {
		e.ExcludedInvoicePrefix = "D"
	}
	if len(e.ExcludedCustomerNames) == 0 {
		e.ExcludedCustomerNames = []string{"Curlmix", "TRG"}
	}
	if len(e.ExcludedCustomerNumbers) == 0 {
		e.ExcludedCustomerNumbers = []string{"10003217", "10003324"}
	}
	if len(e.IncomeCarriers) == 0 {
		e.IncomeCarriers = []string{"FedEx", "UPS", "FREIGHT"}
	}
	if len(e.BillCarriers) == 0 {
		e.BillCarriers = []string{"FedEx", "UPS"}
	}
	if e.InvoiceNumberLength == 0 {
		e.InvoiceNumberLength = 8
	}
	if e.ClassLength == 0 {
		e.ClassLength = 5
	}
}

// Package classify assigns derived records to output groups, account codes
// and vendors using the ordered rule tables from configuration.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/carrierledger/weekly-recon/internal/config"
	"github.com/carrierledger/weekly-recon/internal/types"
)

// Unknown is the account and vendor sentinel for unclassifiable input.
const Unknown = "UNKNOWN"

const (
	unknownRefPrefix = "UNKNOWN-"
	invalidRefPrefix = "INVALID-"
	applyTrim        = 4
	defaultVendor    = "{carrier} ENGLAND"
)

type serviceGroupRule struct {
	group   types.ServiceGroup
	pattern *regexp.Regexp
	deposit string
}

type refPrefixRule struct {
	pattern *regexp.Regexp
	prefix  string
}

// Classifier holds the compiled rule tables. It is read-only after New.
type Classifier struct {
	groups   []serviceGroupRule
	refs     []refPrefixRule
	prefixes []config.PrefixAccountRule
	carriers map[string]config.CarrierRule
	dates    DateCodec
}

// New compiles rules.
func New(rules config.Rules) (*Classifier, error) {
	c := &Classifier{
		prefixes: rules.PrefixAccounts,
		carriers: make(map[string]config.CarrierRule, len(rules.Carriers)),
	}

	for _, r := range rules.ServiceGroups {
		group, err := parseGroup(r.Group)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("service group %s: %w", r.Group, err)
		}
		c.groups = append(c.groups, serviceGroupRule{group: group, pattern: re, deposit: r.DepositAccount})
	}

	for _, r := range rules.RefPrefixes {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("ref prefix %s: %w", r.Prefix, err)
		}
		c.refs = append(c.refs, refPrefixRule{pattern: re, prefix: r.Prefix})
	}

	for _, r := range rules.Carriers {
		c.carriers[r.Carrier] = r
	}

	dates, err := NewDateCodec(rules.DateCode)
	if err != nil {
		return nil, err
	}
	c.dates = dates

	return c, nil
}

func parseGroup(name string) (types.ServiceGroup, error) {
	switch types.ServiceGroup(strings.ToUpper(name)) {
	case types.GroupILS:
		return types.GroupILS, nil
	case types.GroupSHIP:
		return types.GroupSHIP, nil
	}
	return types.GroupUnknown, fmt.Errorf("unknown service group %q", name)
}

// Dates returns the invoice date codec.
func (c *Classifier) Dates() DateCodec {
	return c.dates
}

// =============================================================================
// PAYMENT CLASSIFICATION
// =============================================================================

// ServiceGroup returns the output group of an allocation tag and its deposit
// account. The first matching rule wins; no match yields GroupUnknown.
func (c *Classifier) ServiceGroup(tag string) (types.ServiceGroup, string) {
	for _, r := range c.groups {
		if r.pattern.MatchString(tag) {
			return r.group, r.deposit
		}
	}
	return types.GroupUnknown, ""
}

// RefNumber builds the REF NO of a payment: a prefix chosen by the payment
// label followed by the invoice id without its first four characters. Ids
// shorter than four characters return an INVALID- reference and an error.
func (c *Classifier) RefNumber(label, invoiceID string) (string, error) {
	if len(invoiceID) < applyTrim {
		return invalidRefPrefix + invoiceID, fmt.Errorf("invoice id %q is shorter than %d characters", invoiceID, applyTrim)
	}

	prefix := unknownRefPrefix
	for _, r := range c.refs {
		if r.pattern.MatchString(label) {
			prefix = r.prefix
			break
		}
	}
	return prefix + invoiceID[applyTrim:], nil
}

// ApplyToInvoice returns the invoice id without its first four characters
// when it is longer than four, otherwise the id itself.
func ApplyToInvoice(invoiceID string) string {
	if len(invoiceID) > applyTrim {
		return invoiceID[applyTrim:]
	}
	return invoiceID
}

// =============================================================================
// CARRIER CLASSIFICATION
// =============================================================================

// Resolution is the classification of one carrier / sub-carrier pair.
type Resolution struct {
	Carrier    string
	SubCarrier string

	SalesAccount string
	CostAccount  string
	Vendor       string
	MemoLabel    string

	// KnownCarrier is false when no rule names the carrier; accounts and
	// vendor are then Unknown.
	KnownCarrier bool

	// UnknownSubCarrier is set when a non-empty sub-carrier matches none of
	// the carrier's sub-carrier rules. Carrier defaults still apply.
	UnknownSubCarrier bool
}

// Resolve classifies a carrier (exact, case-sensitive) and sub-carrier
// (case-insensitive). A blank sub-carrier takes the carrier default.
func (c *Classifier) Resolve(carrier, subCarrier string) Resolution {
	subCarrier = strings.TrimSpace(subCarrier)

	rule, ok := c.carriers[carrier]
	if !ok {
		return Resolution{
			Carrier:      carrier,
			SubCarrier:   subCarrier,
			SalesAccount: Unknown,
			CostAccount:  Unknown,
			Vendor:       Unknown,
			MemoLabel:    carrier,
		}
	}

	if subCarrier == "" {
		subCarrier = rule.DefaultSubCarrier
	}

	res := Resolution{
		Carrier:      carrier,
		SubCarrier:   subCarrier,
		SalesAccount: orUnknown(rule.SalesAccount),
		CostAccount:  orUnknown(rule.CostAccount),
		Vendor:       rule.Vendor,
		MemoLabel:    rule.MemoLabel,
		KnownCarrier: true,
	}
	if res.MemoLabel == "" {
		res.MemoLabel = carrier
	}
	if res.Vendor == "" {
		res.Vendor = defaultVendor
	}

	if subCarrier != "" && len(rule.SubCarriers) > 0 {
		sub, found := findSubCarrier(rule.SubCarriers, subCarrier)
		if found {
			if sub.SalesAccount != "" {
				res.SalesAccount = sub.SalesAccount
			}
			if sub.CostAccount != "" {
				res.CostAccount = sub.CostAccount
			}
			if sub.Vendor != "" {
				res.Vendor = sub.Vendor
			}
		} else {
			res.UnknownSubCarrier = true
		}
	}

	res.Vendor = strings.ReplaceAll(res.Vendor, "{carrier}", carrier)
	return res
}

func findSubCarrier(subs []config.SubCarrierRule, name string) (config.SubCarrierRule, bool) {
	for _, s := range subs {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return config.SubCarrierRule{}, false
}

// Vendor returns the bill vendor for a carrier and sub-carrier.
func (c *Classifier) Vendor(carrier, subCarrier string) string {
	return c.Resolve(carrier, subCarrier).Vendor
}

// CostAccountByPrefix selects a cost account by the leading characters of a
// customer number. The second result is false when no prefix matches and
// the account is Unknown.
func (c *Classifier) CostAccountByPrefix(customerNo string) (string, bool) {
	customerNo = strings.TrimSpace(customerNo)
	for _, r := range c.prefixes {
		if r.Prefix != "" && strings.HasPrefix(customerNo, r.Prefix) {
			return r.Account, true
		}
	}
	return Unknown, false
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

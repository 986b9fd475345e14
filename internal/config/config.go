// =============================================================================
// Weekly Recon - Configuration Module
// =============================================================================
//
// This module loads the run configuration and the classification rule tables.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): feed paths, output settings, logging
//   2. Rules (inline under "rules:" or a separate rules_file): carrier,
//      service-group and account tables used by the classifier
//
// Every rule table has built-in defaults, so an empty rules section
// reproduces the weekly payment and EDI uploads as they run today.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownReport is returned by ParseReportType for unrecognized names.
var ErrUnknownReport = errors.New("unknown report type")

// =============================================================================
// REPORT TYPES
// =============================================================================

// ReportType selects which upload a run produces.
type ReportType string

const (
	ReportCleaned    ReportType = "cleaned"
	ReportPayments   ReportType = "payments"
	ReportCardFee    ReportType = "ccfee"
	ReportILSIncome  ReportType = "ils-income"
	ReportILSBills   ReportType = "ils-bills"
	ReportShipIncome ReportType = "ship-income"
	ReportShipBills  ReportType = "ship-bills"
)

// ReportTypes lists every supported report in help-text order.
var ReportTypes = []ReportType{
	ReportCleaned,
	ReportPayments,
	ReportCardFee,
	ReportILSIncome,
	ReportILSBills,
	ReportShipIncome,
	ReportShipBills,
}

// ParseReportType resolves a report name given on the command line.
func ParseReportType(name string) (ReportType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, rt := range ReportTypes {
		if string(rt) == name {
			return rt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReport, name)
}

// IsEDI reports whether the report reads the EDI shipment feed.
func (r ReportType) IsEDI() bool {
	switch r {
	case ReportILSIncome, ReportILSBills, ReportShipIncome, ReportShipBills:
		return true
	}
	return false
}

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the run configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is the directory relative feed paths are resolved against.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir is where report files and the audit log are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// =========================================================================
	// FEEDS
	// =========================================================================

	// TransactionsFile is the weekly raw payment export.
	TransactionsFile string `yaml:"transactions_file"`

	// ShipmentsFile is the weekly EDI shipment export.
	ShipmentsFile string `yaml:"shipments_file"`

	// ReferenceFile is the combined invoice report (CSV or XLSX).
	ReferenceFile string `yaml:"reference_file"`

	// CustomersFile is the customer list (CSV or XLSX).
	CustomersFile string `yaml:"customers_file"`

	// HistoryFile receives one totals row per week from the history command.
	// Default: "<output_dir>/History Data.csv"
	HistoryFile string `yaml:"history_file"`

	// ArchiveDir receives copies of the payment reports from the history
	// command.
	// Default: "<output_dir>/Report"
	ArchiveDir string `yaml:"archive_dir"`

	// ArchiveByDate files archived reports under YYYY/MM/DD subdirectories.
	// Default: false
	ArchiveByDate bool `yaml:"archive_by_date"`

	// WeekLabel identifies the batch in output names, e.g. "(01.08.23)_(01.14.23)".
	WeekLabel string `yaml:"week_label"`

	// CSVSettings controls how CSV feeds are decoded.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputFormat is "csv" or "xlsx".
	// Default: "csv"
	OutputFormat string `yaml:"output_format"`

	// OutputNameFormat names each report file.
	// Placeholders:
	//   {group}     - Output group (ILS, SHIP, ...)
	//   {report}    - Report type
	//   {week}      - WeekLabel
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {uuid}      - A random UUID
	// Default: "{group}_{report}_{week}"
	OutputNameFormat string `yaml:"output_name_format"`

	// AuditLogName is the audit log file name inside OutputDir. It takes the
	// same placeholders as OutputNameFormat.
	// Default: "{report}_ProcessingLog.txt"
	AuditLogName string `yaml:"audit_log_name"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of the console log.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// RULES
	// =========================================================================

	// RulesFile optionally points at a separate YAML file holding Rules.
	// When set it replaces the inline rules section.
	RulesFile string `yaml:"rules_file"`

	// Rules holds the classification tables.
	Rules Rules `yaml:"rules"`
}

// CSVSettings contains settings for parsing CSV feeds.
type CSVSettings struct {
	// Delimiter is the field separator. Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is the character encoding of the feeds.
	// Supported: "UTF-8", "Windows-1252", "ISO-8859-1"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// =============================================================================
// RULE STRUCTURES
// =============================================================================

// Rules holds every table the classifier and allocation engine consult.
type Rules struct {
	// ServiceGroups maps an allocation tag to an output group. First match wins.
	ServiceGroups []ServiceGroupRule `yaml:"service_groups"`

	// RefPrefixes maps a payment label to a REF NO prefix. First match wins.
	RefPrefixes []RefPrefixRule `yaml:"ref_prefixes"`

	// PrefixAccounts maps a customer-number prefix to a cost account.
	PrefixAccounts []PrefixAccountRule `yaml:"prefix_accounts"`

	// Carriers holds the per-carrier account and vendor tables.
	Carriers []CarrierRule `yaml:"carriers"`

	DateCode DateCodeRule `yaml:"date_code"`
	CardFee  CardFeeRule  `yaml:"card_fee"`
	EDI      EDIRules     `yaml:"edi"`
}

// ServiceGroupRule routes tags matching Pattern (case-insensitive regex) to Group.
type ServiceGroupRule struct {
	Group          string `yaml:"group"`
	Pattern        string `yaml:"pattern"`
	DepositAccount string `yaml:"deposit_account"`
}

// RefPrefixRule prefixes REF NO with Prefix when the label matches Pattern.
type RefPrefixRule struct {
	Pattern string `yaml:"pattern"`
	Prefix  string `yaml:"prefix"`
}

// PrefixAccountRule selects Account for customer numbers starting with Prefix.
type PrefixAccountRule struct {
	Prefix  string `yaml:"prefix"`
	Account string `yaml:"account"`
}

// CarrierRule is matched by exact, case-sensitive carrier name.
type CarrierRule struct {
	Carrier string `yaml:"carrier"`

	// SalesAccount and CostAccount are the carrier defaults.
	SalesAccount string `yaml:"sales_account"`
	CostAccount  string `yaml:"cost_account"`

	// MemoLabel replaces the carrier name in memo lines when set.
	MemoLabel string `yaml:"memo_label"`

	// DefaultSubCarrier is assumed when the feed leaves the sub-carrier blank.
	DefaultSubCarrier string `yaml:"default_sub_carrier"`

	// Vendor is the default vendor; "{carrier}" is replaced by the carrier name.
	Vendor string `yaml:"vendor"`

	// SubCarriers override accounts and vendor, matched case-insensitively.
	SubCarriers []SubCarrierRule `yaml:"sub_carriers"`
}

// SubCarrierRule overrides a carrier's defaults. Empty fields keep the default.
type SubCarrierRule struct {
	Name         string `yaml:"name"`
	SalesAccount string `yaml:"sales_account"`
	CostAccount  string `yaml:"cost_account"`
	Vendor       string `yaml:"vendor"`
}

// DateCodeRule describes the letter-offset invoice date encoding.
type DateCodeRule struct {
	// YearLetter encodes BaseYear. Default: "Y" / 2024
	YearLetter string `yaml:"year_letter"`
	BaseYear   int    `yaml:"base_year"`

	// MonthLetter encodes January. Default: "A"
	MonthLetter string `yaml:"month_letter"`

	// SkippedLetter is never used as a month code. Default: "I"
	SkippedLetter string `yaml:"skipped_letter"`
}

// CardFeeRule configures the credit-card-fee reconciliation.
type CardFeeRule struct {
	// Markup is the expected ratio of amount to invoice total. Default: "1.03"
	Markup string `yaml:"markup"`

	// Tolerance is the absolute allowed difference. Default: "0.01"
	Tolerance string `yaml:"tolerance"`

	// TrimLength is the number of trailing id characters also tried as a key.
	// Default: 8
	TrimLength int `yaml:"trim_length"`

	InvoicePrefix string `yaml:"invoice_prefix"`
	Memo          string `yaml:"memo"`
	Terms         string `yaml:"terms"`
	Account       string `yaml:"account"`
}

// EDIRules holds the filters applied to the EDI shipment feed.
type EDIRules struct {
	// ILSCarrier is the carrier routed to the ILS reports. Default: "DHL"
	ILSCarrier string `yaml:"ils_carrier"`

	// ILSMaxCustomerNumber bounds customer numbers on ILS income. Default: 50000000
	ILSMaxCustomerNumber int64 `yaml:"ils_max_customer_number"`

	// ExcludedInvoicePrefix drops carrier invoices starting with it. Default: "D"
	ExcludedInvoicePrefix string `yaml:"excluded_invoice_prefix"`

	// ExcludedCustomerNames drops ILS bills whose customer name starts with one.
	ExcludedCustomerNames []string `yaml:"excluded_customer_names"`

	// ExcludedCustomerNumbers drops SHIP rows for these accounts.
	ExcludedCustomerNumbers []string `yaml:"excluded_customer_numbers"`

	IncomeCarriers []string `yaml:"income_carriers"`
	BillCarriers   []string `yaml:"bill_carriers"`

	// InvoiceNumberLength is the trailing length kept as INV NO. Default: 8
	InvoiceNumberLength int `yaml:"invoice_number_length"`

	// ClassLength is the sales rep prefix length used as CLASS. Default: 5
	ClassLength int `yaml:"class_length"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the configuration from a YAML file.
//
// A missing file is an error; an empty file yields an all-defaults config.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseMainConfig(data, filepath.Dir(configPath))
}

// ParseMainConfig parses configuration YAML. baseDir resolves a relative
// rules_file.
func ParseMainConfig(data []byte, baseDir string) (*MainConfig, error) {
	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.RulesFile != "" {
		rulesPath := config.RulesFile
		if !filepath.IsAbs(rulesPath) {
			rulesPath = filepath.Join(baseDir, rulesPath)
		}
		rules, err := LoadRules(rulesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		config.Rules = *rules
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with every default applied.
func Default() *MainConfig {
	var config MainConfig
	applyMainConfigDefaults(&config)
	return &config
}

// applyMainConfigDefaults sets default values for any unset options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.HistoryFile == "" {
		config.HistoryFile = filepath.Join(config.OutputDir, "History Data.csv")
	}
	if config.ArchiveDir == "" {
		config.ArchiveDir = filepath.Join(config.OutputDir, "Report")
	}
	if config.CSVSettings.Delimiter == "" {
		config.CSVSettings.Delimiter = ","
	}
	if config.CSVSettings.Encoding == "" {
		config.CSVSettings.Encoding = "UTF-8"
	}
	if config.OutputFormat == "" {
		config.OutputFormat = "csv"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{group}_{report}_{week}"
	}
	if config.AuditLogName == "" {
		config.AuditLogName = "{report}_ProcessingLog.txt"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	applyRulesDefaults(&config.Rules)
}

// validateMainConfig checks enumerated settings.
func validateMainConfig(config *MainConfig) error {
	switch strings.ToLower(config.OutputFormat) {
	case "csv", "xlsx":
	default:
		return fmt.Errorf("output_format must be csv or xlsx, got %q", config.OutputFormat)
	}

	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", config.LogLevel)
	}

	for _, sg := range config.Rules.ServiceGroups {
		if sg.Group == "" || sg.Pattern == "" {
			return fmt.Errorf("service group rule needs both group and pattern")
		}
	}

	letters := []string{config.Rules.DateCode.YearLetter, config.Rules.DateCode.MonthLetter, config.Rules.DateCode.SkippedLetter}
	for _, l := range letters {
		if len(l) != 1 {
			return fmt.Errorf("date_code letters must be single characters, got %q", l)
		}
	}

	return nil
}

// InputPath resolves a feed path against InputDir.
func (c *MainConfig) InputPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.InputDir, name)
}

// LoadRules loads a standalone rules file.
func LoadRules(filePath string) (*Rules, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	return &rules, nil
}

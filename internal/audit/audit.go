// =============================================================================
// Weekly Recon - Reconciliation Auditor
// =============================================================================
//
// The Auditor collects every per-row anomaly of a batch: skipped rows,
// invoices missing from the combined report, customers missing from the
// customer list, undecodable invoice dates and so on. Nothing is ever removed
// from it, so rendering is idempotent and may be repeated after more entries
// are recorded.
//
// The rendered log is the artifact the weekly reviewer reads; the console
// log only carries progress and totals.
//
// =============================================================================

package audit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carrierledger/weekly-recon/internal/types"
)

// =============================================================================
// CATEGORIES
// =============================================================================

// Category classifies an audit entry. Categories render in declaration order.
type Category int

const (
	ExcludedRecord Category = iota
	UnmatchedInvoice
	MissingCustomer
	InvalidDate
	ZeroAmount
	UnknownClassification
	MarkupMismatch
	DataQuality
	NotInReport
)

// Categories lists every category in render order.
var Categories = []Category{
	ExcludedRecord,
	UnmatchedInvoice,
	MissingCustomer,
	InvalidDate,
	ZeroAmount,
	UnknownClassification,
	MarkupMismatch,
	DataQuality,
	NotInReport,
}

var categoryNames = map[Category]string{
	ExcludedRecord:        "excluded-record",
	UnmatchedInvoice:      "unmatched-invoice",
	MissingCustomer:       "missing-customer",
	InvalidDate:           "invalid-date",
	ZeroAmount:            "zero-amount",
	UnknownClassification: "unknown-classification",
	MarkupMismatch:        "markup-mismatch",
	DataQuality:           "data-quality",
	NotInReport:           "not-in-report",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Entry is one recorded anomaly.
type Entry struct {
	Category Category
	ID       string
	Reason   string
	Time     time.Time
}

// Summary holds the end-of-batch counts.
type Summary struct {
	Input           int
	Excluded        int
	Matched         int
	Unmatched       int
	MissingCustomer int
	NotInReport     int
}

// =============================================================================
// AUDITOR
// =============================================================================

// Auditor is a write-only accumulator of audit entries for one batch.
type Auditor struct {
	title    string
	runID    uuid.UUID
	now      func() time.Time
	log      zerolog.Logger
	started  time.Time
	entries  map[Category][]Entry
	input    int
	matched  int
	rendered bool
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithClock replaces time.Now, for reproducible logs in tests.
func WithClock(now func() time.Time) Option {
	return func(a *Auditor) { a.now = now }
}

// WithRunID fixes the run id shown in the log header.
func WithRunID(id uuid.UUID) Option {
	return func(a *Auditor) { a.runID = id }
}

// WithLogger mirrors every recorded entry to log at debug level.
func WithLogger(log zerolog.Logger) Option {
	return func(a *Auditor) { a.log = log }
}

// New creates an Auditor. title heads the rendered log.
func New(title string, opts ...Option) *Auditor {
	a := &Auditor{
		title:   title,
		runID:   uuid.New(),
		now:     time.Now,
		log:     zerolog.Nop(),
		entries: make(map[Category][]Entry),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.started = a.now()
	return a
}

// RunID returns the id stamped into the log header.
func (a *Auditor) RunID() uuid.UUID {
	return a.runID
}

// Record appends an entry.
func (a *Auditor) Record(c Category, id, reason string) {
	a.entries[c] = append(a.entries[c], Entry{
		Category: c,
		ID:       id,
		Reason:   reason,
		Time:     a.now(),
	})
	a.log.Debug().
		Str("category", c.String()).
		Str("id", id).
		Msg(reason)
}

// Recordf appends an entry with a formatted reason.
func (a *Auditor) Recordf(c Category, id, format string, args ...interface{}) {
	a.Record(c, id, fmt.Sprintf(format, args...))
}

// CountInput adds n to the number of input rows.
func (a *Auditor) CountInput(n int) {
	a.input += n
}

// CountMatched adds n to the number of rows that produced output.
func (a *Auditor) CountMatched(n int) {
	a.matched += n
}

// Entries returns the entries of one category in recording order.
func (a *Auditor) Entries(c Category) []Entry {
	out := make([]Entry, len(a.entries[c]))
	copy(out, a.entries[c])
	return out
}

// Count returns the number of entries in one category.
func (a *Auditor) Count(c Category) int {
	return len(a.entries[c])
}

// Total returns the number of entries across all categories.
func (a *Auditor) Total() int {
	n := 0
	for _, es := range a.entries {
		n += len(es)
	}
	return n
}

// Summary returns the batch counts.
func (a *Auditor) Summary() Summary {
	return Summary{
		Input:           a.input,
		Excluded:        a.Count(ExcludedRecord),
		Matched:         a.matched,
		Unmatched:       a.Count(UnmatchedInvoice),
		MissingCustomer: a.Count(MissingCustomer),
		NotInReport:     a.Count(NotInReport),
	}
}

// Rendered reports whether Render has been called.
func (a *Auditor) Rendered() bool {
	return a.rendered
}

// =============================================================================
// RAW NOT IN REPORT
// =============================================================================

// NotInReport records every raw transaction whose reference string does not
// end with the apply-to-invoice id of any emitted record. Matching is suffix
// containment, not equality: "XINV100" is covered by a record for "INV100".
// It returns the number of entries recorded.
func (a *Auditor) NotInReport(raws []types.RawTransaction, records []types.DerivedPaymentRecord) int {
	applied := make([]string, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.ApplyToInvoice == "" || seen[rec.ApplyToInvoice] {
			continue
		}
		seen[rec.ApplyToInvoice] = true
		applied = append(applied, rec.ApplyToInvoice)
	}

	missing := 0
	for _, raw := range raws {
		found := false
		for _, id := range applied {
			if strings.HasSuffix(raw.InvoiceIDs, id) {
				found = true
				break
			}
		}
		if !found {
			a.Recordf(NotInReport, raw.InvoiceIDs, "row %d produced no output record", raw.Row)
			missing++
		}
	}
	return missing
}

// =============================================================================
// RENDERING
// =============================================================================

const banner = "==========================================="

// Render writes the log: header, one section per category in fixed order,
// then the summary counts.
func (a *Auditor) Render(w io.Writer) error {
	a.rendered = true

	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, banner)
	fmt.Fprintf(bw, " %s\n", a.title)
	fmt.Fprintln(bw, banner)
	fmt.Fprintf(bw, "Run ID:     %s\n", a.runID)
	fmt.Fprintf(bw, "Started:    %s\n", a.started.Format(time.DateTime))
	fmt.Fprintf(bw, "Anomalies:  %d\n", a.Total())
	fmt.Fprintln(bw)

	for _, c := range Categories {
		entries := a.Entries(c)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].ID < entries[j].ID
		})

		header := fmt.Sprintf("%s (%d)", strings.ToUpper(c.String()), len(entries))
		fmt.Fprintln(bw, header)
		fmt.Fprintln(bw, strings.Repeat("-", len(header)))
		if len(entries) == 0 {
			fmt.Fprintln(bw, "None.")
		}
		for _, e := range entries {
			fmt.Fprintf(bw, "[%s] %s: %s\n", e.Time.Format(time.DateTime), displayID(e.ID), e.Reason)
		}
		fmt.Fprintln(bw)
	}

	s := a.Summary()
	fmt.Fprintln(bw, banner)
	fmt.Fprintln(bw, " SUMMARY")
	fmt.Fprintln(bw, banner)
	fmt.Fprintf(bw, "Total input rows:        %d\n", s.Input)
	fmt.Fprintf(bw, "Excluded by rule:        %d\n", s.Excluded)
	fmt.Fprintf(bw, "Matched:                 %d\n", s.Matched)
	fmt.Fprintf(bw, "Unmatched invoices:      %d\n", s.Unmatched)
	fmt.Fprintf(bw, "Missing customer:        %d\n", s.MissingCustomer)
	fmt.Fprintf(bw, "Absent from all outputs: %d\n", s.NotInReport)

	return bw.Flush()
}

// WriteFile renders the log to path, replacing any previous log.
func (a *Auditor) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	defer f.Close()

	if err := a.Render(f); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return f.Close()
}

func displayID(id string) string {
	if id == "" {
		return "(blank)"
	}
	return id
}

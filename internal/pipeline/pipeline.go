// =============================================================================
// Weekly Recon - Pipeline Module
// =============================================================================
//
// This module contains the core reconciliation run. It orchestrates one batch
// from feed loading to the upload files and the audit log.
//
// PROCESSING PIPELINE:
//   1. Load the feeds the report needs (reference, customers, payments or
//      the EDI shipment export)
//   2. Normalize payment rows and apply the exclusion rules
//   3. Allocate payments across invoice lines (or classify shipments)
//   4. Classify records into output groups and accounts
//   5. Build the report tables
//   6. Write the output files
//   7. Write the audit log
//
// CONCURRENCY:
//   A run is a single synchronous pass. Loaded tables are read-only after
//   loading; nothing is shared between runs.
//
// =============================================================================

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carrierledger/weekly-recon/internal/allocation"
	"github.com/carrierledger/weekly-recon/internal/audit"
	"github.com/carrierledger/weekly-recon/internal/classify"
	"github.com/carrierledger/weekly-recon/internal/config"
	"github.com/carrierledger/weekly-recon/internal/logger"
	"github.com/carrierledger/weekly-recon/internal/report"
	"github.com/carrierledger/weekly-recon/pkg/utils"
)

// Output group names used for file naming and workbook sheets.
const (
	GroupILS  = "ILS"
	GroupSHIP = "SHIP"
	GroupAll  = "ALL"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of one run.
type Result struct {
	Report config.ReportType

	// RunID is the id stamped into the audit log.
	RunID uuid.UUID

	// OutputFiles are the written report files. Empty on a dry run.
	OutputFiles []string

	// AuditLog is the written audit log path. Empty on a dry run.
	AuditLog string

	DryRun bool

	// Summary holds the auditor's batch counts.
	Summary audit.Summary

	// Anomalies is the number of audit entries across all categories.
	Anomalies int

	// Categories holds the entry count of every category with entries.
	Categories map[audit.Category]int

	Stats Stats
}

// Stats contains statistics about the run.
type Stats struct {
	// RowsRead is the number of rows in the primary feed.
	RowsRead int

	// RowsWritten counts output rows per table.
	RowsWritten map[string]int

	// ProcessingTime is the time taken by the run.
	ProcessingTime time.Duration
}

// output is what a report builder hands to the writers.
type output struct {
	tables []*report.Table

	// groupBy selects the spaced "cleaned" layout for CSV output.
	groupBy []string

	// bom prefixes CSV output with a UTF-8 byte order mark.
	bom bool
}

// =============================================================================
// PIPELINE STRUCTURE
// =============================================================================

// Pipeline runs reports against one configuration.
type Pipeline struct {
	cfg        *config.MainConfig
	classifier *classify.Classifier
	dates      classify.DateCodec
	fee        allocation.FeeSettings
	files      *utils.FileManager
	now        func() time.Time
	auditOpts  []audit.Option
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces time.Now for the audit log and the history date.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
		p.auditOpts = append(p.auditOpts, audit.WithClock(now))
	}
}

// WithRunID fixes the audit run id.
func WithRunID(id uuid.UUID) Option {
	return func(p *Pipeline) {
		p.auditOpts = append(p.auditOpts, audit.WithRunID(id))
	}
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a Pipeline.
//
// PARAMETERS:
//   - cfg: The loaded configuration, defaults applied.
//
// RETURNS:
//   - A Pipeline, or an error when a rule table does not compile.
func New(cfg *config.MainConfig, opts ...Option) (*Pipeline, error) {
	classifier, err := classify.New(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}

	fee, err := allocation.NewFeeSettings(cfg.Rules.CardFee)
	if err != nil {
		return nil, err
	}

	files := utils.NewFileManager(cfg.OutputDir, cfg.ArchiveDir)
	files.UseTimestampSubdirs = cfg.ArchiveByDate

	p := &Pipeline{
		cfg:        cfg,
		classifier: classifier,
		dates:      classifier.Dates(),
		fee:        fee,
		files:      files,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// run carries the state of one batch.
type run struct {
	*Pipeline
	report config.ReportType
	aud    *audit.Auditor
	log    zerolog.Logger
	stats  *Stats
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes one report. The logger is taken from ctx.
//
// RETURNS:
//   - A Result with output paths and audit counts.
//   - An error for fatal problems: unreadable feeds, missing columns,
//     unwritable outputs. Row-level problems are audit entries instead.
func (p *Pipeline) Run(ctx context.Context, rt config.ReportType, dryRun bool) (*Result, error) {
	startTime := time.Now()
	log := logger.FromContext(ctx).With().Str("report", string(rt)).Logger()

	opts := append([]audit.Option{audit.WithLogger(log)}, p.auditOpts...)
	aud := audit.New(fmt.Sprintf("Weekly Recon - %s %s", rt, p.cfg.WeekLabel), opts...)

	r := &run{
		Pipeline: p,
		report:   rt,
		aud:      aud,
		log:      log,
		stats:    &Stats{RowsWritten: make(map[string]int)},
	}

	log.Info().Str("run_id", aud.RunID().String()).Bool("edi", rt.IsEDI()).Bool("dry_run", dryRun).Msg("Starting run")

	// =========================================================================
	// STEP 1: BUILD REPORT TABLES
	// =========================================================================
	// Each builder loads its own feeds, so a load failure aborts the batch
	// before anything is written.

	out, err := r.build(ctx)
	if err != nil {
		return nil, err
	}

	for _, t := range out.tables {
		r.stats.RowsWritten[t.Name] = t.Len()
		log.Debug().Str("table", t.Name).Int("rows", t.Len()).Msg("Built table")
	}

	result := &Result{
		Report:     rt,
		RunID:      aud.RunID(),
		DryRun:     dryRun,
		Categories: make(map[audit.Category]int),
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 2: WRITE OUTPUT FILES
	// =========================================================================

	if !dryRun {
		files, err := r.writeOutputs(out)
		if err != nil {
			return nil, err
		}
		result.OutputFiles = files

		// =====================================================================
		// STEP 3: WRITE AUDIT LOG
		// =====================================================================

		auditPath := p.files.OutputPath(p.outputName(p.cfg.AuditLogName, rt, GroupAll, ".txt"))
		if err := aud.WriteFile(auditPath); err != nil {
			return nil, fmt.Errorf("failed to write audit log: %w", err)
		}
		result.AuditLog = auditPath
	}

	result.Summary = aud.Summary()
	result.Anomalies = aud.Total()
	for _, c := range audit.Categories {
		if n := aud.Count(c); n > 0 {
			result.Categories[c] = n
		}
	}
	r.stats.ProcessingTime = time.Since(startTime)
	result.Stats = *r.stats

	log.Info().
		Int("rows", result.Stats.RowsRead).
		Int("anomalies", result.Anomalies).
		Dur("elapsed", result.Stats.ProcessingTime).
		Msg("Run complete")

	return result, nil
}

// build dispatches to the report builder.
func (r *run) build(ctx context.Context) (*output, error) {
	switch r.report {
	case config.ReportCleaned:
		return r.buildCleaned(ctx)
	case config.ReportPayments:
		return r.buildPayments(ctx)
	case config.ReportCardFee:
		return r.buildCardFee(ctx)
	case config.ReportILSIncome:
		return r.buildILSIncome(ctx)
	case config.ReportILSBills:
		return r.buildILSBills(ctx)
	case config.ReportShipIncome:
		return r.buildShipIncome(ctx)
	case config.ReportShipBills:
		return r.buildShipBills(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownReport, r.report)
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

// outputName expands a name format for one report group.
func (p *Pipeline) outputName(format string, rt config.ReportType, group, ext string) string {
	return utils.GenerateOutputFileName(format, map[string]string{
		"group":  group,
		"report": string(rt),
		"week":   p.cfg.WeekLabel,
	}, ext)
}

// writeOutputs writes every table of out in the configured format.
func (r *run) writeOutputs(out *output) ([]string, error) {
	if err := r.files.EnsureDirectories(); err != nil {
		return nil, err
	}

	if strings.EqualFold(r.cfg.OutputFormat, "xlsx") {
		path := r.files.OutputPath(r.outputName(r.cfg.OutputNameFormat, r.report, GroupAll, ".xlsx"))
		if err := report.WriteXLSX(path, out.tables...); err != nil {
			return nil, err
		}
		r.log.Info().Str("file", path).Msg("Wrote workbook")
		return []string{path}, nil
	}

	seen := make(map[string]bool, len(out.tables))
	var paths []string
	for _, t := range out.tables {
		path := r.files.OutputPath(r.outputName(r.cfg.OutputNameFormat, r.report, t.Name, ".csv"))
		if seen[path] {
			return nil, fmt.Errorf("output name format %q gives %s for more than one group; add {group}", r.cfg.OutputNameFormat, path)
		}
		seen[path] = true

		opts := report.CSVOptions{BOM: out.bom}
		var err error
		if len(out.groupBy) > 0 {
			err = report.WriteGroupedCSV(path, t, opts, out.groupBy...)
		} else {
			err = report.WriteCSV(path, t, opts)
		}
		if err != nil {
			return nil, err
		}

		r.log.Info().Str("file", path).Int("rows", t.Len()).Msg("Wrote report")
		paths = append(paths, path)
	}
	return paths, nil
}

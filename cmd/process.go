// =============================================================================
// Weekly Recon - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs one or more reports
// for the week's batch.
//
// COMMAND USAGE:
//   recon process --report <type>[,<type>...] [flags]
//
// FLAGS:
//   --report        : Report(s) to produce (required)
//   --dry-run       : Run the reports without writing any file
//   --week          : Week label used in output names
//   --transactions  : Raw payment export (overrides config)
//   --shipments     : EDI shipment export (overrides config)
//   --reference     : Combined invoice report (overrides config)
//   --customers     : Customer list (overrides config)
//   --output        : Output directory (overrides config)
//
// PROCESSING PIPELINE:
//   1. Apply flag overrides to the loaded configuration
//   2. Build the pipeline (compile the rule tables)
//   3. Run each requested report in turn; each writes its own files and
//      audit log
//   4. Print a completion summary with the anomaly counts of every report
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/carrierledger/weekly-recon/internal/audit"
	"github.com/carrierledger/weekly-recon/internal/config"
	"github.com/carrierledger/weekly-recon/internal/logger"
	"github.com/carrierledger/weekly-recon/internal/pipeline"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	reportNames []string
	dryRun      bool

	weekLabel        string
	transactionsFile string
	shipmentsFile    string
	referenceFile    string
	customersFile    string
	outputDir        string
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Produce upload files for the week's batch",
	Long: `The process command runs the requested reports against the configured
feeds. Several reports may be given; they run in order and independently.

For each report:
  - The upload file(s) are written to the output directory
  - The audit log is written next to them
  - Row-level problems never stop the run; they are listed in the audit log

A missing feed or a missing required column stops that report with an error
and nothing is written for it.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringSliceVarP(&reportNames, "report", "r", nil, "Report(s) to produce, comma separated")
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run without writing output files")
	processCmd.Flags().StringVar(&weekLabel, "week", "", "Week label used in output names")
	processCmd.Flags().StringVar(&transactionsFile, "transactions", "", "Raw payment export")
	processCmd.Flags().StringVar(&shipmentsFile, "shipments", "", "EDI shipment export")
	processCmd.Flags().StringVar(&referenceFile, "reference", "", "Combined invoice report")
	processCmd.Flags().StringVar(&customersFile, "customers", "", "Customer list")
	processCmd.Flags().StringVar(&outputDir, "output", "", "Output directory")

	processCmd.MarkFlagRequired("report")
}

// applyOverrides copies the non-empty file flags into cfg.
func applyOverrides(cfg *config.MainConfig) {
	overrides := []struct {
		flag   string
		target *string
	}{
		{weekLabel, &cfg.WeekLabel},
		{transactionsFile, &cfg.TransactionsFile},
		{shipmentsFile, &cfg.ShipmentsFile},
		{referenceFile, &cfg.ReferenceFile},
		{customersFile, &cfg.CustomersFile},
		{outputDir, &cfg.OutputDir},
	}
	for _, o := range overrides {
		if o.flag != "" {
			*o.target = o.flag
		}
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(ctx context.Context) error {
	startTime := time.Now()
	log := logger.FromContext(ctx)

	// =========================================================================
	// STEP 1: RESOLVE REPORTS AND CONFIGURATION
	// =========================================================================

	var reports []config.ReportType
	for _, name := range reportNames {
		rt, err := config.ParseReportType(name)
		if err != nil {
			return err
		}
		reports = append(reports, rt)
	}

	applyOverrides(mainConfig)

	p, err := pipeline.New(mainConfig)
	if err != nil {
		return err
	}

	fmt.Println("=== Weekly Recon ===")
	if dryRun {
		fmt.Println("Dry run: no files will be written")
	}

	// =========================================================================
	// STEP 2: RUN REPORTS
	// =========================================================================
	// Reports run one after another. Each run loads its own feeds and keeps
	// its own auditor, so one failing report does not stop the others.

	var failed int
	for _, rt := range reports {
		result, err := p.Run(ctx, rt, dryRun)
		if err != nil {
			failed++
			log.Error().Err(err).Str("report", string(rt)).Msg("Report failed")
			fmt.Printf("  ✗ %s: %v\n", rt, err)
			continue
		}
		printOutcome(result)
	}

	// =========================================================================
	// STEP 3: PRINT SUMMARY
	// =========================================================================

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Reports:         %d\n", len(reports))
	fmt.Printf("Successful:      %d\n", len(reports)-failed)
	fmt.Printf("Errors:          %d\n", failed)
	fmt.Printf("Time elapsed:    %s\n", time.Since(startTime).Round(time.Millisecond))

	if failed > 0 {
		return fmt.Errorf("%d of %d report(s) failed", failed, len(reports))
	}
	return nil
}

// printOutcome prints the files and anomaly counts of one report.
func printOutcome(r *pipeline.Result) {
	fmt.Printf("  ✓ %s: %d input row(s), %d anomaly(ies)\n", r.Report, r.Summary.Input, r.Anomalies)
	for _, f := range r.OutputFiles {
		fmt.Printf("      -> %s\n", filepath.Base(f))
	}
	if r.AuditLog != "" {
		fmt.Printf("      audit log: %s\n", r.AuditLog)
	}
	for _, c := range audit.Categories {
		if n := r.Categories[c]; n > 0 {
			fmt.Printf("      %-24s %d\n", c.String()+":", n)
		}
	}
}

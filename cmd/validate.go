// =============================================================================
// Weekly Recon - Validate Command
// =============================================================================
//
// The 'validate' command checks the configured feeds without producing any
// output: each feed must be readable and carry its required columns. Values
// that do not parse as their column's type are reported as warnings.
//
// COMMAND USAGE:
//   recon validate [--report <type>] [--log <file>]
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carrierledger/weekly-recon/internal/config"
	"github.com/carrierledger/weekly-recon/internal/logger"
	"github.com/carrierledger/weekly-recon/internal/pipeline"
	"github.com/carrierledger/weekly-recon/internal/validation"
)

var (
	// validateReport limits validation to the feeds of one report.
	validateReport string

	// validateLog receives every finding when set.
	validateLog string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configured feeds without processing",
	Long: `Validate loads the configuration and every configured feed, and checks
each feed against its column schema. With --report only the feeds that report
reads are checked, against that report's schema.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.FromContext(cmd.Context())

		var rt config.ReportType
		if validateReport != "" {
			var err error
			if rt, err = config.ParseReportType(validateReport); err != nil {
				return err
			}
		}

		if _, err := pipeline.New(mainConfig); err != nil {
			return fmt.Errorf("rules: %w", err)
		}
		fmt.Println("Configuration OK")

		checks := pipeline.ValidateFeeds(mainConfig, rt)
		if len(checks) == 0 {
			fmt.Println("No feeds configured.")
			return nil
		}

		var (
			failed   int
			findings []*validation.ValidationError
		)
		for _, c := range checks {
			path := mainConfig.InputPath(c.Feed.Path)
			switch {
			case c.Err != nil:
				failed++
				fmt.Printf("  ✗ %s (%s): %v\n", c.Feed.Schema.Name, path, c.Err)
			case !c.Result.IsValid:
				failed++
				fmt.Printf("  ✗ %s (%s)\n", c.Feed.Schema.Name, path)
			default:
				fmt.Printf("  ✓ %s (%s): %d row(s), %d warning(s)\n",
					c.Feed.Schema.Name, path, c.Result.RowsValidated, c.Result.WarningCount)
			}
			if c.Result != nil && len(c.Result.Errors) > 0 {
				fmt.Print(validation.FormatErrors(c.Result.Errors))
				findings = append(findings, c.Result.Errors...)
			}
			log.Debug().Str("feed", c.Feed.Schema.Name).Bool("valid", c.Err == nil && c.Result.IsValid).Msg("Validated feed")
		}

		if validateLog != "" {
			if err := validation.WriteErrorLog(findings, validateLog); err != nil {
				return err
			}
			fmt.Printf("Findings written to %s\n", validateLog)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d feed(s) failed validation", failed, len(checks))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&validateReport, "report", "r", "", "Check only the feeds of this report")
	validateCmd.Flags().StringVar(&validateLog, "log", "", "Write all findings to this file")
}

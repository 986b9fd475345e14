// =============================================================================
// Weekly Recon - History Command
// =============================================================================
//
// The 'history' command closes the week: it sums this week's ILS and SHIP
// payment uploads, appends the totals to the history file and copies the
// uploads to the archive directory.
//
// COMMAND USAGE:
//   recon history [--week <label>]
//
// The payments report for the same week label must have been produced
// first.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carrierledger/weekly-recon/internal/pipeline"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Append the week's payment totals to the history file",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyOverrides(mainConfig)

		p, err := pipeline.New(mainConfig)
		if err != nil {
			return err
		}

		result, err := p.History(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("ILS:    %s\n", result.Row.ILS.StringFixed(2))
		fmt.Printf("SHIP:   %s\n", result.Row.SHIP.StringFixed(2))
		fmt.Printf("Total:  %s\n", result.Row.Total().StringFixed(2))
		fmt.Printf("Appended to %s\n", result.HistoryFile)
		for _, a := range result.Archived {
			fmt.Printf("Archived %s\n", a)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&weekLabel, "week", "", "Week label of the payment uploads")
	historyCmd.Flags().StringVar(&outputDir, "output", "", "Directory holding the payment uploads")
}

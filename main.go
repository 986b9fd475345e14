// =============================================================================
// Weekly Recon - Main Entry Point
// =============================================================================
//
// This is the main entry point for the recon CLI. It delegates to the Cobra
// commands in the cmd package.
//
// USAGE:
//   recon process --report <type>  - Produce upload files for the week
//   recon validate                 - Check the configured feeds
//   recon history                  - Append the week's payment totals
//   recon version                  - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : Feed loading, allocation, classification, audit, reports
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/carrierledger/weekly-recon/cmd"
)

func main() {
	cmd.Execute()
}

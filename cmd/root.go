// =============================================================================
// Weekly Recon - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand is
// attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (recon)
//   ├── processCmd (recon process)
//   ├── validateCmd (recon validate)
//   ├── historyCmd (recon history)
//   └── versionCmd (recon version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads a .env file from the working directory, if present
//   2. Loads the main configuration (--config, else $RECON_CONFIG)
//   3. Sets up the console logger and stores it in the command context
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carrierledger/weekly-recon/internal/config"
	"github.com/carrierledger/weekly-recon/internal/logger"
)

// configEnv names the config file when --config is not given.
const configEnv = "RECON_CONFIG"

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging regardless of the configured level.
var verbose bool

// mainConfig is loaded once by the root command before a subcommand runs.
var mainConfig *config.MainConfig

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "recon",
	Short: "Weekly Recon - Carrier payment and EDI reconciliation",
	Long: `Weekly Recon turns the weekly payment export and the EDI shipment export
into upload files for the accounting system, with an audit log of every row
that was excluded, unmatched or could not be classified.

Reports:
  cleaned      Every allocated payment line, grouped by date and method
  payments     ILS and SHIP payment uploads
  ccfee        Merchant fee invoices for card payments
  ils-income   ILS carrier invoices
  ils-bills    ILS carrier bills
  ship-income  SHIP carrier invoices
  ship-bills   SHIP carrier bills

Example Usage:
  recon process --report payments --week "(03.09.25)_(03.15.25)"
  recon process --report ils-income,ils-bills --dry-run
  recon validate
  recon history`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		mainConfig = cfg

		log := logger.New(cfg.LogLevel)
		if verbose {
			log = log.Level(zerolog.DebugLevel)
		}
		cmd.SetContext(logger.WithContext(cmd.Context(), log))
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file (default is $"+configEnv+" or config.yaml)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// loadConfig resolves and loads the main configuration. A missing default
// config.yaml yields the built-in defaults; a missing file that was asked
// for explicitly is an error.
func loadConfig(cmd *cobra.Command) (*config.MainConfig, error) {
	path, explicit := cfgFile, cmd.Flags().Changed("config")
	if !explicit {
		if env := os.Getenv(configEnv); env != "" {
			path, explicit = env, true
		}
	}

	cfg, err := config.LoadMainConfig(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("failed to load main config: %w", err)
}

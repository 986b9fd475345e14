package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrierledger/weekly-recon/internal/config"
)

func TestLoadConfigFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("week_label: wk11\noutput_format: xlsx\n"), 0644))

	cfgFile = filepath.Join(dir, "config.yaml")
	t.Setenv(configEnv, path)

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "wk11", cfg.WeekLabel)
	assert.Equal(t, "xlsx", cfg.OutputFormat)
}

func TestLoadConfigMissingDefaultUsesDefaults(t *testing.T) {
	cfgFile = filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(configEnv, "")

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfigMissingEnvFileFails(t *testing.T) {
	cfgFile = "config.yaml"
	t.Setenv(configEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := loadConfig(rootCmd)
	require.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	t.Cleanup(func() { weekLabel, shipmentsFile = "", "" })
	weekLabel = "(03.09.25)_(03.15.25)"
	shipmentsFile = "edi.csv"

	cfg := config.Default()
	cfg.TransactionsFile = "payments.csv"
	applyOverrides(cfg)

	assert.Equal(t, "(03.09.25)_(03.15.25)", cfg.WeekLabel)
	assert.Equal(t, "edi.csv", cfg.ShipmentsFile)
	assert.Equal(t, "payments.csv", cfg.TransactionsFile)
}

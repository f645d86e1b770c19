package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  host: 0.0.0.0
  port: 8080
logging:
  level: info
database:
  dsn: postgres://localhost/invoices
  maxOpenConns: 10
ipfs:
  gatewayUrl: http://localhost:5001
  ratePerMinute: 60
ethereum:
  rpcUrl: http://localhost:8545
  contractAddress: "0xabc"
  gasHeadroomPct: 20
pipeline:
  batchSize: 50
  batchesPerRun: 4
scheduler:
  uploadInterval: 30s
  batchInterval: 1m
  submitInterval: 1m
  sweepInterval: 5m
`

func writeSampleConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := writeSampleConfig(t)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "postgres://localhost/invoices", cfg.Database.DSN)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, "http://localhost:5001", cfg.IPFS.GatewayURL)
	assert.Equal(t, 60, cfg.IPFS.RatePerMinute)
	assert.Equal(t, "0xabc", cfg.Ethereum.ContractAddress)
	assert.Equal(t, 20, cfg.Ethereum.GasHeadroomPct)
	assert.Equal(t, 50, cfg.Pipeline.BatchSize)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestApplyCLI_OverridesLogLevel(t *testing.T) {
	path := writeSampleConfig(t)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.ApplyCLI(&CLIOptions{LogLevel: "debug"})
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyCLI_LeavesLogLevelWhenUnset(t *testing.T) {
	path := writeSampleConfig(t)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.ApplyCLI(&CLIOptions{})
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParseCLI_DefaultsConfigPath(t *testing.T) {
	opts, err := ParseCLI(nil)
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", opts.ConfigPath)
	assert.False(t, opts.DryRun)
}

func TestParseCLI_ParsesFlags(t *testing.T) {
	opts, err := ParseCLI([]string{"--config", "other.yaml", "--dry-run", "--log-level", "debug"})
	require.NoError(t, err)
	assert.Equal(t, "other.yaml", opts.ConfigPath)
	assert.True(t, opts.DryRun)
	assert.Equal(t, "debug", opts.LogLevel)
}

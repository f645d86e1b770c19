// Package config loads the process configuration: a YAML file
// (os.ReadFile + yaml.Unmarshal), with go-flags-parsed CLI flags layered
// on top for the handful of settings an operator needs to override
// without editing the file (config path, dry-run, log level).
package config

import (
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration: ambient server/logging/
// database settings plus the domain stack (IPFS gateway, chain RPC,
// contract address) and the pipeline kernel's per-job tunables.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Database struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"maxOpenConns"`
		MaxIdleConns    int           `yaml:"maxIdleConns"`
		ConnMaxIdleTime time.Duration `yaml:"connMaxIdleTime"`
		ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	} `yaml:"database"`

	IPFS struct {
		GatewayURL    string        `yaml:"gatewayUrl"`
		RatePerMinute int           `yaml:"ratePerMinute"`
		RetryBase     time.Duration `yaml:"retryBase"`
		MaxRetries    int           `yaml:"maxRetries"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"ipfs"`

	Ethereum struct {
		RPCURL          string `yaml:"rpcUrl"`
		PrivateKey      string `yaml:"privateKey"`
		ContractAddress string `yaml:"contractAddress"`
		MaxGasPriceWei  string `yaml:"maxGasPriceWei"`
		GasHeadroomPct  int    `yaml:"gasHeadroomPct"`
		RetryBase       time.Duration `yaml:"retryBase"`
		MaxRetries      int           `yaml:"maxRetries"`
	} `yaml:"ethereum"`

	Pipeline struct {
		MaxInvoicesPerRun   int           `yaml:"maxInvoicesPerRun"`
		ConcurrentUploads   int           `yaml:"concurrentUploads"`
		BatchSize           int           `yaml:"batchSize"`
		BatchesPerRun       int           `yaml:"batchesPerRun"`
		ConfirmationBlocks  uint64        `yaml:"confirmationBlocks"`
		ConfirmationTimeout time.Duration `yaml:"confirmationTimeout"`
		SubmitPause         time.Duration `yaml:"submitPause"`
	} `yaml:"pipeline"`

	Scheduler struct {
		UploadInterval time.Duration `yaml:"uploadInterval"`
		BatchInterval  time.Duration `yaml:"batchInterval"`
		SubmitInterval time.Duration `yaml:"submitInterval"`
		SweepInterval  time.Duration `yaml:"sweepInterval"`
	} `yaml:"scheduler"`
}

// CLIOptions are the flags go-flags parses on top of the YAML file.
type CLIOptions struct {
	ConfigPath string `short:"c" long:"config" description:"path to the YAML config file" default:"config.yaml"`
	DryRun     bool   `long:"dry-run" description:"run all jobs in read-only dry-run mode"`
	LogLevel   string `long:"log-level" description:"override the configured log level"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCLI parses os.Args (excluding argv[0]) into CLIOptions.
func ParseCLI(args []string) (*CLIOptions, error) {
	var opts CLIOptions
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return &opts, nil
}

// ApplyCLI layers CLI overrides onto a loaded Config.
func (c *Config) ApplyCLI(opts *CLIOptions) {
	if opts.LogLevel != "" {
		c.Logging.Level = opts.LogLevel
	}
}

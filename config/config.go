package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PipelineConfig is the complete configuration for a corpus-builder run.
type PipelineConfig struct {
	TNDS    TNDSConfig    `yaml:"tnds"`
	NPTG    NPTGConfig    `yaml:"nptg"`
	NaPTAN  NaPTANConfig  `yaml:"naptan"`
	NOC     NOCConfig     `yaml:"noc"`
	BODS    BODSConfig    `yaml:"bods"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// TNDSConfig configures the TNDS FTP mirror and conversion stage.
type TNDSConfig struct {
	FTPHost            string `yaml:"ftpHost"`
	FTPUser            string `yaml:"ftpUser"`
	FTPPassword        string `yaml:"ftpPassword"`
	RemoteDir          string `yaml:"remoteDir"`
	ConcurrentDocuments int   `yaml:"concurrentDocuments"`
	RetryAttempts      int    `yaml:"retryAttempts"`
	RetryIntervalSec   int    `yaml:"retryIntervalSec"`
	SlugSnapshotURL    string `yaml:"slugSnapshotUrl"`
}

// NPTGConfig configures the NPTG collaborator fetch.
type NPTGConfig struct {
	APIURL string `yaml:"apiUrl"`
}

// NaPTANConfig configures the NaPTAN collaborator fetch.
type NaPTANConfig struct {
	APIURL string `yaml:"apiUrl"`
}

// NOCConfig configures the NOC collaborator fetch.
type NOCConfig struct {
	APIURL string `yaml:"apiUrl"`
}

// BODSConfig configures the BODS (TfL) collaborator fetch.
type BODSConfig struct {
	APIURL    string `yaml:"apiUrl"`
	APIKeyEnv string `yaml:"apiKeyEnv"`
}

// OutputConfig configures where artefacts land on disk.
type OutputConfig struct {
	DataDir string `yaml:"dataDir"`
}

// LoggingConfig configures the ambient logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() *PipelineConfig {
	return &PipelineConfig{
		TNDS: TNDSConfig{
			FTPHost:             "ftp.tnds.basemap.co.uk",
			FTPUser:             "",
			FTPPassword:         "",
			RemoteDir:           "/TNDSV2.5",
			ConcurrentDocuments: 4,
			RetryAttempts:       3,
			RetryIntervalSec:    5,
			SlugSnapshotURL:     "https://github.com/xavier114fch/naptan/raw/gh-pages/data/tnds/all_slugs.json",
		},
		NPTG: NPTGConfig{
			APIURL: "https://naptan.api.dft.gov.uk/v1/nptg",
		},
		NaPTAN: NaPTANConfig{
			APIURL: "https://naptan.api.dft.gov.uk/v1/access-nodes",
		},
		NOC: NOCConfig{
			APIURL: "https://www.travelinedata.org.uk/noc/api/1.0/nocrecords.xml",
		},
		BODS: BODSConfig{
			APIURL:    "https://api.tfl.gov.uk/vehicle/siri/vm",
			APIKeyEnv: "TFL_API_KEY",
		},
		Output: OutputConfig{
			DataDir: "data",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to
// defaults for any field the file does not set.
func LoadConfig(configPath string) (*PipelineConfig, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}
	if !filepath.IsAbs(configPath) && strings.Contains(configPath, "..") {
		return nil, fmt.Errorf("invalid config file path: %s", configPath)
	}

	data, err := os.ReadFile(configPath) //nolint:gosec // path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the configuration to a YAML file.
func (c *PipelineConfig) SaveConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

// Validate checks the configuration for obviously invalid values.
func (c *PipelineConfig) Validate() error {
	if c.TNDS.ConcurrentDocuments <= 0 {
		return fmt.Errorf("tnds.concurrentDocuments must be positive")
	}
	if c.TNDS.RetryAttempts <= 0 {
		return fmt.Errorf("tnds.retryAttempts must be positive")
	}
	if c.TNDS.RetryIntervalSec <= 0 {
		return fmt.Errorf("tnds.retryIntervalSec must be positive")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s (valid: text, json)", c.Logging.Format)
	}
	if c.Output.DataDir == "" {
		return fmt.Errorf("output.dataDir cannot be empty")
	}
	return nil
}

// GenerateDefaultConfigFile writes the default configuration to disk.
func GenerateDefaultConfigFile(configPath string) error {
	return DefaultConfig().SaveConfig(configPath)
}

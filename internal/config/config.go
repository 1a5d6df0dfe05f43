package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings for one fleet update run.
// All values are immutable once the run starts; flags may override
// individual fields before validation.
type Config struct {
	// Inventory is the path to the newline-delimited host list.
	Inventory string `yaml:"inventory"`
	// RemoteFile is the absolute path of the configuration file on each host.
	RemoteFile string `yaml:"remote_file"`
	// OldValue is the literal string to replace.
	OldValue string `yaml:"old_value"`
	// NewValue is the literal replacement string.
	NewValue string `yaml:"new_value"`
	// User is the SSH username for all hosts.
	User string `yaml:"user"`
	// KeyFile is the path to the SSH private key. When empty the SSH agent
	// is used instead.
	KeyFile string `yaml:"key_file,omitempty"`
	// KnownHostsFile enables host key verification against the given file.
	// When empty, host keys are not verified.
	KnownHostsFile string `yaml:"known_hosts_file,omitempty"`
	// Concurrency bounds the number of hosts updated simultaneously.
	Concurrency int `yaml:"concurrency"`
	// ConnectTimeout bounds SSH session establishment per host.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// CommandTimeout bounds each remote command execution.
	CommandTimeout time.Duration `yaml:"command_timeout"`
	// ReportFile is where the YAML run report is written. Empty disables it.
	ReportFile string `yaml:"report_file,omitempty"`
	// BackupFetchDir, when set, makes each workflow download a local copy of
	// the remote file before mutating it.
	BackupFetchDir string `yaml:"backup_fetch_dir,omitempty"`
	// LogFile, when set, tees log output to the given file.
	LogFile string `yaml:"log_file,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for run settings.
	DefaultConfigFilename = "fleetpatch.yaml"

	// DefaultConcurrency bounds simultaneous host workflows when unset.
	DefaultConcurrency = 5

	// DefaultConnectTimeout bounds SSH session establishment when unset.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultCommandTimeout bounds each remote command when unset.
	DefaultCommandTimeout = 30 * time.Second

	// DefaultFilePermissions is the file mode for written config and reports.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInventoryRequired is returned when the inventory path is missing.
	errInventoryRequired = errors.New("inventory path must be provided")
	// errRemoteFileRequired is returned when the remote file path is missing.
	errRemoteFileRequired = errors.New("remote file path must be provided")
	// errOldValueRequired is returned when the value to replace is missing.
	errOldValueRequired = errors.New("old value must be provided")
	// errUserRequired is returned when the SSH username is missing.
	errUserRequired = errors.New("ssh user must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions: the file may reference key material.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults for unset values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Inventory == "" {
		return errInventoryRequired
	}

	if cfg.RemoteFile == "" {
		return errRemoteFileRequired
	}

	if cfg.OldValue == "" {
		return errOldValueRequired
	}

	if cfg.User == "" {
		return errUserRequired
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}

	return nil
}

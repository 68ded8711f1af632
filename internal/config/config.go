package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/alarm-agent/internal/validate"
)

// Source types.
const (
	SourceREST     = "rest"
	SourcePostgres = "postgres"
	SourceFile     = "file"
)

// Store types.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

const (
	// DefaultConfigFilename is the default filename for agent settings.
	DefaultConfigFilename = "alarm-agent.yaml"
	// DefaultStoreFilename is the default location of the device store.
	DefaultStoreFilename = "alarm-agent-store.yaml"
	// DefaultAlarmsFilename is the default offline alarm file.
	DefaultAlarmsFilename = "alarm-agent-alarms.yaml"
	// DefaultLockFilename is the default cross-process lock file.
	DefaultLockFilename = "alarm-agent.lock"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second
	// DefaultSyncInterval is the default pause between reconciliation passes.
	DefaultSyncInterval = time.Minute
	// DefaultQueueLimit is the default number of pending notifications.
	DefaultQueueLimit = 64

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Config holds the settings of the alarm agent.
type Config struct {
	// OwnerID is the device owner whose alarms are scheduled.
	OwnerID string `validate:"required" yaml:"owner_id"`
	// LogLevel is the initial log level; --log-level overrides it.
	LogLevel string `validate:"omitempty,oneof=debug info warn warning error fatal" yaml:"log_level,omitempty"`
	// Timeout bounds every remote call.
	Timeout time.Duration `validate:"gt=0" yaml:"timeout"`
	// SyncInterval is the pause between reconciliation passes in run mode.
	SyncInterval time.Duration `validate:"min=1s" yaml:"sync_interval"`
	// QueueLimit caps the number of pending local notifications.
	QueueLimit int `validate:"min=1" yaml:"queue_limit"`
	// HealthAddress enables the gRPC health endpoint when set.
	HealthAddress string `validate:"omitempty,hostname_port" yaml:"health_address,omitempty"`
	// LockFile serialises passes across processes.
	LockFile string `validate:"required" yaml:"lock_file"`
	// Source selects where alarms are read from.
	Source SourceConfig `yaml:"source"`
	// Store selects where the ledger and pending notifications live.
	Store StoreConfig `yaml:"store"`
}

// SourceConfig describes the remote alarm store.
type SourceConfig struct {
	// Type is one of rest, postgres or file.
	Type string `validate:"oneof=rest postgres file" yaml:"type"`
	// URL is the PostgREST base URL.
	URL string `validate:"required_if=Type rest" yaml:"url,omitempty"`
	// APIKey authenticates REST calls.
	APIKey string `yaml:"api_key,omitempty"`
	// DSN is the Postgres connection string.
	DSN string `validate:"required_if=Type postgres" yaml:"dsn,omitempty"`
	// File is the YAML file holding alarm records.
	File string `validate:"required_if=Type file" yaml:"file,omitempty"`
}

// StoreConfig describes the device-local key-value store.
type StoreConfig struct {
	// Type is file or sqlite.
	Type string `validate:"oneof=file sqlite" yaml:"type"`
	// Path is the store location.
	Path string `validate:"required" yaml:"path"`
}

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidSourceURL is returned for a REST source URL that does not parse.
	errInvalidSourceURL = errors.New("invalid source url")
)

// Load reads configuration from the provided path and validates it.
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

// Save writes cfg to the provided path.
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

	// The file may carry an API key or a DSN with a password.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills in defaults and checks the settings.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	if cfg.Source.Type != SourceREST {
		return nil
	}

	if _, err := url.ParseRequestURI(cfg.Source.URL); err != nil {
		return fmt.Errorf("%w: %w", errInvalidSourceURL, err)
	}

	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}

	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = DefaultQueueLimit
	}

	if cfg.LockFile == "" {
		cfg.LockFile = DefaultLockFilename
	}

	if cfg.Source.Type == "" {
		cfg.Source.Type = SourceFile
	}

	if cfg.Source.Type == SourceFile && cfg.Source.File == "" {
		cfg.Source.File = DefaultAlarmsFilename
	}

	if cfg.Store.Type == "" {
		cfg.Store.Type = StoreFile
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStoreFilename
	}
}

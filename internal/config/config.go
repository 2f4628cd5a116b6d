package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
	FilesDir string `toml:"files_dir"`
}

// Chain contains the ledger connection and transaction safety settings.
type Chain struct {
	RPCURL                     string `toml:"rpc_url"`
	ChainID                    int64  `toml:"chain_id"`
	ClassFactoryAddress        string `toml:"class_factory_address"`
	PlatformOperatorAddress    string `toml:"platform_operator_address"`
	PrivateKeyEnv              string `toml:"private_key_env"`
	GasMarginPercent           int    `toml:"gas_margin_percent"`
	FallbackGasPriceWei        int64  `toml:"fallback_gas_price_wei"`
	ReceiptPollIntervalSeconds int    `toml:"receipt_poll_interval_seconds"`
	ReceiptTimeoutSeconds      int    `toml:"receipt_timeout_seconds"`
	ReceiptRetryDelaySeconds   int    `toml:"receipt_retry_delay_seconds"`
	FeeConfirmations           int    `toml:"fee_confirmations"`
}

// Storage contains the permanent storage backend settings.
type Storage struct {
	APIURL                string `toml:"api_url"`
	GatewayURL            string `toml:"gateway_url"`
	QuotePath             string `toml:"quote_path"`
	UploadPath            string `toml:"upload_path"`
	RegisterPath          string `toml:"register_path"`
	AuthToken             string `toml:"auth_token"`
	AppName               string `toml:"app_name"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Listing contains the commerce listings backend settings.
type Listing struct {
	APIURL                string   `toml:"api_url"`
	AuthToken             string   `toml:"auth_token"`
	ModeratorWallets      []string `toml:"moderator_wallets"`
	DefaultCurrency       string   `toml:"default_currency"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
}

// Publishing contains per-book defaults applied during import and minting.
type Publishing struct {
	MintAmount                int     `toml:"mint_amount"`
	MaxSupply                 uint64  `toml:"max_supply"`
	RoyaltyBasisPoints        int64   `toml:"royalty_basis_points"`
	DefaultPrice              float64 `toml:"default_price"`
	MinimumPrice              float64 `toml:"minimum_price"`
	DefaultEditionName        string  `toml:"default_edition_name"`
	DefaultEditionDescription string  `toml:"default_edition_description"`
	DefaultLanguage           string  `toml:"default_language"`
	ItemDelaySeconds          int     `toml:"item_delay_seconds"`
	StoreURL                  string  `toml:"store_url"`
	SupportContact            string  `toml:"support_contact"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Metrics contains the Prometheus pushgateway settings.
type Metrics struct {
	PushgatewayURL string `toml:"pushgateway_url"`
	JobName        string `toml:"job_name"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for bookpub.
//
// Configuration sections by subsystem:
//   - Paths: state, log, and input file directories
//   - Chain: RPC endpoint, contracts, signer, and transaction safety
//   - Storage: quote/upload/register endpoints for permanent storage
//   - Listing: commerce listings backend
//   - Publishing: import defaults and mint settings
//   - Notifications: ntfy push notification settings
//   - Metrics: Prometheus pushgateway
//   - Logging: log format, level, and rotation
type Config struct {
	Paths         Paths         `toml:"paths"`
	Chain         Chain         `toml:"chain"`
	Storage       Storage       `toml:"storage"`
	Listing       Listing       `toml:"listing"`
	Publishing    Publishing    `toml:"publishing"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bookpub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SessionDBPath returns the SQLite session store location.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.Paths.StateDir, "sessions.db")
}

// LockPath returns the batch driver lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "bookpub.lock")
}

// LogPath returns the rotating log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "bookpub.log")
}

// PrivateKey reads the signing key from the configured environment variable.
func (c *Config) PrivateKey() string {
	return strings.TrimSpace(os.Getenv(c.Chain.PrivateKeyEnv))
}

func (c *Config) ReceiptPollInterval() time.Duration {
	return time.Duration(c.Chain.ReceiptPollIntervalSeconds) * time.Second
}

func (c *Config) ReceiptTimeout() time.Duration {
	return time.Duration(c.Chain.ReceiptTimeoutSeconds) * time.Second
}

func (c *Config) ReceiptRetryDelay() time.Duration {
	return time.Duration(c.Chain.ReceiptRetryDelaySeconds) * time.Second
}

func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.Storage.RequestTimeoutSeconds) * time.Second
}

func (c *Config) ListingTimeout() time.Duration {
	return time.Duration(c.Listing.RequestTimeoutSeconds) * time.Second
}

func (c *Config) ItemDelay() time.Duration {
	return time.Duration(c.Publishing.ItemDelaySeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeChain()
	c.normalizeStorage()
	c.normalizeListing()
	c.normalizePublishing()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Metrics.PushgatewayURL = strings.TrimRight(strings.TrimSpace(c.Metrics.PushgatewayURL), "/")
	c.Metrics.JobName = strings.TrimSpace(c.Metrics.JobName)
	if c.Metrics.JobName == "" {
		c.Metrics.JobName = defaultMetricsJobName
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.FilesDir, err = expandPath(strings.TrimSpace(c.Paths.FilesDir)); err != nil {
		return fmt.Errorf("paths.files_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeChain() {
	c.Chain.RPCURL = strings.TrimSpace(c.Chain.RPCURL)
	c.Chain.ClassFactoryAddress = strings.TrimSpace(c.Chain.ClassFactoryAddress)
	c.Chain.PlatformOperatorAddress = strings.TrimSpace(c.Chain.PlatformOperatorAddress)
	c.Chain.PrivateKeyEnv = strings.TrimSpace(c.Chain.PrivateKeyEnv)
	if c.Chain.PrivateKeyEnv == "" {
		c.Chain.PrivateKeyEnv = defaultPrivateKeyEnv
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.APIURL = strings.TrimRight(strings.TrimSpace(c.Storage.APIURL), "/")
	c.Storage.GatewayURL = strings.TrimRight(strings.TrimSpace(c.Storage.GatewayURL), "/")
	if c.Storage.GatewayURL == "" {
		c.Storage.GatewayURL = defaultGatewayURL
	}
	c.Storage.AuthToken = strings.TrimSpace(c.Storage.AuthToken)
	if c.Storage.AuthToken == "" {
		if value, ok := os.LookupEnv(defaultStorageTokenEnv); ok {
			c.Storage.AuthToken = strings.TrimSpace(value)
		}
	}
	c.Storage.AppName = strings.TrimSpace(c.Storage.AppName)
	if c.Storage.AppName == "" {
		c.Storage.AppName = defaultAppName
	}
}

func (c *Config) normalizeListing() {
	c.Listing.APIURL = strings.TrimRight(strings.TrimSpace(c.Listing.APIURL), "/")
	c.Listing.AuthToken = strings.TrimSpace(c.Listing.AuthToken)
	if c.Listing.AuthToken == "" {
		if value, ok := os.LookupEnv(defaultListingTokenEnv); ok {
			c.Listing.AuthToken = strings.TrimSpace(value)
		}
	}
	c.Listing.DefaultCurrency = strings.ToUpper(strings.TrimSpace(c.Listing.DefaultCurrency))
	if c.Listing.DefaultCurrency == "" {
		c.Listing.DefaultCurrency = defaultListingCurrency
	}
	wallets := make([]string, 0, len(c.Listing.ModeratorWallets))
	for _, w := range c.Listing.ModeratorWallets {
		if w = strings.TrimSpace(w); w != "" {
			wallets = append(wallets, w)
		}
	}
	c.Listing.ModeratorWallets = wallets
}

func (c *Config) normalizePublishing() {
	c.Publishing.DefaultEditionName = strings.TrimSpace(c.Publishing.DefaultEditionName)
	if c.Publishing.DefaultEditionName == "" {
		c.Publishing.DefaultEditionName = defaultEditionName
	}
	c.Publishing.DefaultLanguage = strings.TrimSpace(c.Publishing.DefaultLanguage)
	if c.Publishing.DefaultLanguage == "" {
		c.Publishing.DefaultLanguage = defaultLanguage
	}
	c.Publishing.StoreURL = strings.TrimRight(strings.TrimSpace(c.Publishing.StoreURL), "/")
	c.Publishing.SupportContact = strings.TrimSpace(c.Publishing.SupportContact)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

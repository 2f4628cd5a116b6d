package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Validate ensures the configuration is internally consistent. Endpoint
// presence is checked separately by RequirePublishing so read-only commands
// work against a partial config.
func (c *Config) Validate() error {
	if err := c.validateChain(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateListing(); err != nil {
		return err
	}
	if err := c.validatePublishing(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

// RequirePublishing reports the settings a publish run cannot proceed without.
func (c *Config) RequirePublishing() error {
	var missing []string
	if c.Chain.RPCURL == "" {
		missing = append(missing, "chain.rpc_url")
	}
	if c.Chain.ClassFactoryAddress == "" {
		missing = append(missing, "chain.class_factory_address")
	}
	if c.Storage.APIURL == "" {
		missing = append(missing, "storage.api_url")
	}
	if c.Listing.APIURL == "" {
		missing = append(missing, "listing.api_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s (create a config with 'bookpub config init')", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) validateChain() error {
	if c.Chain.ChainID <= 0 {
		return errors.New("chain.chain_id must be positive")
	}
	for key, value := range map[string]string{
		"chain.class_factory_address":     c.Chain.ClassFactoryAddress,
		"chain.platform_operator_address": c.Chain.PlatformOperatorAddress,
	} {
		if value != "" && !common.IsHexAddress(value) {
			return fmt.Errorf("%s: %q is not a hex address", key, value)
		}
	}
	if c.Chain.GasMarginPercent < 0 || c.Chain.GasMarginPercent > 500 {
		return errors.New("chain.gas_margin_percent must be between 0 and 500")
	}
	if c.Chain.FallbackGasPriceWei <= 0 {
		return errors.New("chain.fallback_gas_price_wei must be positive")
	}
	if c.Chain.ReceiptPollIntervalSeconds <= 0 {
		return errors.New("chain.receipt_poll_interval_seconds must be positive")
	}
	if c.Chain.ReceiptTimeoutSeconds < c.Chain.ReceiptPollIntervalSeconds {
		return errors.New("chain.receipt_timeout_seconds must be at least the poll interval")
	}
	if c.Chain.ReceiptRetryDelaySeconds < 0 {
		return errors.New("chain.receipt_retry_delay_seconds must be >= 0")
	}
	if c.Chain.FeeConfirmations < 1 {
		return errors.New("chain.fee_confirmations must be at least 1")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.RequestTimeoutSeconds <= 0 {
		return errors.New("storage.request_timeout_seconds must be positive")
	}
	for key, value := range map[string]string{
		"storage.quote_path":    c.Storage.QuotePath,
		"storage.upload_path":   c.Storage.UploadPath,
		"storage.register_path": c.Storage.RegisterPath,
	} {
		if !strings.HasPrefix(value, "/") {
			return fmt.Errorf("%s must start with /", key)
		}
	}
	return nil
}

func (c *Config) validateListing() error {
	if c.Listing.RequestTimeoutSeconds <= 0 {
		return errors.New("listing.request_timeout_seconds must be positive")
	}
	for _, w := range c.Listing.ModeratorWallets {
		if !common.IsHexAddress(w) {
			return fmt.Errorf("listing.moderator_wallets: %q is not a hex address", w)
		}
	}
	return nil
}

func (c *Config) validatePublishing() error {
	p := c.Publishing
	if p.MintAmount <= 0 {
		return errors.New("publishing.mint_amount must be positive")
	}
	if p.MaxSupply > 0 && uint64(p.MintAmount) > p.MaxSupply {
		return errors.New("publishing.mint_amount exceeds publishing.max_supply")
	}
	if p.RoyaltyBasisPoints < 0 || p.RoyaltyBasisPoints > 10000 {
		return errors.New("publishing.royalty_basis_points must be between 0 and 10000")
	}
	if p.MinimumPrice < 0 {
		return errors.New("publishing.minimum_price must be >= 0")
	}
	if p.DefaultPrice != 0 && p.DefaultPrice < p.MinimumPrice {
		return fmt.Errorf("publishing.default_price must be 0 or at least %.2f", p.MinimumPrice)
	}
	if p.ItemDelaySeconds < 0 {
		return errors.New("publishing.item_delay_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB <= 0 {
		return errors.New("logging.max_size_mb must be positive")
	}
	return nil
}

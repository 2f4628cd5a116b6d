package config

const (
	defaultConfigPath              = "~/.config/bookpub/config.toml"
	defaultStateDir                = "~/.local/share/bookpub"
	defaultLogDir                  = "~/.local/share/bookpub/logs"
	defaultChainID                 = 8453
	defaultPrivateKeyEnv           = "BOOKPUB_PRIVATE_KEY"
	defaultGasMarginPercent        = 20
	defaultFallbackGasPriceWei     = 1_000_000_000
	defaultReceiptPollInterval     = 2
	defaultReceiptTimeout          = 120
	defaultReceiptRetryDelay       = 3
	defaultFeeConfirmations        = 2
	defaultGatewayURL              = "https://arweave.net"
	defaultQuotePath               = "/arweave/v2/estimate"
	defaultUploadPath              = "/arweave/v2/upload"
	defaultRegisterPath            = "/arweave/v2/register"
	defaultAppName                 = "bookpub"
	defaultStorageTimeout          = 300
	defaultListingCurrency         = "USD"
	defaultListingTimeout          = 60
	defaultMintAmount              = 50
	defaultMaxSupply               = 0
	defaultRoyaltyBasisPoints      = 500
	defaultPrice                   = 4.99
	defaultMinimumPrice            = 0.99
	defaultEditionName             = "Standard Edition"
	defaultLanguage                = "zh"
	defaultItemDelaySeconds        = 2
	defaultNotifyRequestTimeout    = 10
	defaultMetricsJobName          = "bookpub"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogMaxSizeMB            = 50
	defaultLogMaxBackups           = 5
	defaultLogMaxAgeDays           = 60
	defaultStorageTokenEnv         = "BOOKPUB_STORAGE_TOKEN"
	defaultListingTokenEnv         = "BOOKPUB_LISTING_TOKEN"
	defaultSupportContact          = "mailto:support@example.com"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Chain: Chain{
			ChainID:                    defaultChainID,
			PrivateKeyEnv:              defaultPrivateKeyEnv,
			GasMarginPercent:           defaultGasMarginPercent,
			FallbackGasPriceWei:        defaultFallbackGasPriceWei,
			ReceiptPollIntervalSeconds: defaultReceiptPollInterval,
			ReceiptTimeoutSeconds:      defaultReceiptTimeout,
			ReceiptRetryDelaySeconds:   defaultReceiptRetryDelay,
			FeeConfirmations:           defaultFeeConfirmations,
		},
		Storage: Storage{
			GatewayURL:            defaultGatewayURL,
			QuotePath:             defaultQuotePath,
			UploadPath:            defaultUploadPath,
			RegisterPath:          defaultRegisterPath,
			AppName:               defaultAppName,
			RequestTimeoutSeconds: defaultStorageTimeout,
		},
		Listing: Listing{
			DefaultCurrency:       defaultListingCurrency,
			RequestTimeoutSeconds: defaultListingTimeout,
		},
		Publishing: Publishing{
			MintAmount:         defaultMintAmount,
			MaxSupply:          defaultMaxSupply,
			RoyaltyBasisPoints: defaultRoyaltyBasisPoints,
			DefaultPrice:       defaultPrice,
			MinimumPrice:       defaultMinimumPrice,
			DefaultEditionName: defaultEditionName,
			DefaultLanguage:    defaultLanguage,
			ItemDelaySeconds:   defaultItemDelaySeconds,
			SupportContact:     defaultSupportContact,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Metrics: Metrics{
			JobName: defaultMetricsJobName,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}

package testsupport

import (
	"path/filepath"
	"testing"

	"bookpub/internal/config"
)

// TestFactoryAddress is the class factory address used by test configs.
const TestFactoryAddress = "0x00000000000000000000000000000000000fac70"

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Endpoints point nowhere until a test overrides them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.FilesDir = filepath.Join(base, "files")
	cfgVal.Chain.RPCURL = "http://127.0.0.1:0"
	cfgVal.Chain.ChainID = TestChainID.Int64()
	cfgVal.Chain.ClassFactoryAddress = TestFactoryAddress
	cfgVal.Storage.APIURL = "http://127.0.0.1:0"
	cfgVal.Listing.APIURL = "http://127.0.0.1:0"
	cfgVal.Publishing.ItemDelaySeconds = 0
	cfgVal.Publishing.StoreURL = "https://store.test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithStorageURL points the storage client at a test server.
func WithStorageURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.APIURL = url
	}
}

// WithListingURL points the listing client at a test server.
func WithListingURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Listing.APIURL = url
	}
}

// WithMintAmount overrides the number of tokens minted per class.
func WithMintAmount(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Publishing.MintAmount = n
	}
}

// WithNtfyTopic enables notifications against a test server.
func WithNtfyTopic(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = url
	}
}

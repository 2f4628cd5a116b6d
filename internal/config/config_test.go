package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bookpub/internal/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Publishing.MintAmount != 50 {
		t.Fatalf("expected mint amount 50, got %d", cfg.Publishing.MintAmount)
	}
	if cfg.Chain.GasMarginPercent != 20 {
		t.Fatalf("expected 20%% gas margin, got %d", cfg.Chain.GasMarginPercent)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if !filepath.IsAbs(cfg.Paths.StateDir) {
		t.Fatalf("expected absolute state dir, got %q", cfg.Paths.StateDir)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
state_dir = "` + filepath.Join(dir, "state") + `"

[chain]
rpc_url = " https://rpc.example "
class_factory_address = "0x00000000000000000000000000000000000000aa"

[listing]
moderator_wallets = ["0x00000000000000000000000000000000000000bb", " "]

[publishing]
mint_amount = 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Chain.RPCURL != "https://rpc.example" {
		t.Fatalf("rpc url not trimmed: %q", cfg.Chain.RPCURL)
	}
	if cfg.Publishing.MintAmount != 10 {
		t.Fatalf("mint amount = %d", cfg.Publishing.MintAmount)
	}
	if len(cfg.Listing.ModeratorWallets) != 1 {
		t.Fatalf("expected blank moderator dropped, got %v", cfg.Listing.ModeratorWallets)
	}
	if cfg.SessionDBPath() != filepath.Join(dir, "state", "sessions.db") {
		t.Fatalf("unexpected session db path %q", cfg.SessionDBPath())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[chain]\nrpc = \"x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key to fail parsing")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad address", func(c *config.Config) { c.Chain.ClassFactoryAddress = "nope" }, "class_factory_address"},
		{"margin", func(c *config.Config) { c.Chain.GasMarginPercent = -1 }, "gas_margin_percent"},
		{"mint amount", func(c *config.Config) { c.Publishing.MintAmount = 0 }, "mint_amount"},
		{"supply", func(c *config.Config) { c.Publishing.MaxSupply = 5 }, "max_supply"},
		{"price", func(c *config.Config) { c.Publishing.DefaultPrice = 0.5 }, "default_price"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"moderator", func(c *config.Config) { c.Listing.ModeratorWallets = []string{"0x1"} }, "moderator_wallets"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestRequirePublishingListsMissing(t *testing.T) {
	cfg := config.Default()
	err := cfg.RequirePublishing()
	if err == nil {
		t.Fatal("expected missing settings error")
	}
	for _, key := range []string{"chain.rpc_url", "chain.class_factory_address", "storage.api_url", "listing.api_url"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in %v", key, err)
		}
	}
}

func TestEnvTokensFillBlankSecrets(t *testing.T) {
	t.Setenv("BOOKPUB_STORAGE_TOKEN", "storage-secret")
	t.Setenv("BOOKPUB_LISTING_TOKEN", "listing-secret")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.AuthToken != "storage-secret" || cfg.Listing.AuthToken != "listing-secret" {
		t.Fatalf("tokens not loaded from env: %+v %+v", cfg.Storage, cfg.Listing)
	}
}

func TestCreateSampleLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample should load cleanly: exists=%v err=%v", exists, err)
	}
}

package preflight

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"bookpub/internal/config"
	"bookpub/internal/stage"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Chain is the subset of the ledger client the checks inspect.
type Chain interface {
	Wallet() (common.Address, error)
	VerifyChainID(ctx context.Context) error
	Balance(ctx context.Context) (*big.Int, error)
}

// RunAll executes all applicable preflight checks for the given config.
// chain may be nil when the node could not be dialled; health carries the
// per-stage readiness reported by the orchestrator.
func RunAll(ctx context.Context, cfg *config.Config, chain Chain, health []stage.Health) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// State directory (always checked)
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	// Files directory (when configured)
	if cfg.Paths.FilesDir != "" {
		results = append(results, CheckDirectoryReadable("Files directory", cfg.Paths.FilesDir))
	}

	results = append(results, CheckChain(ctx, chain)...)
	results = append(results, CheckEndpoint(ctx, "Storage API", cfg.Storage.APIURL, cfg.Storage.AuthToken))
	results = append(results, CheckEndpoint(ctx, "Listing API", cfg.Listing.APIURL, cfg.Listing.AuthToken))

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckEndpoint(ctx, "ntfy", cfg.Notifications.NtfyTopic, ""))
	}

	for _, h := range health {
		results = append(results, FromHealth(h))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// FromHealth converts a stage health record into a result.
func FromHealth(h stage.Health) Result {
	name := "Stage " + h.Name
	if h.Ready {
		return Result{Name: name, Passed: true, Detail: "ready"}
	}
	return Result{Name: name, Detail: h.Detail}
}

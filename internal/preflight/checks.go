package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"bookpub/internal/chain"
)

const endpointTimeout = 5 * time.Second

// CheckEndpoint verifies that an HTTP backend answers and accepts the token.
// Any status below 500 other than 401/403 counts as reachable; backends
// rarely serve their base URL.
func CheckEndpoint(ctx context.Context, name, baseURL, token string) Result {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, endpointTimeout)
	defer cancel()

	client := &http.Client{Timeout: endpointTimeout}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, base, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (check auth_token)"}
	case resp.StatusCode >= 500:
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	default:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	}
}

// CheckChain verifies the wallet, the node's chain id, and the balance.
func CheckChain(ctx context.Context, client Chain) []Result {
	if client == nil {
		return []Result{{Name: "Chain", Detail: "node not reachable"}}
	}

	results := make([]Result, 0, 3)
	if err := client.VerifyChainID(ctx); err != nil {
		results = append(results, Result{Name: "Chain", Detail: err.Error()})
	} else {
		results = append(results, Result{Name: "Chain", Passed: true, Detail: "chain id matches"})
	}

	wallet, err := client.Wallet()
	if err != nil {
		return append(results, Result{Name: "Wallet", Detail: "not connected (set the private key environment variable)"})
	}
	results = append(results, Result{Name: "Wallet", Passed: true, Detail: wallet.Hex()})

	balance, err := client.Balance(ctx)
	switch {
	case err != nil:
		results = append(results, Result{Name: "Balance", Detail: fmt.Sprintf("query failed (%v)", err)})
	case balance.Sign() == 0:
		results = append(results, Result{Name: "Balance", Detail: "0 ETH (fund the wallet before publishing)"})
	default:
		results = append(results, Result{Name: "Balance", Passed: true, Detail: chain.FormatEther(balance) + " ETH"})
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return fmt.Sprintf("unreachable (%v)", err)
}

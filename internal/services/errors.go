package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrConfiguration       = errors.New("configuration error")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPaymentFailed       = errors.New("payment failed")
	ErrUploadFailed        = errors.New("upload failed")
	ErrClassCreationFailed = errors.New("asset class creation failed")
	ErrMintFailed          = errors.New("mint failed")
	ErrListingFailed       = errors.New("listing failed")
	ErrReceiptNotFound     = errors.New("transaction receipt not found")
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrFilesUnavailable    = errors.New("files unavailable")
	ErrTransient           = errors.New("transient failure")
)

// markers is ordered from most to least specific so Kind reports the
// narrowest classification when several markers are wrapped together.
var markers = []struct {
	err  error
	kind string
}{
	{ErrWalletNotConnected, "wallet_not_connected"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrReceiptNotFound, "receipt_not_found"},
	{ErrPaymentFailed, "payment_failed"},
	{ErrUploadFailed, "upload_failed"},
	{ErrClassCreationFailed, "class_creation_failed"},
	{ErrMintFailed, "mint_failed"},
	{ErrListingFailed, "listing_failed"},
	{ErrFilesUnavailable, "files_unavailable"},
	{ErrValidation, "validation"},
	{ErrConfiguration, "configuration"},
	{ErrTransient, "transient"},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short machine label for the first marker found in err.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range markers {
		if errors.Is(err, m.err) {
			return m.kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "unknown"
}

// IsBatchFatal reports whether err must stop a whole batch rather than just
// the current item. Only a missing wallet or the batch's own ctx ending
// qualify; a request timeout inside a stage matches context.DeadlineExceeded
// but fails only its item.
func IsBatchFatal(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWalletNotConnected) {
		return true
	}
	return ctx != nil && ctx.Err() != nil
}

// Hint returns a one-line operator action for err, or an empty string.
func Hint(err error) string {
	switch Kind(err) {
	case "wallet_not_connected":
		return "configure the signing key and re-run"
	case "insufficient_balance":
		return "top up the wallet or contact support"
	case "receipt_not_found":
		return "check the transaction on a block explorer before retrying"
	case "files_unavailable":
		return "re-supply the files directory and resume the session"
	case "validation":
		return "fix the input row and re-import"
	case "configuration":
		return "check the config file"
	default:
		return ""
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

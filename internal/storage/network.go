package storage

import (
	"context"
	"math/big"
)

// Network is the payment-gated storage backend: quote a fee, upload the
// paid bytes, then register the upload against the payment.
type Network interface {
	Quote(ctx context.Context, req QuoteRequest) (Quote, error)
	Upload(ctx context.Context, req UploadRequest) (string, error)
	Register(ctx context.Context, req RegisterRequest) (string, error)
}

// QuoteRequest asks for the fee of storing FileSize bytes. ContentID is
// empty for encrypted buffers.
type QuoteRequest struct {
	FileSize  int
	ContentID string
}

// Quote carries either a payment address and fee or an existing storage id
// for content the network already holds.
type Quote struct {
	PaymentAddress    string
	Fee               *big.Int
	ExistingStorageID string
}

// Tag is a name/value label attached to an upload.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UploadRequest is the paid payload.
type UploadRequest struct {
	Data          []byte
	Tags          []Tag
	ContentID     string
	PaymentTxHash string
}

// RegisterRequest links a stored upload to its fee payment.
type RegisterRequest struct {
	FileSize      int
	ContentID     string
	PaymentTxHash string
	StorageID     string
	Key           string
}

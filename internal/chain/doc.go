// Package chain is the ledger side of the publishing pipeline.
//
// Client is constructed once per process and injected into every stage. It
// owns the RPC backend, the optional signer, the balance Guard that runs
// before any gas-costing or value-bearing transaction, and the Waiter that
// turns a transaction hash into a receipt with one bounded retry. The
// embedded ABIs cover the class factory and per-class mint and role calls.
package chain

// Package contentid computes content-addressed identifiers for byte buffers.
//
// The identifier is the CIDv0 that `ipfs add --only-hash` reports for the
// same bytes with default settings, so storage backends that index by IPFS
// hash recognise repeats. Nothing is written outside an in-memory datastore
// that is discarded when the call returns.
package contentid

import (
	"bytes"
	"fmt"

	"github.com/ipfs/boxo/blockservice"
	"github.com/ipfs/boxo/blockstore"
	chunker "github.com/ipfs/boxo/chunker"
	"github.com/ipfs/boxo/exchange/offline"
	"github.com/ipfs/boxo/ipld/merkledag"
	"github.com/ipfs/boxo/ipld/unixfs/importer/balanced"
	"github.com/ipfs/boxo/ipld/unixfs/importer/helpers"
	"github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
)

// Sum builds the UnixFS DAG for data and returns its root CID.
func Sum(data []byte) (cid.Cid, error) {
	bs := blockstore.NewBlockstore(dssync.MutexWrap(ds.NewMapDatastore()))
	dag := merkledag.NewDAGService(blockservice.New(bs, offline.Exchange(bs)))

	params := helpers.DagBuilderParams{
		Maxlinks:   helpers.DefaultLinksPerBlock,
		Dagserv:    dag,
		CidBuilder: merkledag.V0CidPrefix(),
	}
	db, err := params.New(chunker.NewSizeSplitter(bytes.NewReader(data), chunker.DefaultBlockSize))
	if err != nil {
		return cid.Undef, fmt.Errorf("content id: init dag builder: %w", err)
	}
	root, err := balanced.Layout(db)
	if err != nil {
		return cid.Undef, fmt.Errorf("content id: layout: %w", err)
	}
	return root.Cid(), nil
}

// Compute returns the base58 string form of Sum.
func Compute(data []byte) (string, error) {
	c, err := Sum(data)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// Valid reports whether s parses as a CID.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	_, err := cid.Decode(s)
	return err == nil
}

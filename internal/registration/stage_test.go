package registration

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"bookpub/internal/chain"
	"bookpub/internal/contentid"
	"bookpub/internal/logging"
	"bookpub/internal/queue"
	"bookpub/internal/services"
	"bookpub/internal/stage"
	"bookpub/internal/testsupport"
)

var (
	factory  = common.HexToAddress(testsupport.TestFactoryAddress)
	operator = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	classID  = common.HexToAddress("0x1234567890123456789012345678901234567890")
	// bookCID is the content id of the bytes "book".
	bookCID = mustContentID("book")
)

func mustContentID(data string) string {
	id, err := contentid.Compute([]byte(data))
	if err != nil {
		panic(err)
	}
	return id
}

type decodedCall struct {
	Msg struct {
		Creator  common.Address   `json:"creator"`
		Updaters []common.Address `json:"updaters"`
		Minters  []common.Address `json:"minters"`
		Config   struct {
			Name      string `json:"name"`
			Symbol    string `json:"symbol"`
			Metadata  string `json:"metadata"`
			MaxSupply uint64 `json:"max_supply"`
		} `json:"config"`
	}
	Salt    [32]byte
	Royalty *big.Int
}

func decodeNewClass(t *testing.T, tx *types.Transaction) decodedCall {
	t.Helper()
	method := chain.FactoryABI.Methods["newBookNFT"]
	if string(tx.Data()[:4]) != string(method.ID) {
		t.Fatalf("transaction does not call newBookNFT")
	}
	values, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	var call decodedCall
	call.Salt = values[0].([32]byte)
	call.Royalty = values[2].(*big.Int)
	raw, err := json.Marshal(values[1])
	if err != nil {
		t.Fatalf("marshal tuple: %v", err)
	}
	if err := json.Unmarshal(raw, &call.Msg); err != nil {
		t.Fatalf("unmarshal tuple: %v", err)
	}
	return call
}

func storedItem() *queue.Item {
	item := testsupport.NewItem("Dune")
	item.AuthorDescription = "Science fiction author"
	item.PublishDate = "1965/08/01"
	item.Tags = []string{"sci-fi"}
	item.CoverStorageID = "cover-id"
	item.BookStorageID = "book-id"
	item.BookContentID = bookCID
	item.BookStorageKey = "a2V5"
	item.Advance(queue.StageFilesUploaded)
	return item
}

func newRegistrar(t *testing.T, backend *testsupport.FakeBackend) *Registrar {
	t.Helper()
	r := New(testsupport.NewChainClient(t, backend), Options{
		FactoryAddress:     factory,
		PlatformOperator:   operator,
		RoyaltyBasisPoints: 500,
		StoreURL:           "https://store.test/",
	}, logging.NewNop())
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return r
}

func classReceipt(tx *types.Transaction) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(100),
		Logs:        []*types.Log{{Address: classID}},
	}
}

func TestExecuteCreatesClass(t *testing.T) {
	backend := testsupport.NewFakeBackend()
	backend.Receipt = classReceipt
	r := newRegistrar(t, backend)
	item := storedItem()

	if err := r.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := r.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.AssetClassID != classID.Hex() || item.Stage != queue.StageClassCreated {
		t.Fatalf("unexpected item progress %s/%s", item.AssetClassID, item.Stage)
	}

	sent := backend.SentTo(factory)
	if len(sent) != 1 {
		t.Fatalf("expected one factory call, got %d", len(sent))
	}
	call := decodeNewClass(t, sent[0])
	wallet := testsupport.MustSigner(t).Address()
	if call.Msg.Creator != wallet {
		t.Fatalf("creator = %s", call.Msg.Creator.Hex())
	}
	if len(call.Msg.Minters) != 2 || call.Msg.Minters[1] != operator || len(call.Msg.Updaters) != 2 {
		t.Fatalf("unexpected roles %+v", call.Msg)
	}
	if call.Msg.Config.Symbol != "BOOK" || call.Msg.Config.Name != "Dune" {
		t.Fatalf("unexpected config %+v", call.Msg.Config)
	}
	if call.Royalty.Int64() != 500 {
		t.Fatalf("royalty = %s", call.Royalty)
	}
	if call.Salt != Salt(wallet, bookCID) {
		t.Fatal("salt must derive from wallet and book content id")
	}

	var meta map[string]any
	if err := json.Unmarshal([]byte(call.Msg.Config.Metadata), &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	if meta["image"] != "ar://cover-id" || meta["nft_meta_collection_id"] != "nft_book" {
		t.Fatalf("unexpected metadata %v", meta)
	}
	if meta["external_link"] != "https://store.test/store" || meta["recordTimestamp"] != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected metadata %v", meta)
	}
	if meta["datePublished"] != "1965-08-01" {
		t.Fatalf("datePublished = %v", meta["datePublished"])
	}
	fingerprints := meta["contentFingerprints"].([]any)
	if len(fingerprints) != 3 || fingerprints[1] != "ar://book-id" || fingerprints[2] != "ipfs://"+bookCID {
		t.Fatalf("unexpected fingerprints %v", fingerprints)
	}
	downloads := meta["downloadableUrls"].([]any)
	first := downloads[0].(map[string]any)
	if first["type"] != "epub" || first["encrypted"] != true {
		t.Fatalf("unexpected download entry %v", first)
	}
	if author := meta["author"].(map[string]any); author["name"] != "Test Author" {
		t.Fatalf("unexpected author %v", author)
	}
}

func TestExecuteSkipsExistingClass(t *testing.T) {
	backend := testsupport.NewFakeBackend()
	r := newRegistrar(t, backend)
	item := storedItem()
	item.AssetClassID = classID.Hex()

	if err := r.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if backend.SentCount() != 0 {
		t.Fatal("existing class must not be re-created")
	}
}

func TestExecuteRevertedIsClassCreationFailed(t *testing.T) {
	backend := testsupport.NewFakeBackend()
	backend.Receipt = func(tx *types.Transaction) *types.Receipt {
		return &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: tx.Hash(), BlockNumber: big.NewInt(100)}
	}
	r := newRegistrar(t, backend)
	item := storedItem()

	err := r.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrClassCreationFailed) {
		t.Fatalf("expected class creation failure, got %v", err)
	}
	if item.AssetClassID != "" || item.Stage != queue.StageFilesUploaded {
		t.Fatal("failed creation must not record progress")
	}
}

func TestExecuteAwaitsPendingClassCreation(t *testing.T) {
	backend := testsupport.NewFakeBackend()
	backend.Receipt = classReceipt
	backend.MissingReceipts = 2
	r := newRegistrar(t, backend)
	item := storedItem()

	checkpoints := 0
	ctx := stage.WithCheckpoint(context.Background(), func(_ context.Context, it *queue.Item) error {
		if it.PendingClassTx == "" {
			t.Error("checkpoint without a pending class transaction")
		}
		checkpoints++
		return nil
	})

	err := r.Execute(ctx, item)
	if !errors.Is(err, services.ErrReceiptNotFound) {
		t.Fatalf("expected receipt not found, got %v", err)
	}
	if item.AssetClassID != "" || item.PendingClassTx == "" || checkpoints != 1 {
		t.Fatalf("expected pending hash only, got class %q pending %q checkpoints %d",
			item.AssetClassID, item.PendingClassTx, checkpoints)
	}

	if err := r.Execute(ctx, item); err != nil {
		t.Fatalf("Execute retry: %v", err)
	}
	if backend.SentCount() != 1 {
		t.Fatalf("retry must not create the class again, sent %d", backend.SentCount())
	}
	if item.AssetClassID != classID.Hex() || item.Stage != queue.StageClassCreated {
		t.Fatalf("unexpected progress %s/%s", item.AssetClassID, item.Stage)
	}
}

func TestExecuteWithoutLogsFails(t *testing.T) {
	backend := testsupport.NewFakeBackend()
	r := newRegistrar(t, backend)

	err := r.Execute(context.Background(), storedItem())
	if !errors.Is(err, services.ErrClassCreationFailed) || !strings.Contains(err.Error(), "no class address") {
		t.Fatalf("expected missing class address error, got %v", err)
	}
}

func TestPrepareRequiresStoredFiles(t *testing.T) {
	r := newRegistrar(t, testsupport.NewFakeBackend())
	item := testsupport.NewItem("Unstored")
	if err := r.Prepare(context.Background(), item); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildMetadataPlainAuthorAndLink(t *testing.T) {
	item := testsupport.NewItem("Plain")
	item.CoverStorageID = "c"
	item.BookStorageID = "b"
	item.BookStorageLink = "https://gateway.test/b"
	item.EPUBFilename = ""
	item.PDFFilename = "plain.pdf"

	meta := BuildMetadata(item, "", time.Unix(0, 0))
	if meta.Author != "Test Author" {
		t.Fatalf("author without description should be a bare name, got %#v", meta.Author)
	}
	if meta.DownloadableURLs[0].URL != "https://gateway.test/b" || meta.DownloadableURLs[0].Type != "pdf" {
		t.Fatalf("unexpected download %+v", meta.DownloadableURLs[0])
	}
	if meta.DownloadableURLs[0].Encrypted {
		t.Fatal("plaintext ebook must not be flagged encrypted")
	}
	if meta.SameAs[0] != "https://gateway.test/b?name=plain.pdf" {
		t.Fatalf("unexpected sameAs %v", meta.SameAs)
	}
}

func TestBuildMetadataSkipsMalformedContentID(t *testing.T) {
	item := storedItem()
	item.BookContentID = "not-a-cid"

	meta := BuildMetadata(item, "", time.Unix(0, 0))
	for _, fp := range meta.ContentFingerprints {
		if strings.HasPrefix(fp, "ipfs://") {
			t.Fatalf("malformed content id must not become a fingerprint: %v", meta.ContentFingerprints)
		}
	}
	if len(meta.ContentFingerprints) != 2 {
		t.Fatalf("expected cover and book fingerprints only, got %v", meta.ContentFingerprints)
	}
}

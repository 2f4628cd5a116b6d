package queue

import (
	"strings"
	"time"
)

// Status is the lifecycle state shown to the operator.
type Status string

const (
	StatusPending        Status = "pending"
	StatusUploadingFiles Status = "uploading_files"
	StatusCreatingNFT    Status = "creating_nft"
	StatusMinting        Status = "minting"
	StatusListing        Status = "listing"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusUploadingFiles,
	StatusCreatingNFT,
	StatusMinting,
	StatusListing,
	StatusCompleted,
	StatusFailed,
}

var processingStatuses = map[Status]struct{}{
	StatusUploadingFiles: {},
	StatusCreatingNFT:    {},
	StatusMinting:        {},
	StatusListing:        {},
}

// AllStatuses returns every lifecycle status in pipeline order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus accepts any case, so exported CSVs re-import cleanly.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range allStatuses {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) IsProcessing() bool {
	_, ok := processingStatuses[s]
	return ok
}

// Stage is the persisted progress marker. It only moves forward and is
// written in the same statement as the fields the stage produced.
type Stage string

const (
	StageNone          Stage = "none"
	StageFilesUploaded Stage = "files_uploaded"
	StageClassCreated  Stage = "nft_created"
	StageMinted        Stage = "minted"
	StageListed        Stage = "listed"
)

var stageRanks = map[Stage]int{
	StageNone:          0,
	StageFilesUploaded: 1,
	StageClassCreated:  2,
	StageMinted:        3,
	StageListed:        4,
}

// Rank orders stages; unknown values rank as StageNone.
func (s Stage) Rank() int {
	return stageRanks[s]
}

func (s Stage) AtLeast(other Stage) bool {
	return s.Rank() >= other.Rank()
}

func parseStage(value string) Stage {
	stage := Stage(strings.TrimSpace(value))
	if _, ok := stageRanks[stage]; ok {
		return stage
	}
	return StageNone
}

// FileRef is a cover or ebook attached to an item. Data is never persisted.
type FileRef struct {
	Name        string
	Data        []byte
	ContentType string
}

func (f *FileRef) Loaded() bool {
	return f != nil && f.Data != nil
}

// Item is one book moving through the publishing pipeline.
type Item struct {
	ID        string
	SessionID string
	RowIndex  int

	Title             string
	Description       string
	AuthorName        string
	AuthorDescription string
	Publisher         string
	ISBN              string
	PublishDate       string
	Language          string
	Tags              []string

	ListPrice          float64
	EditionName        string
	EditionDescription string
	AutoDeliver        bool
	EnableDRM          bool
	AutoMemo           string

	CoverFilename string
	PDFFilename   string
	EPUBFilename  string
	Cover         *FileRef
	Ebook         *FileRef

	CoverContentID  string
	CoverStorageID  string
	BookContentID   string
	BookStorageID   string
	BookStorageKey  string
	BookStorageLink string
	AssetClassID    string
	MintTxHash      string

	// Broadcast but not yet confirmed. A retry awaits these instead of
	// sending the transaction again.
	PendingClassTx string
	PendingMintTx  string

	Status       Status
	Stage        Stage
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EbookFilename prefers the EPUB over the PDF.
func (i *Item) EbookFilename() string {
	if strings.TrimSpace(i.EPUBFilename) != "" {
		return i.EPUBFilename
	}
	return i.PDFFilename
}

// EbookFormat returns "epub" or "pdf" matching EbookFilename.
func (i *Item) EbookFormat() string {
	if strings.TrimSpace(i.EPUBFilename) != "" {
		return "epub"
	}
	return "pdf"
}

// FilesUploaded reports whether both storage ids are known.
func (i *Item) FilesUploaded() bool {
	return i.Stage.AtLeast(StageFilesUploaded) || (i.CoverStorageID != "" && i.BookStorageID != "")
}

func (i *Item) ClassCreated() bool {
	return i.Stage.AtLeast(StageClassCreated) || i.AssetClassID != ""
}

func (i *Item) Minted() bool {
	return i.Stage.AtLeast(StageMinted) || i.MintTxHash != ""
}

// ReconcileStage advances Stage to match progress fields recorded without
// it, such as values imported from a results CSV.
func (i *Item) ReconcileStage() {
	derived := StageNone
	switch {
	case i.MintTxHash != "" && i.AssetClassID != "":
		derived = StageMinted
	case i.AssetClassID != "":
		derived = StageClassCreated
	case i.CoverStorageID != "" && i.BookStorageID != "":
		derived = StageFilesUploaded
	}
	if i.Status == StatusCompleted && derived == StageMinted {
		derived = StageListed
	}
	if derived.Rank() > i.Stage.Rank() {
		i.Stage = derived
	}
}

// Advance records stage completion.
func (i *Item) Advance(stage Stage) {
	if stage.Rank() > i.Stage.Rank() {
		i.Stage = stage
	}
}

// SetFailed marks the item failed without touching completed progress.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = strings.TrimSpace(message)
}

// ResetProgress clears every progress field for a retry from scratch.
func (i *Item) ResetProgress() {
	i.CoverContentID = ""
	i.CoverStorageID = ""
	i.BookContentID = ""
	i.BookStorageID = ""
	i.BookStorageKey = ""
	i.BookStorageLink = ""
	i.AssetClassID = ""
	i.MintTxHash = ""
	i.PendingClassTx = ""
	i.PendingMintTx = ""
	i.Stage = StageNone
	i.Status = StatusPending
	i.ErrorMessage = ""
}

// Session groups the items of one batch run with a resume cursor.
type Session struct {
	ID         string
	SourcePath string
	FilesDir   string
	Cursor     int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Summary counts items per status.
type Summary struct {
	Total  int
	Counts map[Status]int
}

func (s Summary) Count(status Status) int {
	return s.Counts[status]
}

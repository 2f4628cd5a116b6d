package bulkimport

const (
	ColTitle              = "book_title"
	ColDescription        = "book_description"
	ColAuthorName         = "author_name"
	ColAuthorDescription  = "author_description"
	ColPublisher          = "publisher"
	ColISBN               = "isbn"
	ColPublishDate        = "publish_date"
	ColListPrice          = "list_price"
	ColTags               = "tags"
	ColCoverFilename      = "cover_image_filename"
	ColPDFFilename        = "pdf_filename"
	ColEPUBFilename       = "epub_filename"
	ColEditionName        = "edition_name"
	ColEditionDescription = "edition_description"
	ColAutoDeliver        = "auto_deliver"
	ColAutoMemo           = "auto_memo"
	ColEnableDRM          = "enable_drm"
	ColLanguage           = "language"

	ColClassID        = "class_id"
	ColMintTxHash     = "mint_tx_hash"
	ColCoverStorageID = "cover_arweave_id"
	ColBookStorageID  = "book_arweave_id"
	ColBookStorageKey = "book_arweave_key"
	ColStatus         = "status"
	ColRemark         = "remark"

	// FieldEbook names the combined ebook requirement in validation errors.
	FieldEbook = "pdf_filename/epub_filename"
)

// InputColumns lists the columns of an import CSV in export order.
var InputColumns = []string{
	ColTitle,
	ColDescription,
	ColAuthorName,
	ColAuthorDescription,
	ColPublisher,
	ColISBN,
	ColPublishDate,
	ColListPrice,
	ColTags,
	ColCoverFilename,
	ColPDFFilename,
	ColEPUBFilename,
	ColEditionName,
	ColEditionDescription,
	ColAutoDeliver,
	ColAutoMemo,
	ColEnableDRM,
	ColLanguage,
}

// ResultColumns extends InputColumns with the progress written by
// WriteResults. A results file re-imports as a resume CSV.
var ResultColumns = append(append([]string{}, InputColumns...),
	ColClassID,
	ColMintTxHash,
	ColCoverStorageID,
	ColBookStorageID,
	ColBookStorageKey,
	ColStatus,
	ColRemark,
)

var requiredHeaderColumns = []string{ColTitle, ColDescription, ColAuthorName, ColCoverFilename}

const utf8BOM = "\ufeff"

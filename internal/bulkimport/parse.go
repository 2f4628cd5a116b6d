package bulkimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"bookpub/internal/config"
	"bookpub/internal/queue"
	"bookpub/internal/services"
)

// Defaults fills columns a row leaves empty.
type Defaults struct {
	Price              float64
	EditionName        string
	EditionDescription string
	Language           string
}

// DefaultsFromConfig reads the [publishing] defaults.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	return Defaults{
		Price:              cfg.Publishing.DefaultPrice,
		EditionName:        cfg.Publishing.DefaultEditionName,
		EditionDescription: cfg.Publishing.DefaultEditionDescription,
		Language:           cfg.Publishing.DefaultLanguage,
	}
}

// Row is one parsed CSV record. Line is the record's line in the file, so
// errors point at what the operator sees in a spreadsheet.
type Row struct {
	Line int
	Item *queue.Item
	raw  map[string]string
}

// Value returns the raw, trimmed cell for column.
func (r Row) Value(column string) string {
	return r.raw[column]
}

// Parse reads an import or results CSV. The header is matched
// case-insensitively and a leading byte order mark is ignored.
func Parse(r io.Reader, defaults Defaults) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, services.Wrap(services.ErrValidation, "import", "read header", "file is empty", nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "import", "read header", "", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, col := range requiredHeaderColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, services.Wrap(services.ErrValidation, "import", "read header",
			"missing required columns: "+strings.Join(missing, ", "), nil)
	}

	var rows []Row
	for n := 0; ; n++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "import", "read row", "", err)
		}
		if blank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		raw := make(map[string]string, len(index))
		for name, i := range index {
			if i < len(record) {
				raw[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, Row{Line: line, Item: buildItem(raw, len(rows), defaults), raw: raw})
	}
	return rows, nil
}

// NewRow builds a row from column values outside a CSV, such as the flags
// of a single publish. Keys are column names; values are trimmed.
func NewRow(values map[string]string, defaults Defaults) Row {
	raw := make(map[string]string, len(values))
	for name, value := range values {
		raw[strings.ToLower(name)] = strings.TrimSpace(value)
	}
	return Row{Line: 1, Item: buildItem(raw, 0, defaults), raw: raw}
}

func buildItem(raw map[string]string, index int, defaults Defaults) *queue.Item {
	item := &queue.Item{
		RowIndex:           index,
		Title:              raw[ColTitle],
		Description:        raw[ColDescription],
		AuthorName:         raw[ColAuthorName],
		AuthorDescription:  raw[ColAuthorDescription],
		Publisher:          raw[ColPublisher],
		ISBN:               raw[ColISBN],
		PublishDate:        raw[ColPublishDate],
		ListPrice:          parsePrice(raw[ColListPrice], defaults.Price),
		Tags:               splitTags(raw[ColTags]),
		CoverFilename:      raw[ColCoverFilename],
		PDFFilename:        raw[ColPDFFilename],
		EPUBFilename:       raw[ColEPUBFilename],
		EditionName:        orDefault(raw[ColEditionName], defaults.EditionName),
		EditionDescription: orDefault(raw[ColEditionDescription], defaults.EditionDescription),
		AutoDeliver:        !strings.EqualFold(raw[ColAutoDeliver], "false"),
		AutoMemo:           raw[ColAutoMemo],
		EnableDRM:          strings.EqualFold(raw[ColEnableDRM], "true"),
		Language:           normalizeLanguage(orDefault(raw[ColLanguage], defaults.Language)),
		Status:             queue.StatusPending,
		Stage:              queue.StageNone,
	}
	applyProgress(item, raw)
	return item
}

// applyProgress copies well-formed resume columns onto the item. Malformed
// values are left for Validate to report.
func applyProgress(item *queue.Item, raw map[string]string) {
	if v := raw[ColCoverStorageID]; storageIDPattern.MatchString(v) {
		item.CoverStorageID = v
	}
	if v := raw[ColBookStorageID]; storageIDPattern.MatchString(v) {
		item.BookStorageID = v
	}
	item.BookStorageKey = raw[ColBookStorageKey]
	if v := raw[ColClassID]; strings.HasPrefix(v, "0x") {
		item.AssetClassID = v
	}
	if v := raw[ColMintTxHash]; txHashPattern.MatchString(v) {
		item.MintTxHash = v
	}

	// Only a completed row keeps its status; anything else starts over
	// from the first unfinished stage.
	if status, ok := queue.ParseStatus(raw[ColStatus]); ok && status == queue.StatusCompleted &&
		item.AssetClassID != "" && item.MintTxHash != "" {
		item.Status = queue.StatusCompleted
	}
	item.ReconcileStage()
}

func parsePrice(value string, fallback float64) float64 {
	if value == "" {
		return fallback
	}
	price, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return price
}

func splitTags(value string) []string {
	if value == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(value, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// normalizeLanguage canonicalizes BCP 47 tags ("zh-tw" -> "zh-TW") and keeps
// anything unparseable verbatim.
func normalizeLanguage(value string) string {
	tag, err := language.Parse(value)
	if err != nil {
		return value
	}
	return tag.String()
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// String renders a row reference for messages.
func (r Row) String() string {
	return fmt.Sprintf("line %d (%s)", r.Line, r.Item.Title)
}

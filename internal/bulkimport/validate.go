package bulkimport

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"bookpub/internal/queue"
)

const maxDescriptionLength = 1000

var (
	storageIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{43}$`)
	txHashPattern    = regexp.MustCompile(`^0x[A-Fa-f0-9]{64}$`)
)

// ValidationError reports one problem with one field of one row.
type ValidationError struct {
	Line    int
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
}

// Validate checks every row and the set of rows as a whole. Rows with any
// error must be left out of the run.
func Validate(rows []Row, minimumPrice float64) []ValidationError {
	var errs []ValidationError
	for _, row := range rows {
		errs = append(errs, validateRow(row, minimumPrice)...)
	}
	return append(errs, duplicateFilenames(rows)...)
}

func validateRow(row Row, minimumPrice float64) []ValidationError {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Line: row.Line, Field: field, Message: fmt.Sprintf(format, args...)})
	}
	item := row.Item

	if item.Title == "" {
		add(ColTitle, "book title is required")
	}
	if item.Description == "" {
		add(ColDescription, "book description is required")
	} else if n := utf8.RuneCountInString(item.Description); n > maxDescriptionLength {
		add(ColDescription, "description has %d characters; the limit is %d", n, maxDescriptionLength)
	}
	if item.AuthorName == "" {
		add(ColAuthorName, "author name is required")
	}
	if item.ListPrice != 0 && item.ListPrice < minimumPrice {
		add(ColListPrice, "price must be 0 or at least %.2f", minimumPrice)
	}
	if item.CoverFilename == "" {
		add(ColCoverFilename, "cover image filename is required")
	}
	if item.PDFFilename == "" && item.EPUBFilename == "" {
		add(FieldEbook, "a pdf or epub filename is required")
	}
	if item.AutoMemo != "" && !item.AutoDeliver {
		add(ColAutoMemo, "auto memo requires auto delivery")
	}
	for _, col := range []string{ColAutoDeliver, ColEnableDRM} {
		switch strings.ToLower(row.Value(col)) {
		case "", "true", "false":
		default:
			add(col, "%q is not true or false", row.Value(col))
		}
	}

	if v := row.Value(ColCoverStorageID); v != "" && !storageIDPattern.MatchString(v) {
		add(ColCoverStorageID, "%q is not a storage id", v)
	}
	if v := row.Value(ColBookStorageID); v != "" && !storageIDPattern.MatchString(v) {
		add(ColBookStorageID, "%q is not a storage id", v)
	}
	if v := row.Value(ColClassID); v != "" && !strings.HasPrefix(v, "0x") {
		add(ColClassID, "%q is not a class address", v)
	}
	if v := row.Value(ColMintTxHash); v != "" && !txHashPattern.MatchString(v) {
		add(ColMintTxHash, "%q is not a transaction hash", v)
	}
	return errs
}

// duplicateFilenames flags any file referenced by more than one column,
// compared without regard to case.
func duplicateFilenames(rows []Row) []ValidationError {
	type seenAt struct {
		line  int
		field string
	}
	fold := cases.Fold()
	seen := make(map[string]seenAt)
	var errs []ValidationError
	for _, row := range rows {
		for _, ref := range []struct{ field, name string }{
			{ColCoverFilename, row.Item.CoverFilename},
			{ColPDFFilename, row.Item.PDFFilename},
			{ColEPUBFilename, row.Item.EPUBFilename},
		} {
			if ref.name == "" {
				continue
			}
			key := fold.String(ref.name)
			if first, ok := seen[key]; ok {
				errs = append(errs, ValidationError{
					Line:    row.Line,
					Field:   ref.field,
					Message: fmt.Sprintf("%s is already used by %s on line %d", ref.name, first.field, first.line),
				})
				continue
			}
			seen[key] = seenAt{line: row.Line, field: ref.field}
		}
	}
	return errs
}

// Accepted returns the items of rows that have no validation errors.
func Accepted(rows []Row, errs []ValidationError) []*queue.Item {
	rejected := make(map[int]struct{}, len(errs))
	for _, e := range errs {
		rejected[e.Line] = struct{}{}
	}
	items := make([]*queue.Item, 0, len(rows))
	for _, row := range rows {
		if _, bad := rejected[row.Line]; bad {
			continue
		}
		items = append(items, row.Item)
	}
	return items
}

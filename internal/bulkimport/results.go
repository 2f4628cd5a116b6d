package bulkimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bookpub/internal/queue"
)

// WriteResults writes items as a UTF-8 CSV with a byte order mark, so
// spreadsheet tools detect the encoding. The output re-imports through Parse.
func WriteResults(w io.Writer, items []*queue.Item) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(ResultColumns); err != nil {
		return fmt.Errorf("write results header: %w", err)
	}
	for _, item := range items {
		if err := writer.Write(resultRecord(item)); err != nil {
			return fmt.Errorf("write results row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func resultRecord(item *queue.Item) []string {
	return []string{
		item.Title,
		item.Description,
		item.AuthorName,
		item.AuthorDescription,
		item.Publisher,
		item.ISBN,
		item.PublishDate,
		strconv.FormatFloat(item.ListPrice, 'f', -1, 64),
		strings.Join(item.Tags, ","),
		item.CoverFilename,
		item.PDFFilename,
		item.EPUBFilename,
		item.EditionName,
		item.EditionDescription,
		strconv.FormatBool(item.AutoDeliver),
		item.AutoMemo,
		strconv.FormatBool(item.EnableDRM),
		item.Language,
		item.AssetClassID,
		item.MintTxHash,
		item.CoverStorageID,
		item.BookStorageID,
		item.BookStorageKey,
		string(item.Status),
		item.ErrorMessage,
	}
}

package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const itemColumns = `id, session_id, row_index, title, description, author_name, author_description,
    publisher, isbn, publish_date, language, tags_json, list_price, edition_name, edition_description,
    auto_deliver, enable_drm, auto_memo, cover_filename, pdf_filename, epub_filename,
    cover_content_id, cover_storage_id, book_content_id, book_storage_id, book_storage_key,
    book_storage_link, asset_class_id, mint_tx_hash, pending_class_tx, pending_mint_tx, status, stage, error_message, created_at, updated_at`

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item                                      Item
		description, authorName, authorDesc       sql.NullString
		publisher, isbn, publishDate, language    sql.NullString
		tagsJSON, editionName, editionDesc        sql.NullString
		autoDeliver, enableDRM                    int
		autoMemo, coverFile, pdfFile, epubFile    sql.NullString
		coverCID, coverSID, bookCID, bookSID      sql.NullString
		bookKey, bookLink, classID, mintTx        sql.NullString
		pendingClassTx, pendingMintTx             sql.NullString
		statusStr, stageStr                       string
		errorMessage, createdRaw, updatedRaw      sql.NullString
	)
	if err := scanner.Scan(
		&item.ID, &item.SessionID, &item.RowIndex, &item.Title,
		&description, &authorName, &authorDesc,
		&publisher, &isbn, &publishDate, &language, &tagsJSON,
		&item.ListPrice, &editionName, &editionDesc,
		&autoDeliver, &enableDRM, &autoMemo, &coverFile, &pdfFile, &epubFile,
		&coverCID, &coverSID, &bookCID, &bookSID, &bookKey,
		&bookLink, &classID, &mintTx, &pendingClassTx, &pendingMintTx, &statusStr, &stageStr, &errorMessage,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	item.Description = description.String
	item.AuthorName = authorName.String
	item.AuthorDescription = authorDesc.String
	item.Publisher = publisher.String
	item.ISBN = isbn.String
	item.PublishDate = publishDate.String
	item.Language = language.String
	if tagsJSON.Valid && strings.TrimSpace(tagsJSON.String) != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &item.Tags); err != nil {
			return nil, fmt.Errorf("decode tags for item %s: %w", item.ID, err)
		}
	}
	item.EditionName = editionName.String
	item.EditionDescription = editionDesc.String
	item.AutoDeliver = autoDeliver != 0
	item.EnableDRM = enableDRM != 0
	item.AutoMemo = autoMemo.String
	item.CoverFilename = coverFile.String
	item.PDFFilename = pdfFile.String
	item.EPUBFilename = epubFile.String
	item.CoverContentID = coverCID.String
	item.CoverStorageID = coverSID.String
	item.BookContentID = bookCID.String
	item.BookStorageID = bookSID.String
	item.BookStorageKey = bookKey.String
	item.BookStorageLink = bookLink.String
	item.AssetClassID = classID.String
	item.MintTxHash = mintTx.String
	item.PendingClassTx = pendingClassTx.String
	item.PendingMintTx = pendingMintTx.String
	item.Status = Status(statusStr)
	item.Stage = parseStage(stageStr)
	item.ErrorMessage = errorMessage.String
	if createdRaw.Valid {
		if t, err := parseTimeString(createdRaw.String); err == nil {
			item.CreatedAt = t
		}
	}
	if updatedRaw.Valid {
		if t, err := parseTimeString(updatedRaw.String); err == nil {
			item.UpdatedAt = t
		}
	}
	return &item, nil
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		session                Session
		source, filesDir       sql.NullString
		createdRaw, updatedRaw string
	)
	if err := scanner.Scan(&session.ID, &source, &filesDir, &session.Cursor, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	session.SourcePath = source.String
	session.FilesDir = filesDir.String
	if t, err := parseTimeString(createdRaw); err == nil {
		session.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		session.UpdatedAt = t
	}
	return &session, nil
}

func encodeTags(tags []string) (any, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

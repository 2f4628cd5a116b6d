package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func insertItem(ctx context.Context, tx *sql.Tx, sessionID string, item *Item, now time.Time) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	if item.Stage == "" {
		item.Stage = StageNone
	}
	item.ReconcileStage()
	item.SessionID = sessionID
	item.CreatedAt = now
	item.UpdatedAt = now

	tags, err := encodeTags(item.Tags)
	if err != nil {
		return err
	}
	timestamp := now.Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`, stage_rank) VALUES (
            ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
            ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, sessionID, item.RowIndex, item.Title,
		nullableString(item.Description), nullableString(item.AuthorName), nullableString(item.AuthorDescription),
		nullableString(item.Publisher), nullableString(item.ISBN), nullableString(item.PublishDate),
		nullableString(item.Language), tags, item.ListPrice,
		nullableString(item.EditionName), nullableString(item.EditionDescription),
		boolToInt(item.AutoDeliver), boolToInt(item.EnableDRM), nullableString(item.AutoMemo),
		nullableString(item.CoverFilename), nullableString(item.PDFFilename), nullableString(item.EPUBFilename),
		nullableString(item.CoverContentID), nullableString(item.CoverStorageID),
		nullableString(item.BookContentID), nullableString(item.BookStorageID),
		nullableString(item.BookStorageKey), nullableString(item.BookStorageLink),
		nullableString(item.AssetClassID), nullableString(item.MintTxHash),
		nullableString(item.PendingClassTx), nullableString(item.PendingMintTx),
		string(item.Status), string(item.Stage), nullableString(item.ErrorMessage),
		timestamp, timestamp, item.Stage.Rank(),
	)
	if err != nil {
		return fmt.Errorf("insert item %d: %w", item.RowIndex, err)
	}
	return nil
}

// Items returns the items of a session in row order.
func (s *Store) Items(ctx context.Context, sessionID string) ([]*Item, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE session_id = ? ORDER BY row_index, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetItem fetches an item by id.
func (s *Store) GetItem(ctx context.Context, id string) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// UpdateItem persists status, error, and progress in a single statement.
// Progress fields that are already set are never cleared and the stage
// never moves backwards; use ResetItem for a retry from scratch.
func (s *Store) UpdateItem(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("update item: nil item")
	}
	if item.Stage == "" {
		item.Stage = StageNone
	}
	item.UpdatedAt = time.Now().UTC()
	rank := item.Stage.Rank()

	res, err := s.execWithRetry(ctx,
		`UPDATE items SET
            status = ?,
            error_message = ?,
            cover_filename = COALESCE(?, cover_filename),
            pdf_filename = COALESCE(?, pdf_filename),
            epub_filename = COALESCE(?, epub_filename),
            cover_content_id = COALESCE(?, cover_content_id),
            cover_storage_id = COALESCE(?, cover_storage_id),
            book_content_id = COALESCE(?, book_content_id),
            book_storage_id = COALESCE(?, book_storage_id),
            book_storage_key = COALESCE(?, book_storage_key),
            book_storage_link = COALESCE(?, book_storage_link),
            asset_class_id = COALESCE(?, asset_class_id),
            mint_tx_hash = COALESCE(?, mint_tx_hash),
            pending_class_tx = COALESCE(?, pending_class_tx),
            pending_mint_tx = COALESCE(?, pending_mint_tx),
            stage = CASE WHEN ? > stage_rank THEN ? ELSE stage END,
            stage_rank = MAX(stage_rank, ?),
            updated_at = ?
        WHERE id = ?`,
		string(item.Status),
		nullableString(item.ErrorMessage),
		nullableString(item.CoverFilename),
		nullableString(item.PDFFilename),
		nullableString(item.EPUBFilename),
		nullableString(item.CoverContentID),
		nullableString(item.CoverStorageID),
		nullableString(item.BookContentID),
		nullableString(item.BookStorageID),
		nullableString(item.BookStorageKey),
		nullableString(item.BookStorageLink),
		nullableString(item.AssetClassID),
		nullableString(item.MintTxHash),
		nullableString(item.PendingClassTx),
		nullableString(item.PendingMintTx),
		rank, string(item.Stage),
		rank,
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return requireRow(res, "item", item.ID)
}

// ResetItem clears every progress field of an item and returns it to
// pending. It is the only path that erases recorded progress.
func (s *Store) ResetItem(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE items SET
            status = ?, error_message = NULL,
            cover_content_id = NULL, cover_storage_id = NULL,
            book_content_id = NULL, book_storage_id = NULL,
            book_storage_key = NULL, book_storage_link = NULL,
            asset_class_id = NULL, mint_tx_hash = NULL,
            pending_class_tx = NULL, pending_mint_tx = NULL,
            stage = ?, stage_rank = 0, updated_at = ?
        WHERE id = ?`,
		string(StatusPending), string(StageNone), nowString(), id,
	)
	if err != nil {
		return fmt.Errorf("reset item: %w", err)
	}
	return requireRow(res, "item", id)
}

// RetryItem returns a failed item to pending while keeping its progress,
// so the next run resumes at the first unfinished stage.
func (s *Store) RetryItem(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE items SET status = ?, error_message = NULL, updated_at = ? WHERE id = ? AND status != ?`,
		string(StatusPending), nowString(), id, string(StatusCompleted),
	)
	if err != nil {
		return fmt.Errorf("retry item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetItem(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("item %s is already completed", id)
	}
	return nil
}

// Summarize counts the items of a session by status.
func (s *Store) Summarize(ctx context.Context, sessionID string) (Summary, error) {
	ctx = ensureContext(ctx)
	summary := Summary{Counts: make(map[Status]int)}
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM items WHERE session_id = ? GROUP BY status`, sessionID)
	if err != nil {
		return summary, fmt.Errorf("summarize items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return summary, fmt.Errorf("scan summary: %w", err)
		}
		summary.Counts[Status(status)] = count
		summary.Total += count
	}
	return summary, rows.Err()
}

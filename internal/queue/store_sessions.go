package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sessionColumns = `id, source_path, files_dir, cursor, created_at, updated_at`

// CreateSession stores a new session and its items in one transaction.
// Items without an id receive one; the stage of each item is reconciled
// against any progress fields it already carries.
func (s *Store) CreateSession(ctx context.Context, sourcePath, filesDir string, items []*Item) (*Session, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	session := &Session{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		FilesDir:   filesDir,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, source_path, files_dir, cursor, created_at, updated_at)
             VALUES (?, ?, ?, 0, ?, ?)`,
			session.ID, nullableString(sourcePath), nullableString(filesDir), timestamp, timestamp,
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		for _, item := range items {
			if err := insertItem(ctx, tx, session.ID, item, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// LatestSession returns the most recently created session, or nil when
// none exist.
func (s *Store) LatestSession(ctx context.Context) (*Session, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest session: %w", err)
	}
	return session, nil
}

// GetSession fetches a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]*Session, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// SetCursor records the index of the next item a batch will visit.
func (s *Store) SetCursor(ctx context.Context, sessionID string, cursor int) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE sessions SET cursor = ?, updated_at = ? WHERE id = ?`,
		cursor, nowString(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return requireRow(res, "session", sessionID)
}

// DeleteSession removes a session and its items.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireRow(res, "session", sessionID)
}

// Clear removes every session and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result, kind, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

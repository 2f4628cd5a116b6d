package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"bookpub/internal/bulkimport"
	"bookpub/internal/queue"
	"bookpub/internal/workflow"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and repair the stored publishing session",
	}

	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	sessionCmd.AddCommand(newSessionExportCommand(ctx))
	sessionCmd.AddCommand(newSessionClearCommand(ctx))
	sessionCmd.AddCommand(newSessionRetryCommand(ctx))

	return sessionCmd
}

type itemView struct {
	ID           string    `json:"id"`
	Row          int       `json:"row"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	Stage        string    `json:"stage"`
	ClassID      string    `json:"class_id,omitempty"`
	MintTxHash   string    `json:"mint_tx_hash,omitempty"`
	CoverID      string    `json:"cover_storage_id,omitempty"`
	BookID       string    `json:"book_storage_id,omitempty"`
	ErrorMessage string    `json:"error,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type sessionView struct {
	ID         string         `json:"id"`
	SourcePath string         `json:"source_path,omitempty"`
	FilesDir   string         `json:"files_dir,omitempty"`
	Cursor     int            `json:"cursor"`
	CreatedAt  time.Time      `json:"created_at"`
	Counts     map[string]int `json:"counts"`
	Items      []itemView     `json:"items"`
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	var sessionID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the progress of every book in a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				session, err := resolveSession(cmd.Context(), store, sessionID)
				if err != nil {
					return err
				}
				if session == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded")
					return nil
				}
				items, err := store.Items(cmd.Context(), session.ID)
				if err != nil {
					return err
				}
				view := buildSessionView(session, items)
				if asJSON {
					return writeJSON(cmd, view)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session %s (cursor %d of %d)\n", view.ID, view.Cursor, len(view.Items))
				if view.SourcePath != "" {
					fmt.Fprintf(out, "Source: %s\n", view.SourcePath)
				}
				fmt.Fprint(out, renderTable(
					[]string{"#", "ID", "Title", "Status", "Stage", "Class", "Error"},
					buildItemRows(view.Items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id (default: latest)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newSessionExportCommand(ctx *commandContext) *cobra.Command {
	var sessionID string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a session as a results CSV that can be imported to resume",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				session, err := resolveSession(cmd.Context(), store, sessionID)
				if err != nil {
					return err
				}
				if session == nil {
					return errors.New("no sessions recorded")
				}
				if outputPath == "" {
					items, err := store.Items(cmd.Context(), session.ID)
					if err != nil {
						return err
					}
					return bulkimport.WriteResults(cmd.OutOrStdout(), items)
				}
				if err := exportResults(cmd.Context(), store, session.ID, outputPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Results written to %s\n", outputPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id (default: latest)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func newSessionClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock := flock.New(cfg.LockPath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return workflow.ErrBatchLocked
			}
			defer lock.Unlock()

			return ctx.withStore(func(store *queue.Store) error {
				n, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d session(s)\n", n)
				return nil
			})
		},
	}
}

func newSessionRetryCommand(ctx *commandContext) *cobra.Command {
	var fromScratch bool

	cmd := &cobra.Command{
		Use:   "retry <item-id>",
		Short: "Return a failed book to pending",
		Long: `Return a book to pending so the next "bookpub import --resume" picks it
up. Recorded progress is kept and the book resumes at its first unfinished
stage. --from-scratch erases the progress; the next run pays for storage and
creates a new asset class.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				id := args[0]
				var err error
				if fromScratch {
					err = store.ResetItem(cmd.Context(), id)
				} else {
					err = store.RetryItem(cmd.Context(), id)
				}
				if errors.Is(err, queue.ErrNotFound) {
					return fmt.Errorf("item %s not found", id)
				}
				if err != nil {
					return err
				}
				if fromScratch {
					fmt.Fprintf(cmd.OutOrStdout(), "Item %s reset to pending; progress cleared\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Item %s returned to pending\n", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fromScratch, "from-scratch", false, "Clear recorded progress before retrying")
	return cmd
}

func resolveSession(ctx context.Context, store *queue.Store, id string) (*queue.Session, error) {
	if id != "" {
		return store.GetSession(ctx, id)
	}
	return store.LatestSession(ctx)
}

func buildSessionView(session *queue.Session, items []*queue.Item) sessionView {
	view := sessionView{
		ID:         session.ID,
		SourcePath: session.SourcePath,
		FilesDir:   session.FilesDir,
		Cursor:     session.Cursor,
		CreatedAt:  session.CreatedAt,
		Counts:     make(map[string]int),
		Items:      make([]itemView, 0, len(items)),
	}
	for _, item := range items {
		view.Counts[string(item.Status)]++
		view.Items = append(view.Items, itemView{
			ID:           item.ID,
			Row:          item.RowIndex + 1,
			Title:        item.Title,
			Status:       string(item.Status),
			Stage:        string(item.Stage),
			ClassID:      item.AssetClassID,
			MintTxHash:   item.MintTxHash,
			CoverID:      item.CoverStorageID,
			BookID:       item.BookStorageID,
			ErrorMessage: item.ErrorMessage,
			UpdatedAt:    item.UpdatedAt,
		})
	}
	return view
}

func buildItemRows(items []itemView) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.Itoa(item.Row),
			item.ID,
			item.Title,
			item.Status,
			item.Stage,
			item.ClassID,
			item.ErrorMessage,
		})
	}
	return rows
}

package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"bookpub/internal/bulkimport"
	"bookpub/internal/queue"
	"bookpub/internal/testsupport"
)

func seedSession(t *testing.T, env *cliTestEnv) (*queue.Store, *queue.Item, *queue.Item) {
	t.Helper()
	store := testsupport.MustOpenStore(t, env.cfg)
	done := testsupport.NewItem("Dune")
	failed := testsupport.NewItem("Emma")
	testsupport.MustCreateSession(t, store, done, failed)

	done.CoverStorageID = strings.Repeat("c", 43)
	done.BookStorageID = strings.Repeat("b", 43)
	done.AssetClassID = "0x00000000000000000000000000000000000000c1"
	done.MintTxHash = "0x" + strings.Repeat("a", 64)
	done.Status = queue.StatusCompleted
	done.Advance(queue.StageListed)
	failed.CoverStorageID = strings.Repeat("d", 43)
	failed.BookStorageID = strings.Repeat("e", 43)
	failed.Advance(queue.StageFilesUploaded)
	failed.SetFailed("mint failed: reverted")
	for _, item := range []*queue.Item{done, failed} {
		if err := store.UpdateItem(context.Background(), item); err != nil {
			t.Fatalf("UpdateItem: %v", err)
		}
	}
	return store, done, failed
}

func TestSessionShowJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	_, done, failed := seedSession(t, env)

	out, _, err := runCLI(t, env, "session", "show", "--json")
	if err != nil {
		t.Fatalf("session show: %v", err)
	}
	var view sessionView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(view.Items) != 2 || view.Counts["completed"] != 1 || view.Counts["failed"] != 1 {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Items[0].ID != done.ID || view.Items[0].ClassID != done.AssetClassID {
		t.Fatalf("unexpected first item %+v", view.Items[0])
	}
	if view.Items[1].ID != failed.ID || view.Items[1].ErrorMessage == "" {
		t.Fatalf("expected failure message on second item, got %+v", view.Items[1])
	}

	out, _, err = runCLI(t, env, "session", "show")
	if err != nil {
		t.Fatalf("session show table: %v", err)
	}
	requireContains(t, out, "Emma")
	requireContains(t, out, "mint failed")
}

func TestSessionRetryKeepsOrClearsProgress(t *testing.T) {
	env := setupCLITestEnv(t)
	store, done, failed := seedSession(t, env)
	ctx := context.Background()

	out, _, err := runCLI(t, env, "session", "retry", failed.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	requireContains(t, out, "returned to pending")
	got, err := store.GetItem(ctx, failed.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Status != queue.StatusPending || got.CoverStorageID == "" {
		t.Fatalf("expected pending with progress kept, got %s cover=%q", got.Status, got.CoverStorageID)
	}

	if _, _, err := runCLI(t, env, "session", "retry", done.ID); err == nil {
		t.Fatal("expected retry of a completed item to fail")
	}

	if _, _, err := runCLI(t, env, "session", "retry", failed.ID, "--from-scratch"); err != nil {
		t.Fatalf("retry --from-scratch: %v", err)
	}
	got, err = store.GetItem(ctx, failed.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.CoverStorageID != "" || got.Stage != queue.StageNone {
		t.Fatalf("expected progress cleared, got cover=%q stage=%s", got.CoverStorageID, got.Stage)
	}
}

func TestSessionExportReimportsAsResume(t *testing.T) {
	env := setupCLITestEnv(t)
	seedSession(t, env)

	out, _, err := runCLI(t, env, "session", "export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := bulkimport.Parse(strings.NewReader(out), bulkimport.DefaultsFromConfig(env.cfg))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Item.Status != queue.StatusCompleted {
		t.Fatalf("expected completed row to stay completed, got %s", rows[0].Item.Status)
	}
	if rows[1].Item.Status != queue.StatusPending || rows[1].Item.CoverStorageID == "" {
		t.Fatalf("expected failed row to resume with its uploads, got %+v", rows[1].Item)
	}
}

func TestSessionClear(t *testing.T) {
	env := setupCLITestEnv(t)
	store, _, _ := seedSession(t, env)

	out, _, err := runCLI(t, env, "session", "clear")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	requireContains(t, out, "Cleared 1 session(s)")
	latest, err := store.LatestSession(context.Background())
	if err != nil {
		t.Fatalf("LatestSession: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected no sessions, got %s", latest.ID)
	}

	out, _, err = runCLI(t, env, "session", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "No sessions recorded")
}

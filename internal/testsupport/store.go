package testsupport

import (
	"context"
	"testing"

	"bookpub/internal/config"
	"bookpub/internal/queue"
)

// MustOpenStore opens the session store for cfg and closes it on cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// NewItem returns a pending item with every required field populated.
func NewItem(title string) *queue.Item {
	return &queue.Item{
		Title:         title,
		Description:   "A book about " + title,
		AuthorName:    "Test Author",
		Publisher:     "Test Press",
		Language:      "en",
		ListPrice:     9.99,
		EditionName:   "Standard Edition",
		AutoDeliver:   true,
		CoverFilename: title + "-cover.jpg",
		EPUBFilename:  title + ".epub",
		Cover:         &queue.FileRef{Name: title + "-cover.jpg", Data: []byte("cover:" + title), ContentType: "image/jpeg"},
		Ebook:         &queue.FileRef{Name: title + ".epub", Data: []byte("ebook:" + title), ContentType: "application/epub+zip"},
		Status:        queue.StatusPending,
		Stage:         queue.StageNone,
	}
}

// MustCreateSession stores items under a new session.
func MustCreateSession(t testing.TB, store *queue.Store, items ...*queue.Item) *queue.Session {
	t.Helper()
	session, err := store.CreateSession(context.Background(), "books.csv", t.TempDir(), items)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return session
}

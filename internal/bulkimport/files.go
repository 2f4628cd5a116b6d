package bulkimport

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/cases"

	"bookpub/internal/queue"
	"bookpub/internal/services"
)

// AttachFiles loads the cover and ebook of each item from dir. Files an item
// has already stored are not read. Items whose files are missing are left
// unloaded and reported in the joined error; the upload stage fails them
// with a re-supply message when they are processed.
func AttachFiles(items []*queue.Item, dir string) error {
	index, err := indexDir(dir)
	if err != nil {
		return services.Wrap(services.ErrFilesUnavailable, "import", "read files directory", dir, err)
	}

	var errs []error
	for _, item := range items {
		if item.Status == queue.StatusCompleted {
			continue
		}
		if item.CoverStorageID == "" && !item.Cover.Loaded() {
			ref, err := load(dir, index, item.CoverFilename)
			if err != nil {
				errs = append(errs, fileError(item, "cover image", err))
			} else {
				item.Cover = ref
			}
		}
		if item.BookStorageID == "" && !item.Ebook.Loaded() {
			ref, err := loadEbook(dir, index, item)
			if err != nil {
				errs = append(errs, fileError(item, "ebook", err))
			} else {
				item.Ebook = ref
			}
		}
	}
	return errors.Join(errs...)
}

// LoadFile reads a single file by path and sniffs its content type.
func LoadFile(path string) (*queue.FileRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrFilesUnavailable, "import", "read file", path, err)
	}
	return &queue.FileRef{
		Name:        filepath.Base(path),
		Data:        data,
		ContentType: mimetype.Detect(data).String(),
	}, nil
}

// loadEbook prefers the EPUB and falls back to the PDF when the EPUB is
// named but absent.
func loadEbook(dir string, index map[string]string, item *queue.Item) (*queue.FileRef, error) {
	var firstErr error
	for _, name := range []string{item.EPUBFilename, item.PDFFilename} {
		if name == "" {
			continue
		}
		ref, err := load(dir, index, name)
		if err == nil {
			return ref, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = errors.New("no ebook filename")
	}
	return nil, firstErr
}

func load(dir string, index map[string]string, name string) (*queue.FileRef, error) {
	if name == "" {
		return nil, errors.New("no filename")
	}
	if filepath.Base(name) != name {
		return nil, fmt.Errorf("%q must be a bare filename", name)
	}
	actual, ok := index[cases.Fold().String(name)]
	if !ok {
		return nil, fmt.Errorf("%s not found in %s", name, dir)
	}
	data, err := os.ReadFile(filepath.Join(dir, actual))
	if err != nil {
		return nil, err
	}
	return &queue.FileRef{
		Name:        actual,
		Data:        data,
		ContentType: mimetype.Detect(data).String(),
	}, nil
}

// indexDir maps case-folded names to the names on disk, so a CSV written
// on a case-insensitive filesystem still resolves.
func indexDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fold := cases.Fold()
	index := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.Type()&fs.ModeType != 0 && entry.Type()&fs.ModeSymlink == 0 {
			continue
		}
		name := entry.Name()
		key := fold.String(name)
		if _, exists := index[key]; !exists || name == key {
			index[key] = name
		}
	}
	return index, nil
}

func fileError(item *queue.Item, label string, err error) error {
	return services.Wrap(services.ErrFilesUnavailable, "import", label,
		fmt.Sprintf("%s: re-supply files", item.Title), err)
}

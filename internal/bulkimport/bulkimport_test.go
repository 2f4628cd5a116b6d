package bulkimport_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"bookpub/internal/bulkimport"
	"bookpub/internal/queue"
	"bookpub/internal/services"
)

var defaults = bulkimport.Defaults{
	Price:       4.99,
	EditionName: "Standard Edition",
	Language:    "zh",
}

const header = "book_title,book_description,author_name,author_description,publisher,isbn,publish_date,list_price,tags,cover_image_filename,pdf_filename,epub_filename,edition_name,edition_description,auto_deliver,auto_memo,enable_drm,language\n"

func parse(t *testing.T, body string) []bulkimport.Row {
	t.Helper()
	rows, err := bulkimport.Parse(strings.NewReader(body), defaults)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return rows
}

func TestParseAppliesDefaults(t *testing.T) {
	body := "\ufeffBook_Title,Book_Description,AUTHOR_NAME,cover_image_filename,epub_filename,list_price,tags,auto_deliver,enable_drm,language\n" +
		"Dune,Spice,Frank Herbert,dune.jpg,dune.epub,abc,\" sci-fi , classic \",,TRUE,zh-tw\n"
	rows := parse(t, body)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	item := rows[0].Item
	if item.Title != "Dune" || item.AuthorName != "Frank Herbert" {
		t.Fatalf("unexpected descriptive fields: %+v", item)
	}
	if item.ListPrice != 4.99 {
		t.Fatalf("expected default price for unparseable value, got %v", item.ListPrice)
	}
	if item.EditionName != "Standard Edition" || item.EditionDescription != "" {
		t.Fatalf("unexpected edition defaults: %q / %q", item.EditionName, item.EditionDescription)
	}
	if !item.AutoDeliver || !item.EnableDRM {
		t.Fatalf("expected auto deliver and DRM enabled, got %v / %v", item.AutoDeliver, item.EnableDRM)
	}
	if item.Language != "zh-TW" {
		t.Fatalf("expected canonical language tag, got %q", item.Language)
	}
	if len(item.Tags) != 2 || item.Tags[0] != "sci-fi" || item.Tags[1] != "classic" {
		t.Fatalf("unexpected tags %v", item.Tags)
	}
	if rows[0].Line != 2 {
		t.Fatalf("expected first data row on line 2, got %d", rows[0].Line)
	}
}

func TestParseRejectsMissingRequiredColumns(t *testing.T) {
	_, err := bulkimport.Parse(strings.NewReader("book_title,author_name\nDune,Frank\n"), defaults)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "book_description") {
		t.Fatalf("expected missing column named, got %v", err)
	}
}

func TestValidateMissingCoverAndEbook(t *testing.T) {
	rows := parse(t, header+"Dune,Spice,Frank Herbert,,,,,,,,,,,,,,,\n")
	errs := bulkimport.Validate(rows, 0.99)
	if len(errs) != 2 {
		t.Fatalf("expected exactly 2 errors, got %d: %v", len(errs), errs)
	}
	if errs[0].Field != "cover_image_filename" || errs[1].Field != "pdf_filename/epub_filename" {
		t.Fatalf("unexpected fields: %q, %q", errs[0].Field, errs[1].Field)
	}
}

func TestValidateRules(t *testing.T) {
	long := strings.Repeat("x", 1001)
	body := header +
		",desc,author,,,,,,,a.jpg,,a.epub,,,,,,\n" +
		"Title," + long + ",author,,,,,0.5,,b.jpg,,b.epub,,,false,memo,maybe,\n" +
		"Other,desc,author,,,,,0,,A.JPG,,c.epub,,,,,,\n"
	rows := parse(t, body)
	errs := bulkimport.Validate(rows, 0.99)

	want := map[string]bool{
		"2:book_title":           false,
		"3:book_description":     false,
		"3:list_price":           false,
		"3:auto_memo":            false,
		"3:enable_drm":           false,
		"4:cover_image_filename": false,
	}
	for _, e := range errs {
		key := strconv.Itoa(e.Line) + ":" + e.Field
		if _, ok := want[key]; !ok {
			t.Fatalf("unexpected error %v", e)
		}
		want[key] = true
	}
	for key, seen := range want {
		if !seen {
			t.Fatalf("expected error %s, got %v", key, errs)
		}
	}

	accepted := bulkimport.Accepted(rows, errs)
	if len(accepted) != 0 {
		t.Fatalf("expected every row rejected, got %d", len(accepted))
	}
}

func TestParseResumeColumns(t *testing.T) {
	coverID := strings.Repeat("c", 43)
	bookID := strings.Repeat("b", 43)
	tx := "0x" + strings.Repeat("a", 64)
	body := strings.TrimSuffix(header, "\n") + ",class_id,mint_tx_hash,cover_arweave_id,book_arweave_id,book_arweave_key,status,remark\n" +
		"Dune,Spice,Frank,,,,,,,d.jpg,,d.epub,,,,,,,0xc1,," + coverID + "," + bookID + ",,failed,boom\n" +
		"Emma,Wit,Jane,,,,,,,e.jpg,,e.epub,,,,,,,0xc2," + tx + "," + coverID + "," + bookID + ",key,COMPLETED,\n" +
		"Bad,Row,Anon,,,,,,,f.jpg,,f.epub,,,,,,,c3,0x12,short,,,,\n"
	rows := parse(t, body)

	first := rows[0].Item
	if first.Status != queue.StatusPending || first.Stage != queue.StageClassCreated {
		t.Fatalf("expected pending item resuming after class creation, got %s/%s", first.Status, first.Stage)
	}
	second := rows[1].Item
	if second.Status != queue.StatusCompleted || second.Stage != queue.StageListed {
		t.Fatalf("expected completed listed item, got %s/%s", second.Status, second.Stage)
	}
	if second.BookStorageKey != "key" {
		t.Fatalf("expected key carried, got %q", second.BookStorageKey)
	}

	errs := bulkimport.Validate(rows[2:], 0.99)
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, f := range []string{"class_id", "mint_tx_hash", "cover_arweave_id"} {
		if !fields[f] {
			t.Fatalf("expected %s format error, got %v", f, errs)
		}
	}
	if rows[2].Item.AssetClassID != "" || rows[2].Item.MintTxHash != "" {
		t.Fatal("malformed progress values must not be applied")
	}
}

func TestAttachFilesPrefersEPUBAndReportsMissing(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	write("Cover.PNG", png)
	write("book.epub", []byte("PK\x03\x04epub"))
	write("book.pdf", []byte("%PDF-1.7\n"))

	found := &queue.Item{Title: "Found", CoverFilename: "cover.png", EPUBFilename: "book.epub", PDFFilename: "book.pdf"}
	missing := &queue.Item{Title: "Missing", CoverFilename: "nope.jpg", PDFFilename: "nope.pdf"}
	stored := &queue.Item{Title: "Stored", CoverFilename: "gone.jpg", CoverStorageID: "x", EPUBFilename: "book.epub"}

	err := bulkimport.AttachFiles([]*queue.Item{found, missing, stored}, dir)
	if !errors.Is(err, services.ErrFilesUnavailable) {
		t.Fatalf("expected files unavailable error, got %v", err)
	}
	if !strings.Contains(err.Error(), "re-supply") {
		t.Fatalf("expected re-supply hint, got %v", err)
	}
	if !found.Cover.Loaded() || found.Cover.ContentType != "image/png" {
		t.Fatalf("expected case-insensitive cover match sniffed as png, got %+v", found.Cover)
	}
	if found.Ebook == nil || found.Ebook.Name != "book.epub" {
		t.Fatalf("expected EPUB preferred, got %+v", found.Ebook)
	}
	if missing.Cover.Loaded() || missing.Ebook.Loaded() {
		t.Fatal("expected missing files to stay unloaded")
	}
	if stored.Cover != nil {
		t.Fatal("expected stored cover not to be read")
	}
}

func TestNewRowValidatesLikeCSV(t *testing.T) {
	row := bulkimport.NewRow(map[string]string{
		bulkimport.ColTitle:         " Dune ",
		bulkimport.ColDescription:   "Spice",
		bulkimport.ColAuthorName:    "Frank",
		bulkimport.ColCoverFilename: "dune.jpg",
		bulkimport.ColEPUBFilename:  "dune.epub",
		bulkimport.ColAutoMemo:      "thanks",
		bulkimport.ColAutoDeliver:   "false",
		bulkimport.ColListPrice:     "",
		bulkimport.ColEnableDRM:     "true",
	}, defaults)

	if row.Item.Title != "Dune" || row.Item.ListPrice != 4.99 || !row.Item.EnableDRM {
		t.Fatalf("unexpected item %+v", row.Item)
	}
	errs := bulkimport.Validate([]bulkimport.Row{row}, 0.99)
	if len(errs) != 1 || errs[0].Field != bulkimport.ColAutoMemo {
		t.Fatalf("expected auto_memo error only, got %v", errs)
	}
}

func TestLoadFileSniffsContentType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ref, err := bulkimport.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if ref.Name != "book.pdf" || ref.ContentType != "application/pdf" {
		t.Fatalf("unexpected ref %+v", ref)
	}
	if _, err := bulkimport.LoadFile(filepath.Join(t.TempDir(), "gone.pdf")); !errors.Is(err, services.ErrFilesUnavailable) {
		t.Fatalf("expected files unavailable, got %v", err)
	}
}

func TestWriteResultsRoundTripsAsResume(t *testing.T) {
	item := &queue.Item{
		Title:          "Dune",
		Description:    "Spice, \"quoted\"",
		AuthorName:     "Frank Herbert",
		ListPrice:      9.99,
		Tags:           []string{"sci-fi", "classic"},
		CoverFilename:  "dune.jpg",
		EPUBFilename:   "dune.epub",
		EditionName:    "Standard Edition",
		AutoDeliver:    true,
		Language:       "en",
		AssetClassID:   "0x00000000000000000000000000000000000000c1",
		MintTxHash:     "0x" + strings.Repeat("f", 64),
		CoverStorageID: strings.Repeat("c", 43),
		BookStorageID:  strings.Repeat("b", 43),
		Status:         queue.StatusCompleted,
	}

	var buf bytes.Buffer
	if err := bulkimport.WriteResults(&buf, []*queue.Item{item}); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\ufeffbook_title,") {
		t.Fatalf("expected BOM and header, got %q", out[:20])
	}
	firstLine := strings.SplitN(out, "\n", 2)[0]
	if !strings.HasSuffix(firstLine, "class_id,mint_tx_hash,cover_arweave_id,book_arweave_id,book_arweave_key,status,remark") {
		t.Fatalf("unexpected header %q", firstLine)
	}

	rows := parse(t, out)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	back := rows[0].Item
	if back.Description != item.Description || back.ListPrice != 9.99 {
		t.Fatalf("unexpected round trip %+v", back)
	}
	if back.Status != queue.StatusCompleted || back.Stage != queue.StageListed {
		t.Fatalf("expected completed resume row, got %s/%s", back.Status, back.Stage)
	}
	if errs := bulkimport.Validate(rows, 0.99); len(errs) != 0 {
		t.Fatalf("expected exported row to validate, got %v", errs)
	}
}

package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bookpub/internal/bulkimport"
	"bookpub/internal/config"
	"bookpub/internal/queue"
)

type publishFlags struct {
	title              string
	description        string
	author             string
	authorDescription  string
	publisher          string
	isbn               string
	publishDate        string
	language           string
	tags               []string
	price              string
	editionName        string
	editionDescription string
	memo               string
	noAutoDeliver      bool
	drm                bool
	cover              string
	epub               string
	pdf                string
}

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var flags publishFlags

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a single book",
		Long: `Publish one book from files on disk. The book goes through the same
validation as a CSV row and is recorded as a one-book session, so
"bookpub import --resume" picks it up if the run is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			item, err := flags.item(cmd, cfg)
			if err != nil {
				return err
			}

			rt, err := ctx.newPublishRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			session, err := rt.store.CreateSession(cmd.Context(), "", filepath.Dir(flags.cover), []*queue.Item{item})
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			return runSession(cmd, rt, session, []*queue.Item{item}, runOptions{sequential: true})
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.title, "title", "", "Book title")
	f.StringVar(&flags.description, "description", "", "Book description (at most 1000 characters)")
	f.StringVar(&flags.author, "author", "", "Author name")
	f.StringVar(&flags.authorDescription, "author-description", "", "Short author biography")
	f.StringVar(&flags.publisher, "publisher", "", "Publisher name")
	f.StringVar(&flags.isbn, "isbn", "", "ISBN")
	f.StringVar(&flags.publishDate, "publish-date", "", "Publication date (YYYY-MM-DD)")
	f.StringVar(&flags.language, "language", "", "Language tag (default: publishing.default_language)")
	f.StringSliceVar(&flags.tags, "tag", nil, "Tag (repeatable)")
	f.StringVar(&flags.price, "price", "", "List price (default: publishing.default_price)")
	f.StringVar(&flags.editionName, "edition-name", "", "Edition name")
	f.StringVar(&flags.editionDescription, "edition-description", "", "Edition description")
	f.StringVar(&flags.memo, "memo", "", "Message delivered with each purchase")
	f.BoolVar(&flags.noAutoDeliver, "no-auto-deliver", false, "Deliver purchases manually")
	f.BoolVar(&flags.drm, "drm", false, "Encrypt the ebook before upload")
	f.StringVar(&flags.cover, "cover", "", "Cover image path")
	f.StringVar(&flags.epub, "epub", "", "EPUB path")
	f.StringVar(&flags.pdf, "pdf", "", "PDF path")
	cmd.MarkFlagsMutuallyExclusive("epub", "pdf")
	return cmd
}

// item validates the flags as a CSV row would be and loads the files.
func (p *publishFlags) item(cmd *cobra.Command, cfg *config.Config) (*queue.Item, error) {
	paths := map[string]*string{"cover": &p.cover, "epub": &p.epub, "pdf": &p.pdf}
	for name, path := range paths {
		if *path == "" {
			continue
		}
		expanded, err := config.ExpandPath(*path)
		if err != nil {
			return nil, fmt.Errorf("resolve --%s: %w", name, err)
		}
		*path = expanded
	}

	values := map[string]string{
		bulkimport.ColTitle:              p.title,
		bulkimport.ColDescription:        p.description,
		bulkimport.ColAuthorName:         p.author,
		bulkimport.ColAuthorDescription:  p.authorDescription,
		bulkimport.ColPublisher:          p.publisher,
		bulkimport.ColISBN:               p.isbn,
		bulkimport.ColPublishDate:        p.publishDate,
		bulkimport.ColLanguage:           p.language,
		bulkimport.ColTags:               strings.Join(p.tags, ","),
		bulkimport.ColListPrice:          p.price,
		bulkimport.ColEditionName:        p.editionName,
		bulkimport.ColEditionDescription: p.editionDescription,
		bulkimport.ColAutoMemo:           p.memo,
		bulkimport.ColAutoDeliver:        strconv.FormatBool(!p.noAutoDeliver),
		bulkimport.ColEnableDRM:          strconv.FormatBool(p.drm),
		bulkimport.ColCoverFilename:      baseName(p.cover),
		bulkimport.ColEPUBFilename:       baseName(p.epub),
		bulkimport.ColPDFFilename:        baseName(p.pdf),
	}
	row := bulkimport.NewRow(values, bulkimport.DefaultsFromConfig(cfg))
	if errs := bulkimport.Validate([]bulkimport.Row{row}, cfg.Publishing.MinimumPrice); len(errs) > 0 {
		fmt.Fprint(cmd.OutOrStdout(), renderValidationErrors(errs))
		return nil, errors.New("book is not valid")
	}

	item := row.Item
	cover, err := bulkimport.LoadFile(p.cover)
	if err != nil {
		return nil, err
	}
	ebookPath := p.epub
	if ebookPath == "" {
		ebookPath = p.pdf
	}
	ebook, err := bulkimport.LoadFile(ebookPath)
	if err != nil {
		return nil, err
	}
	item.Cover = cover
	item.Ebook = ebook
	return item, nil
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

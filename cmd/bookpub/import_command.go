package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bookpub/internal/bulkimport"
	"bookpub/internal/config"
	"bookpub/internal/queue"
)

type importOptions struct {
	filesDir    string
	resultsPath string
	resume      bool
	dryRun      bool
	limit       int
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import [csv]",
		Short: "Publish every book listed in a CSV file",
		Long: `Publish every valid row of a CSV file. Rows that fail validation are
reported and skipped. A results CSV with the progress of every book is
written when the run ends and can be imported again to resume.

With --resume the latest session is continued from the store instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if opts.resume {
				if len(args) > 0 {
					return errors.New("--resume continues the latest session; omit the CSV path")
				}
				return resumeSession(cmd, ctx, opts)
			}
			if len(args) == 0 {
				return errors.New("csv path is required (or pass --resume)")
			}

			csvPath, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve csv path: %w", err)
			}
			items, filesDir, err := loadImport(cmd, cfg, csvPath, opts)
			if err != nil {
				return err
			}
			if opts.dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "Dry run: %d book(s) ready to publish\n", len(items))
				return nil
			}
			if len(items) == 0 {
				return errors.New("no valid rows to publish")
			}

			rt, err := ctx.newPublishRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			session, err := rt.store.CreateSession(cmd.Context(), csvPath, filesDir, items)
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			return runSession(cmd, rt, session, items, runOptions{
				resultsPath: resultsPathFor(opts.resultsPath, csvPath),
			})
		},
	}

	cmd.Flags().StringVar(&opts.filesDir, "files", "", "Directory holding the cover and ebook files (default: paths.files_dir or the CSV's directory)")
	cmd.Flags().StringVar(&opts.resultsPath, "results", "", "Where to write the results CSV (default: <csv>-results.csv)")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Continue the latest session instead of importing a new CSV")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Validate the CSV and files without publishing")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Publish at most N valid rows (0 for all)")
	return cmd
}

// loadImport parses and validates the CSV, prints rejected rows, and
// attaches files to the accepted items.
func loadImport(cmd *cobra.Command, cfg *config.Config, csvPath string, opts importOptions) ([]*queue.Item, string, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, "", fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	rows, err := bulkimport.Parse(f, bulkimport.DefaultsFromConfig(cfg))
	if err != nil {
		return nil, "", err
	}
	errs := bulkimport.Validate(rows, cfg.Publishing.MinimumPrice)
	items := bulkimport.Accepted(rows, errs)

	out := cmd.OutOrStdout()
	if len(errs) > 0 {
		fmt.Fprintf(out, "%d validation error(s); affected rows are skipped\n", len(errs))
		fmt.Fprint(out, renderValidationErrors(errs))
	}
	if opts.limit > 0 && len(items) > opts.limit {
		items = items[:opts.limit]
	}

	filesDir, err := resolveFilesDir(opts.filesDir, cfg, csvPath)
	if err != nil {
		return nil, "", err
	}
	if len(items) > 0 {
		reportFileErrors(cmd.ErrOrStderr(), bulkimport.AttachFiles(items, filesDir))
	}
	return items, filesDir, nil
}

func resumeSession(cmd *cobra.Command, ctx *commandContext, opts importOptions) error {
	rt, err := ctx.newPublishRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	session, err := rt.store.LatestSession(cmd.Context())
	if err != nil {
		return err
	}
	if session == nil {
		return errors.New("no session to resume; import a CSV first")
	}
	items, err := rt.store.Items(cmd.Context(), session.ID)
	if err != nil {
		return err
	}
	filesDir := session.FilesDir
	if opts.filesDir != "" {
		if filesDir, err = config.ExpandPath(opts.filesDir); err != nil {
			return fmt.Errorf("resolve files directory: %w", err)
		}
	}
	reportFileErrors(cmd.ErrOrStderr(), bulkimport.AttachFiles(items, filesDir))

	fmt.Fprintf(cmd.OutOrStdout(), "Resuming session %s (%d books, cursor %d)\n", session.ID, len(items), session.Cursor)
	return runSession(cmd, rt, session, items, runOptions{
		resultsPath: resultsPathFor(opts.resultsPath, session.SourcePath),
	})
}

func resolveFilesDir(flagValue string, cfg *config.Config, csvPath string) (string, error) {
	switch {
	case strings.TrimSpace(flagValue) != "":
		dir, err := config.ExpandPath(flagValue)
		if err != nil {
			return "", fmt.Errorf("resolve files directory: %w", err)
		}
		return dir, nil
	case cfg.Paths.FilesDir != "":
		return cfg.Paths.FilesDir, nil
	default:
		return filepath.Dir(csvPath), nil
	}
}

// resultsPathFor derives "<csv>-results.csv" next to the source file.
func resultsPathFor(flagValue, sourcePath string) string {
	if strings.TrimSpace(flagValue) != "" {
		if expanded, err := config.ExpandPath(flagValue); err == nil {
			return expanded
		}
		return flagValue
	}
	if sourcePath == "" {
		return ""
	}
	base := strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath))
	return base + "-results.csv"
}

// reportFileErrors prints one warning per missing file. The import goes on;
// affected books fail at upload with a re-supply message.
func reportFileErrors(out io.Writer, err error) {
	if err == nil {
		return
	}
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(out, "warn: %s\n", line)
	}
}

func renderValidationErrors(errs []bulkimport.ValidationError) string {
	rows := make([][]string, 0, len(errs))
	for _, e := range errs {
		rows = append(rows, []string{strconv.Itoa(e.Line), e.Field, e.Message})
	}
	return renderTable(
		[]string{"Line", "Field", "Problem"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft},
	)
}

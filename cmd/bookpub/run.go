package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"bookpub/internal/bulkimport"
	"bookpub/internal/fileutil"
	"bookpub/internal/preflight"
	"bookpub/internal/queue"
	"bookpub/internal/services"
	"bookpub/internal/workflow"
)

type runOptions struct {
	resultsPath string
	sequential  bool
}

// runSession checks readiness, drives the batch, and always writes the
// results CSV when a path is known, even after an abort.
func runSession(cmd *cobra.Command, rt *publishRuntime, session *queue.Session, items []*queue.Item, opts runOptions) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	results := rt.preflight(cmd.Context())
	if failed := preflight.Failed(results); len(failed) > 0 {
		writePreflight(out, failed, colorize)
		return fmt.Errorf("preflight failed; session %s saved for --resume", session.ID)
	}

	ctx, shouldContinue, stop := interruptible(cmd.Context(), cmd.ErrOrStderr())
	defer stop()

	result, runErr := rt.batch().Run(ctx, session, items, workflow.BatchOptions{
		ShouldContinue: shouldContinue,
		Delay:          rt.cfg.ItemDelay(),
		Sequential:     opts.sequential,
		OnItem: func(item *queue.Item, ok bool) {
			if ok {
				fmt.Fprintln(out, renderStatusLine(item.Title, statusOK, item.AssetClassID, colorize))
				return
			}
			fmt.Fprintln(out, renderStatusLine(item.Title, statusError, item.ErrorMessage, colorize))
		},
	})
	if errors.Is(runErr, workflow.ErrBatchLocked) {
		return runErr
	}

	// The command context may be canceled; the store still has to be read.
	reportCtx := context.WithoutCancel(cmd.Context())
	if opts.resultsPath != "" {
		if err := exportResults(reportCtx, rt.store, session.ID, opts.resultsPath); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warn: write results: %v\n", err)
		} else {
			fmt.Fprintf(out, "Results written to %s\n", opts.resultsPath)
		}
	}
	if summary, err := rt.store.Summarize(reportCtx, session.ID); err == nil {
		fmt.Fprint(out, renderSummary(summary))
	}
	fmt.Fprintf(out, "Published %d, failed %d\n", result.Completed, result.Failed)

	if runErr != nil {
		if hint := services.Hint(runErr); hint != "" {
			return fmt.Errorf("batch aborted: %w (%s)", runErr, hint)
		}
		return fmt.Errorf("batch aborted: %w", runErr)
	}
	return nil
}

// interruptible lets the first signal finish the current book and the
// second stop the batch once the running stage returns. A stage is never
// cut off mid-flight, so a broadcast transaction is always awaited.
func interruptible(parent context.Context, out io.Writer) (context.Context, func() bool, func()) {
	ctx, cancel := context.WithCancel(parent)
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	var stopping atomic.Bool
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-signals:
				if stopping.Swap(true) {
					cancel()
					return
				}
				fmt.Fprintln(out, "Stopping after the current book (interrupt again to stop after the current step)")
			case <-done:
				return
			}
		}
	}()

	stop := func() {
		signal.Stop(signals)
		close(done)
		cancel()
	}
	return ctx, func() bool { return !stopping.Load() }, stop
}

func exportResults(ctx context.Context, store *queue.Store, sessionID, path string) error {
	items, err := store.Items(ctx, sessionID)
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return bulkimport.WriteResults(w, items)
	})
}

func renderSummary(summary queue.Summary) string {
	var rows [][]string
	for _, status := range queue.AllStatuses() {
		if n := summary.Count(status); n > 0 {
			rows = append(rows, []string{string(status), strconv.Itoa(n)})
		}
	}
	rows = append(rows, []string{"total", strconv.Itoa(summary.Total)})
	return renderTable([]string{"Status", "Books"}, rows, []columnAlignment{alignLeft, alignRight})
}

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bookpub/internal/metrics"
	"bookpub/internal/notifications"
	"bookpub/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check directories, wallet, chain, and endpoints before publishing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			notifier := notifications.NewService(cfg)
			var chainCheck preflight.Chain
			client, dialErr := dialChain(cmd.Context(), cfg, notifier, logger)
			if dialErr == nil {
				defer client.Close()
				chainCheck = client
			}
			orchestrator := newOrchestrator(cfg, nil, client, notifier, metrics.NewRecorder(cfg, logger), logger)

			results := preflight.RunAll(cmd.Context(), cfg, chainCheck, orchestrator.HealthChecks(cmd.Context()))
			for i := range results {
				if dialErr != nil && results[i].Name == "Chain" {
					results[i].Detail = dialErr.Error()
				}
			}
			out := cmd.OutOrStdout()
			writePreflight(out, results, shouldColorize(out))
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			fmt.Fprintln(out, "Ready to publish")
			return nil
		},
	}
}

func writePreflight(out io.Writer, results []preflight.Result, colorize bool) {
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bookpub/internal/contentid"
	"bookpub/internal/encryption"
	"bookpub/internal/fileutil"
	"bookpub/internal/notifications"
)

func newHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "hash <file>...",
		Short:       "Print the content id of each file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				id, err := contentid.Compute(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", id, path)
			}
			return nil
		},
	}
}

func newDecryptCommand() *cobra.Command {
	var key string
	var outputPath string

	cmd := &cobra.Command{
		Use:         "decrypt <file>",
		Short:       "Recover an encrypted ebook with its stored key",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := encryption.DecodeKey(strings.TrimSpace(key))
			if err != nil {
				return err
			}
			sealed, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			plain, err := encryption.Decrypt(sealed, raw)
			if err != nil {
				return fmt.Errorf("decrypt %s: %w", args[0], err)
			}
			if outputPath == "" {
				_, err = cmd.OutOrStdout().Write(plain)
				return err
			}
			if err := fileutil.WriteFileAtomic(outputPath, plain, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(plain), outputPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Base64 key from the book_arweave_key column")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: stdout)")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Notifications are disabled (set notifications.ntfy_topic)")
				return nil
			}
			if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}

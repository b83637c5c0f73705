// Package cli implements the pdftrack command line: an interactive menu by
// default, plus generate, collect, log and version subcommands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pdftrack/internal/platform/config"
	"pdftrack/internal/platform/logger"
)

// rootOptions holds the persistent flags of one command tree.
type rootOptions struct {
	logFormat string
	logLevel  string
}

// NewRootCmd builds the command tree. Every tree owns its flag values, so
// tests build a fresh tree per case.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "pdftrack",
		Short: "Issue tracked PDF documents and collect their notifications",
		Long: `pdftrack issues PDFs that carry one fingerprint in a visible watermark,
a QR code and the document metadata, records every issuance locally and
reports it to a collector.

Run without a subcommand for the interactive menu.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: json or text (default from PDFTRACK_LOG_FORMAT)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from PDFTRACK_LOG_LEVEL)")

	root.AddCommand(newGenerateCmd(opts))
	root.AddCommand(newCollectCmd(opts))
	root.AddCommand(newLogCmd())
	root.AddCommand(newVersionCmd(version))
	return root
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// newLogger logs to stderr so command output on stdout stays clean.
func (o *rootOptions) newLogger(cmd *cobra.Command, cfg config.Log) *slog.Logger {
	format, level := cfg.Format, cfg.Level
	if o.logFormat != "" {
		format = o.logFormat
	}
	if o.logLevel != "" {
		level = o.logLevel
	}
	return logger.NewWithWriter(cmd.ErrOrStderr(), format, level)
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pdftrack %s\n", version)
		},
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pdftrack/internal/issuancelog"
	"pdftrack/internal/platform/config"
	"pdftrack/internal/tracking"
)

func newLogCmd() *cobra.Command {
	var (
		asJSON  bool
		logPath string
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the local issuance log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.TrackerFromEnv()
			if err != nil {
				return err
			}
			if logPath != "" {
				cfg.LogPath = logPath
			}
			return showLog(cmd, issuancelog.New(cfg.LogPath), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw records, one JSON object per line")
	cmd.Flags().StringVar(&logPath, "log-path", "", "Issuance log (default from PDFTRACK_LOG_PATH)")
	return cmd
}

func showLog(cmd *cobra.Command, log *issuancelog.Log, asJSON bool) error {
	recs, err := log.ReadAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("read %s: %w", log.Path(), err)
	}
	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		fmt.Fprintln(out, "No issuances logged yet.")
		return nil
	}
	if asJSON {
		enc := json.NewEncoder(out)
		for _, rec := range recs {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	}
	printRecords(out, recs)
	return nil
}

func printRecords(w io.Writer, recs []tracking.IssuanceRecord) {
	fmt.Fprintf(w, "Tracking log (%d):\n\n", len(recs))
	for _, rec := range recs {
		fmt.Fprintf(w, "  %s  %s  %-28s %-15s %s\n",
			rec.Timestamp.Local().Format(tracking.DisplayTimeLayout),
			rec.Fingerprint,
			rec.Recipient.Email,
			rec.Recipient.SourceAddress,
			rec.OutputFilePath,
		)
	}
}

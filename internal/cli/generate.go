package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pdftrack/internal/pipeline"
	"pdftrack/internal/platform/config"
	"pdftrack/internal/tracking"
)

type generateOptions struct {
	name             string
	email            string
	ip               string
	contentFile      string
	output           string
	collectorURL     string
	logPath          string
	timeout          time.Duration
	metricsFile      string
	noCollector      bool
	keepIntermediate bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Issue one tracked PDF",
		Long: `Issue one tracked PDF. Content is read from --content-file, or from stdin
when the flag is "-" or absent.`,
		Example: `  pdftrack generate --name Alice --email alice@x.com --content-file memo.txt
  echo "Line1" | pdftrack generate --name Bob --email bob@y.com --ip 10.0.0.7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "", "Recipient name")
	f.StringVar(&opts.email, "email", "", "Recipient email")
	f.StringVar(&opts.ip, "ip", "", "Recipient IP address (detected when empty)")
	f.StringVar(&opts.contentFile, "content-file", "-", "File holding the document text, - for stdin")
	f.StringVarP(&opts.output, "output", "o", "", "Output path (default tracked_doc_<name>_<fingerprint>.pdf)")
	f.StringVar(&opts.collectorURL, "collector-url", "", "Collector endpoint (default from PDFTRACK_COLLECTOR_URL)")
	f.BoolVar(&opts.noCollector, "offline", false, "Do not notify the collector")
	f.StringVar(&opts.logPath, "log-path", "", "Issuance log (default from PDFTRACK_LOG_PATH)")
	f.DurationVar(&opts.timeout, "timeout", 0, "Notification timeout (default from PDFTRACK_NOTIFY_TIMEOUT)")
	f.BoolVar(&opts.keepIntermediate, "keep-intermediate", false, "Keep the PDF written before metadata embedding")
	f.StringVar(&opts.metricsFile, "metrics-textfile", "", "Write issuance metrics to this file")
	return cmd
}

func (o *generateOptions) apply(cfg *config.Tracker) {
	if o.collectorURL != "" {
		cfg.CollectorURL = o.collectorURL
	}
	if o.noCollector {
		cfg.CollectorURL = ""
	}
	if o.logPath != "" {
		cfg.LogPath = o.logPath
	}
	if o.timeout > 0 {
		cfg.NotifyTimeout = o.timeout
	}
	if o.keepIntermediate {
		cfg.KeepIntermediate = true
	}
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts *generateOptions) error {
	cfg, err := config.TrackerFromEnv()
	if err != nil {
		return err
	}
	opts.apply(&cfg)

	content, err := readContent(cmd.InOrStdin(), opts.contentFile)
	if err != nil {
		return err
	}

	iss := newIssuer(cfg, root.newLogger(cmd, cfg.Log))
	res, err := iss.service.Issue(cmd.Context(), pipeline.Request{
		OutputPath: opts.output,
		Content:    content,
		Recipient: tracking.RecipientInfo{
			Name:          opts.name,
			Email:         opts.email,
			SourceAddress: opts.ip,
		},
	})
	if err != nil {
		return fmt.Errorf("issue document: %w", err)
	}
	printResult(cmd.OutOrStdout(), res)
	return iss.writeMetrics(opts.metricsFile)
}

func readContent(stdin io.Reader, path string) (string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read content: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(b), nil
}

package cli

import (
	"github.com/spf13/cobra"

	"pdftrack/internal/collector"
	"pdftrack/internal/platform/config"
)

func newCollectCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run the collector service",
		Long: `Run the collector: POST /track stores an event, GET /logs lists them,
GET /stats aggregates them and GET /health answers liveness probes.
The store backend is chosen with COLLECTOR_STORE (file, memory, redis, postgres).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.CollectorFromEnv()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return runCollector(cmd, root, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from COLLECTOR_ADDR)")
	return cmd
}

func runCollector(cmd *cobra.Command, root *rootOptions, cfg config.Collector) error {
	return collector.Run(cmd.Context(), cfg, nil, root.newLogger(cmd, cfg.Log))
}

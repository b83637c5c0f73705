package cli

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pdftrack/internal/collector"
	"pdftrack/internal/issuancelog"
	jwttoken "pdftrack/internal/jwt_token"
	"pdftrack/internal/notify"
	"pdftrack/internal/pipeline"
	"pdftrack/internal/platform/config"
	"pdftrack/internal/render"
	"pdftrack/pkg/platform/circuit"
)

// issuer bundles a pipeline with the registry its metrics live in.
type issuer struct {
	service  *pipeline.Service
	registry *prometheus.Registry
}

func newIssuer(cfg config.Tracker, logger *slog.Logger) *issuer {
	sinkOpts := []notify.Option{
		notify.WithTimeout(cfg.NotifyTimeout),
		notify.WithBreaker(circuit.New("collector",
			circuit.WithFailureThreshold(2),
			circuit.WithSuccessThreshold(1),
			circuit.WithCooldown(30*time.Second),
		)),
	}
	if cfg.SigningKey != "" {
		sinkOpts = append(sinkOpts, notify.WithTokenIssuer(jwttoken.NewJWTService(cfg.SigningKey, collector.TokenIssuer, collector.TokenAudience)))
	}

	reg := prometheus.NewRegistry()
	svc := pipeline.NewService(
		render.NewPDFRenderer(render.DefaultPageSize),
		render.NewQRGenerator(""),
		render.NewMetadataEmbedder(),
		issuancelog.New(cfg.LogPath),
		notify.New(logger, sinkOpts...),
		logger,
		pipeline.WithCollectorURL(cfg.CollectorURL),
		pipeline.WithProbeAddr(cfg.ProbeAddr),
		pipeline.WithOutputDir(cfg.OutputDir),
		pipeline.WithKeepIntermediate(cfg.KeepIntermediate),
		pipeline.WithMetrics(pipeline.NewMetrics(reg)),
	)
	return &issuer{service: svc, registry: reg}
}

// writeMetrics dumps the pipeline metrics in the Prometheus text format for a
// node exporter textfile collector. An empty path does nothing.
func (i *issuer) writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, i.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func printResult(w io.Writer, res *pipeline.Result) {
	fmt.Fprint(w, res.Summary)
	switch n := res.Notification; {
	case n == nil:
		fmt.Fprintln(w, "  collector:   not configured")
	case n.Delivered:
		fmt.Fprintf(w, "  collector:   notified (%d)\n", n.StatusCode)
	case n.StatusCode != 0:
		fmt.Fprintf(w, "  collector:   rejected (%d), continuing offline\n", n.StatusCode)
	default:
		fmt.Fprintln(w, "  collector:   unreachable, continuing offline")
	}
}

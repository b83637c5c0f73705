// Package pipeline issues tracked documents: it captures the recipient, derives
// the fingerprint, composes every payload from it, renders and stamps the PDF,
// records the issuance and finally tells the collector.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pdftrack/internal/notify"
	"pdftrack/internal/render"
	"pdftrack/internal/tracking"
	dErrors "pdftrack/pkg/domain-errors"
	"pdftrack/pkg/requestcontext"
)

var tracer = otel.Tracer("pdftrack/internal/pipeline")

// Request is one issuance. An empty OutputPath falls back to DefaultOutputPath.
type Request struct {
	OutputPath string
	Content    string
	Recipient  tracking.RecipientInfo
}

// Result describes a successful issuance. Notification is nil when no collector
// is configured.
type Result struct {
	FinalPath    string
	Payload      tracking.TrackingPayload
	Notification *notify.Result
	Summary      string
}

// Service runs issuances one at a time; it holds no per-issuance state.
type Service struct {
	renderer Renderer
	qr       QRGenerator
	embedder MetadataEmbedder
	log      IssuanceLog
	notifier Notifier
	composer *tracking.Composer
	logger   *slog.Logger
	metrics  *Metrics

	collectorURL     string
	probeAddr        string
	outputDir        string
	keepIntermediate bool
}

type Option func(*Service)

// WithCollectorURL sets the notification endpoint and the Server-URL metadata
// value. Empty disables notification.
func WithCollectorURL(url string) Option {
	return func(s *Service) {
		s.collectorURL = url
	}
}

// WithProbeAddr sets the address used to detect the outbound IPv4 address.
func WithProbeAddr(addr string) Option {
	return func(s *Service) {
		if addr != "" {
			s.probeAddr = addr
		}
	}
}

// WithOutputDir sets where default-named documents are written.
func WithOutputDir(dir string) Option {
	return func(s *Service) {
		s.outputDir = dir
	}
}

// WithKeepIntermediate keeps the pre-embedding PDF on disk.
func WithKeepIntermediate(keep bool) Option {
	return func(s *Service) {
		s.keepIntermediate = keep
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(
	renderer Renderer,
	qr QRGenerator,
	embedder MetadataEmbedder,
	log IssuanceLog,
	notifier Notifier,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		renderer:  renderer,
		qr:        qr,
		embedder:  embedder,
		log:       log,
		notifier:  notifier,
		logger:    logger,
		probeAddr: tracking.DefaultProbeAddr,
		outputDir: ".",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.composer = tracking.NewComposer(s.collectorURL)
	return s
}

// Issue produces one tracked document. Steps up to and including the log append
// are fatal; the notification is attempted once and its failure only logged.
func (s *Service) Issue(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline.Issue")
	defer func() {
		s.metrics.ObserveIssueLatency(time.Since(start))
		if err != nil {
			s.metrics.IncrementIssuance(OutcomeFailure)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			s.metrics.IncrementIssuance(OutcomeSuccess)
		}
		span.End()
	}()

	recipient := req.Recipient.WithDetectedAddress(s.probeAddr)
	now := requestcontext.Now(ctx)
	fp := tracking.Derive(recipient, now)

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = DefaultOutputPath(s.outputDir, recipient.Name, fp)
	}
	payload := s.composer.Compose(recipient, fp, now)
	span.SetAttributes(
		attribute.String("tracking.id", fp.String()),
		attribute.String("tracking.output", outputPath),
	)
	s.logger.DebugContext(ctx, "payload composed",
		"tracking_id", fp.String(),
		"email", recipient.Email,
		"ip", recipient.SourceAddress,
	)

	if err := s.renderDocument(ctx, req.Content, payload, outputPath); err != nil {
		return nil, err
	}

	finalPath, err := s.embed(ctx, outputPath, payload)
	if err != nil {
		return nil, err
	}

	if err := s.appendLog(ctx, payload, finalPath); err != nil {
		return nil, err
	}

	result = &Result{
		FinalPath: finalPath,
		Payload:   payload,
		Summary:   payload.Summary(finalPath),
	}
	result.Notification = s.notify(ctx, payload, finalPath)

	s.logger.InfoContext(ctx, "issuance completed",
		"tracking_id", fp.String(),
		"email", recipient.Email,
		"path", finalPath,
	)
	return result, nil
}

func (s *Service) renderDocument(ctx context.Context, content string, p tracking.TrackingPayload, outputPath string) error {
	ctx, span := tracer.Start(ctx, "pipeline.render")
	defer span.End()

	qrPath, cleanup, err := s.qr.Generate(ctx, p.QRPayloadJSON)
	if err != nil {
		return renderFailure(err, "generate qr image")
	}
	defer cleanup()

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return renderFailure(err, "create output directory")
		}
	}

	doc := render.Document{
		Title:       render.DefaultTitle,
		Lines:       contentLines(content),
		Stamp:       render.DefaultStamp,
		Footer:      p.FooterText(),
		QRImagePath: qrPath,
		QRCaption:   render.DefaultQRCaption,
		IDLine:      "ID: " + p.Fingerprint.String(),
	}
	if err := s.renderer.Render(ctx, doc, outputPath); err != nil {
		return renderFailure(err, "render document")
	}
	s.logger.DebugContext(ctx, "document rendered", "path", outputPath, "lines", len(doc.Lines))
	return nil
}

func (s *Service) embed(ctx context.Context, src string, p tracking.TrackingPayload) (string, error) {
	ctx, span := tracer.Start(ctx, "pipeline.embed")
	defer span.End()

	finalPath, err := s.embedder.Embed(ctx, src, p.MetadataFields)
	if err != nil {
		return "", renderFailure(err, "embed metadata")
	}
	if !s.keepIntermediate && finalPath != src {
		if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.WarnContext(ctx, "failed to remove intermediate document", "path", src, "error", err)
		}
	}
	s.logger.DebugContext(ctx, "metadata embedded", "path", finalPath)
	return finalPath, nil
}

func (s *Service) appendLog(ctx context.Context, p tracking.TrackingPayload, finalPath string) error {
	ctx, span := tracer.Start(ctx, "pipeline.log")
	defer span.End()

	if err := s.log.Append(ctx, tracking.NewIssuanceRecord(p, finalPath)); err != nil {
		if dErrors.HasCode(err, dErrors.CodeLogWriteFailed) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeLogWriteFailed, "append issuance record")
	}
	return nil
}

func (s *Service) notify(ctx context.Context, p tracking.TrackingPayload, finalPath string) *notify.Result {
	if s.collectorURL == "" || s.notifier == nil {
		s.metrics.IncrementNotification(OutcomeSkipped)
		return nil
	}
	ctx, span := tracer.Start(ctx, "pipeline.notify")
	defer span.End()

	res := s.notifier.Notify(ctx, tracking.NewNotificationEvent(p, finalPath), s.collectorURL)
	switch {
	case res.Delivered:
		s.metrics.IncrementNotification(OutcomeSuccess)
		s.logger.InfoContext(ctx, "notification delivered",
			"tracking_id", p.Fingerprint.String(),
			"status", res.StatusCode,
		)
	case res.StatusCode != 0:
		s.metrics.IncrementNotification(OutcomeRejected)
		s.logger.WarnContext(ctx, "notification rejected",
			"tracking_id", p.Fingerprint.String(),
			"status", res.StatusCode,
		)
	default:
		s.metrics.IncrementNotification(OutcomeFailure)
		span.RecordError(res.Err)
		s.logger.WarnContext(ctx, "notification failed",
			"tracking_id", p.Fingerprint.String(),
			"endpoint", s.collectorURL,
			"error", res.Err,
		)
	}
	return &res
}

func renderFailure(err error, msg string) error {
	if dErrors.HasCode(err, dErrors.CodeRenderFailed) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeRenderFailed, msg)
}

func contentLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DefaultOutputPath names a document after its recipient and fingerprint:
// tracked_doc_<name>_<fingerprint>.pdf under dir, with characters unsafe for
// file names replaced by underscores. Repeat issuances for one recipient, or
// for names that sanitize alike, land in distinct files.
func DefaultOutputPath(dir, name string, fp tracking.Fingerprint) string {
	safe := strings.Trim(unsafeNameChars.ReplaceAllString(name, "_"), "._")
	if safe == "" {
		safe = "recipient"
	}
	return filepath.Join(dir, fmt.Sprintf("tracked_doc_%s_%s.pdf", safe, fp))
}

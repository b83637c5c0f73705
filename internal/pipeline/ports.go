package pipeline

import (
	"context"

	"pdftrack/internal/notify"
	"pdftrack/internal/render"
	"pdftrack/internal/tracking"
)

// Renderer lays a document out into a PDF file.
type Renderer interface {
	Render(ctx context.Context, doc render.Document, outputPath string) error
}

// QRGenerator rasterizes a payload into a transient image. cleanup removes it.
type QRGenerator interface {
	Generate(ctx context.Context, content string) (path string, cleanup func(), err error)
}

// MetadataEmbedder writes a copy of src with fields merged into its metadata and
// returns the copy's path.
type MetadataEmbedder interface {
	Embed(ctx context.Context, src string, fields map[string]string) (string, error)
}

// IssuanceLog is the durable record of issuances.
type IssuanceLog interface {
	Append(ctx context.Context, rec tracking.IssuanceRecord) error
}

// Notifier reports an issuance to the collector. It never returns an error;
// failures are carried in the Result.
type Notifier interface {
	Notify(ctx context.Context, evt tracking.NotificationEvent, endpoint string) notify.Result
}

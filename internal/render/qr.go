package render

import (
	"context"
	"fmt"
	"os"

	qrcode "github.com/skip2/go-qrcode"

	dErrors "pdftrack/pkg/domain-errors"
)

// DefaultQRSize is the raster edge length in pixels.
const DefaultQRSize = 256

// QRGenerator rasterizes payloads into transient PNG files.
type QRGenerator struct {
	Dir   string
	Size  int
	Level qrcode.RecoveryLevel
}

// NewQRGenerator writes images under dir, or the system temp dir when empty.
func NewQRGenerator(dir string) *QRGenerator {
	return &QRGenerator{Dir: dir, Size: DefaultQRSize, Level: qrcode.Medium}
}

// Generate encodes content and writes it to a new temp file. The caller must
// invoke cleanup once the image has been drawn.
func (g *QRGenerator) Generate(ctx context.Context, content string) (path string, cleanup func(), err error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	png, err := qrcode.Encode(content, g.Level, g.Size)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeRenderFailed, "encode qr payload")
	}

	f, err := os.CreateTemp(g.Dir, "qr_*.png")
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeRenderFailed, "create qr image")
	}
	remove := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(png); err != nil {
		_ = f.Close()
		remove()
		return "", nil, dErrors.Wrap(err, dErrors.CodeRenderFailed, fmt.Sprintf("write qr image %s", f.Name()))
	}
	if err := f.Close(); err != nil {
		remove()
		return "", nil, dErrors.Wrap(err, dErrors.CodeRenderFailed, fmt.Sprintf("close qr image %s", f.Name()))
	}
	return f.Name(), remove, nil
}

// Package render holds the collaborators that turn a composed tracking payload
// into a PDF on disk: page layout, QR rasterization and metadata rewriting.
package render

import (
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"

	dErrors "pdftrack/pkg/domain-errors"
)

// Layout constants in points, measured from the top-left corner.
const (
	marginLeft     = 50.0
	titleTop       = 50.0
	contentTop     = 100.0
	continuedTop   = 50.0
	lineStep       = 20.0
	bottomMargin   = 50.0
	footerBaseline = 30.0
	qrTop          = 50.0
	qrSize         = 150.0
)

const (
	DefaultTitle     = "TRACKED DOCUMENT - CONFIDENTIAL"
	DefaultStamp     = "TRACKED DOCUMENT"
	DefaultQRCaption = "Scan QR to verify"
	DefaultPageSize  = "A4"
)

// Document is everything the renderer draws. It carries no tracking logic; all
// strings arrive already composed.
type Document struct {
	Title       string
	Lines       []string
	Stamp       string
	Footer      string
	QRImagePath string
	QRCaption   string
	IDLine      string
}

// PDFRenderer lays documents out with fpdf core fonts.
type PDFRenderer struct {
	pageSize string
}

func NewPDFRenderer(pageSize string) *PDFRenderer {
	if pageSize == "" {
		pageSize = DefaultPageSize
	}
	return &PDFRenderer{pageSize: pageSize}
}

// Render writes doc to outputPath. Content lines flow top to bottom and a new
// page starts whenever the next line would enter the bottom margin. The QR
// image, its caption and the ID line go on a final page of their own.
func (r *PDFRenderer) Render(ctx context.Context, doc Document, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pdf := fpdf.New("P", "pt", r.pageSize, "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("pdftrack", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	_, height := pdf.GetPageSize()

	newPage := func() {
		pdf.AddPage()
		drawStamp(pdf, tr(doc.Stamp))
		drawFooter(pdf, tr(doc.Footer), height)
		pdf.SetTextColor(0, 0, 0)
	}

	newPage()
	if doc.Title != "" {
		pdf.SetFont("Helvetica", "B", 16)
		pdf.Text(marginLeft, titleTop, tr(doc.Title))
	}

	pdf.SetFont("Helvetica", "", 12)
	y := contentTop
	for _, line := range doc.Lines {
		if y > height-bottomMargin {
			newPage()
			pdf.SetFont("Helvetica", "", 12)
			y = continuedTop
		}
		pdf.Text(marginLeft, y, tr(line))
		y += lineStep
	}

	newPage()
	if doc.QRImagePath != "" {
		pdf.ImageOptions(doc.QRImagePath, marginLeft, qrTop, qrSize, qrSize, false,
			fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(marginLeft, qrTop+qrSize+20, tr(doc.QRCaption))
	pdf.Text(marginLeft, qrTop+qrSize+40, tr(doc.IDLine))

	if err := pdf.OutputFileAndClose(outputPath); err != nil {
		return dErrors.Wrap(err, dErrors.CodeRenderFailed, fmt.Sprintf("render %s", outputPath))
	}
	return nil
}

func drawStamp(pdf *fpdf.Fpdf, stamp string) {
	if stamp == "" {
		return
	}
	width, height := pdf.GetPageSize()
	cx, cy := width/2, height/2

	pdf.SetFont("Helvetica", "", 40)
	pdf.SetTextColor(230, 230, 230)
	pdf.SetAlpha(0.5, "Normal")
	pdf.TransformBegin()
	pdf.TransformRotate(45, cx, cy)
	pdf.Text(cx-pdf.GetStringWidth(stamp)/2, cy, stamp)
	pdf.TransformEnd()
	pdf.SetAlpha(1, "Normal")
}

func drawFooter(pdf *fpdf.Fpdf, footer string, height float64) {
	if footer == "" {
		return
	}
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.Text(marginLeft, height-footerBaseline, footer)
}

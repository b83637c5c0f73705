package tracking

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Metadata keys written into the PDF document information dictionary.
const (
	MetaTrackingID   = "Tracking-ID"
	MetaUserEmail    = "User-Email"
	MetaUserIP       = "User-IP"
	MetaDownloadTime = "Download-Time"
	MetaServerURL    = "Server-URL"
)

const (
	// DisplayTimeLayout is used in the human-readable watermark.
	DisplayTimeLayout = "2006-01-02 15:04:05"
	// RecordTimeLayout is used in the QR payload and document metadata.
	RecordTimeLayout = "2006-01-02 15:04:05.000000"

	watermarkRule = "=========================================="
)

// QRPayload is the JSON object encoded in the QR image. Key names are consumed
// by scanners and must not change.
type QRPayload struct {
	User  string `json:"user"`
	IP    string `json:"ip"`
	Time  string `json:"time"`
	DocID string `json:"doc_id"`
}

// Composer builds tracking payloads. ServerURL is recorded in the metadata so a
// holder of the document can find the collector.
type Composer struct {
	ServerURL string
}

// NewComposer returns a Composer advertising serverURL.
func NewComposer(serverURL string) *Composer {
	return &Composer{ServerURL: serverURL}
}

// Compose threads fp through the watermark, the QR payload and the metadata
// fields. It performs no I/O.
func (c *Composer) Compose(r RecipientInfo, fp Fingerprint, now time.Time) TrackingPayload {
	recordTime := now.Format(RecordTimeLayout)

	// A struct of strings always marshals.
	qr, _ := json.Marshal(QRPayload{
		User:  r.Email,
		IP:    r.SourceAddress,
		Time:  recordTime,
		DocID: fp.String(),
	})

	return TrackingPayload{
		Fingerprint:   fp,
		Recipient:     r,
		IssuedAt:      now,
		WatermarkText: watermark(r, fp, now),
		QRPayloadJSON: string(qr),
		MetadataFields: map[string]string{
			MetaTrackingID:   fp.String(),
			MetaUserEmail:    r.Email,
			MetaUserIP:       r.SourceAddress,
			MetaDownloadTime: recordTime,
			MetaServerURL:    c.ServerURL,
		},
	}
}

func watermark(r RecipientInfo, fp Fingerprint, now time.Time) string {
	lines := []string{
		watermarkRule,
		"DOCUMENT FOR: " + r.Name,
		"EMAIL: " + r.Email,
		"IP: " + r.SourceAddress,
		"TIME: " + now.Format(DisplayTimeLayout),
		"ID: " + fp.String(),
		watermarkRule,
	}
	return strings.Join(lines, "\n")
}

// WatermarkLines splits the watermark block into drawable lines.
func (p TrackingPayload) WatermarkLines() []string {
	return strings.Split(p.WatermarkText, "\n")
}

// FooterText condenses the watermark block into one line for page footers.
func (p TrackingPayload) FooterText() string {
	var parts []string
	for _, line := range p.WatermarkLines() {
		if line != watermarkRule {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " | ")
}

// DecodeQRPayload parses a scanned QR payload.
func DecodeQRPayload(raw string) (QRPayload, error) {
	var q QRPayload
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return QRPayload{}, fmt.Errorf("decode qr payload: %w", err)
	}
	return q, nil
}

// Summary is the confirmation shown to the operator after an issuance.
func (p TrackingPayload) Summary(finalPath string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tracked PDF created\n")
	fmt.Fprintf(&b, "  file:        %s\n", finalPath)
	fmt.Fprintf(&b, "  recipient:   %s <%s>\n", p.Recipient.Name, p.Recipient.Email)
	fmt.Fprintf(&b, "  address:     %s\n", p.Recipient.SourceAddress)
	fmt.Fprintf(&b, "  tracking id: %s\n", p.Fingerprint)
	return b.String()
}

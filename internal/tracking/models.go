// Package tracking holds the identity model of a tracked document: who it was
// issued to, the fingerprint correlating every artifact of one issuance, and the
// records written about it.
package tracking

import (
	"regexp"
	"time"
)

// EventPDFGenerated is the event type reported to the collector after an issuance.
const EventPDFGenerated = "pdf_generated"

// RecipientInfo identifies who a document is issued to. Fields are not validated;
// empty values degrade the fingerprint but never fail an issuance.
type RecipientInfo struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	SourceAddress string `json:"ip"`
}

// Fingerprint is the short identifier shared by the watermark, QR payload,
// metadata and log record of one issuance. It is collision-tolerant, not a
// security token.
type Fingerprint string

var fingerprintPattern = regexp.MustCompile(`^[0-9a-f]{16}$`)

// Valid reports whether f has the canonical 16 lowercase hex digit form.
func (f Fingerprint) Valid() bool {
	return fingerprintPattern.MatchString(string(f))
}

func (f Fingerprint) String() string {
	return string(f)
}

// TrackingPayload bundles the redundant encodings of one fingerprint. Every
// field is derived from Fingerprint; none is computed independently.
type TrackingPayload struct {
	Fingerprint    Fingerprint
	Recipient      RecipientInfo
	IssuedAt       time.Time
	WatermarkText  string
	QRPayloadJSON  string
	MetadataFields map[string]string
}

// IssuanceRecord is one line of the local issuance log.
type IssuanceRecord struct {
	Timestamp      time.Time     `json:"time"`
	Recipient      RecipientInfo `json:"user"`
	OutputFilePath string        `json:"pdf"`
	Fingerprint    Fingerprint   `json:"tracking_id"`
}

// NotificationEvent is reported to the collector. It carries the fingerprint so
// the remote side can correlate with the local log without relying on time.
type NotificationEvent struct {
	EventType      string        `json:"event"`
	Recipient      RecipientInfo `json:"user"`
	OutputFilePath string        `json:"pdf"`
	Timestamp      time.Time     `json:"time"`
	Fingerprint    Fingerprint   `json:"tracking_id,omitempty"`
}

// NewIssuanceRecord builds the log record for a composed payload.
func NewIssuanceRecord(p TrackingPayload, outputPath string) IssuanceRecord {
	return IssuanceRecord{
		Timestamp:      p.IssuedAt,
		Recipient:      p.Recipient,
		OutputFilePath: outputPath,
		Fingerprint:    p.Fingerprint,
	}
}

// NewNotificationEvent builds the collector event for a composed payload.
func NewNotificationEvent(p TrackingPayload, outputPath string) NotificationEvent {
	return NotificationEvent{
		EventType:      EventPDFGenerated,
		Recipient:      p.Recipient,
		OutputFilePath: outputPath,
		Timestamp:      p.IssuedAt,
		Fingerprint:    p.Fingerprint,
	}
}

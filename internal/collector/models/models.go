// Package models holds the collector's wire and storage types.
package models

import (
	"strings"

	"pdftrack/internal/tracking"
	dErrors "pdftrack/pkg/domain-errors"
)

// TrackRequest is the body of POST /track. Time is kept verbatim: clients send
// RFC 3339 or older free-form timestamps and the collector never interprets it.
type TrackRequest struct {
	Event      string                 `json:"event"`
	User       tracking.RecipientInfo `json:"user"`
	PDF        string                 `json:"pdf"`
	Time       string                 `json:"time"`
	TrackingID string                 `json:"tracking_id,omitempty"`
}

// Validate rejects a tracking_id that is present but not a fingerprint. An
// absent id is accepted; older trackers never sent one.
func (r *TrackRequest) Validate() error {
	if id := strings.TrimSpace(r.TrackingID); id != "" && !tracking.Fingerprint(id).Valid() {
		return dErrors.New(dErrors.CodeValidation, "tracking_id must be 16 lowercase hex digits")
	}
	return nil
}

// Normalize trims whitespace and defaults the event type.
func (r *TrackRequest) Normalize() {
	r.Event = strings.TrimSpace(r.Event)
	if r.Event == "" {
		r.Event = tracking.EventPDFGenerated
	}
	r.User.Email = strings.TrimSpace(r.User.Email)
	r.TrackingID = strings.TrimSpace(r.TrackingID)
}

// Event is one stored notification. Records are append-only and never updated.
type Event struct {
	ID         string                 `json:"id,omitempty"`
	Event      string                 `json:"event"`
	User       tracking.RecipientInfo `json:"user"`
	PDF        string                 `json:"pdf"`
	Time       string                 `json:"time"`
	TrackingID string                 `json:"tracking_id,omitempty"`
	ServerTime string                 `json:"server_time"`
	RemoteAddr string                 `json:"remote_addr,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	Browser    string                 `json:"browser,omitempty"`
	OS         string                 `json:"os,omitempty"`
}

// TrackResponse acknowledges a stored event.
type TrackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Stats is recomputed from the full event log on every request.
type Stats struct {
	TotalAccess int      `json:"total_access"`
	UniqueUsers int      `json:"unique_users"`
	Users       []string `json:"users"`
	LastAccess  *string  `json:"last_access"`
}

// Health is the liveness response.
type Health struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

package models

import (
	"encoding/json"
	"io"
	"time"
)

// ContentKind represents valid content kinds
type ContentKind string

const (
	ContentKindAnnouncement ContentKind = "announcement"
	ContentKindMaterial     ContentKind = "material"
	ContentKindPdf          ContentKind = "pdf"
)

// ContentKinds lists every content kind in a stable order
var ContentKinds = []ContentKind{ContentKindAnnouncement, ContentKindMaterial, ContentKindPdf}

// IsValid reports whether the kind is one of the known content kinds
func (k ContentKind) IsValid() bool {
	switch k {
	case ContentKindAnnouncement, ContentKindMaterial, ContentKindPdf:
		return true
	default:
		return false
	}
}

// ContentRecord represents one submitted item
type ContentRecord struct {
	ID          int64        `json:"id"`
	Kind        ContentKind  `json:"kind"`
	Title       string       `json:"title"`
	Body        string       `json:"body"`
	Link        string       `json:"link,omitempty"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
	ScheduledAt *time.Time   `json:"scheduledAt,omitempty"`
	Status      Status       `json:"status"`
}

// Attachment represents one stored file associated with a ContentRecord
type Attachment struct {
	OriginalName string `json:"originalName"`
	StoredName   string `json:"storedName"`
	ContentType  string `json:"contentType,omitempty"`
	SizeBytes    int64  `json:"sizeBytes"`
	PublicPath   string `json:"publicPath"`
}

// Normalize restores the record invariants after it was read from a backing store:
// attachments are never nil and status always follows scheduledAt.
func (r *ContentRecord) Normalize() {
	if r.Attachments == nil {
		r.Attachments = []Attachment{}
	}
	r.Status = Classify(r.ScheduledAt)
}

// MarshalJSON encodes the record with a derived status and a non-null attachments array
func (r ContentRecord) MarshalJSON() ([]byte, error) {
	type plain ContentRecord
	out := plain(r)
	if out.Attachments == nil {
		out.Attachments = []Attachment{}
	}
	out.Status = Classify(out.ScheduledAt)
	return json.Marshal(out)
}

// Submission represents an inbound submission before validation
type Submission struct {
	Title       string
	Body        string
	Link        string
	ScheduledAt string
	Files       []Upload
}

// Upload represents one client-supplied file of a submission
type Upload struct {
	// Name is the client-supplied file name and is untrusted
	Name string
	// ContentType is the media type declared by the client
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Response is the envelope returned by every submission endpoint
type Response struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	ID      *int64 `json:"id,omitempty"`
}

package models

import "time"

// Status represents the publication state of a ContentRecord
type Status string

const (
	StatusScheduled Status = "Agendado"
	StatusImmediate Status = "Publicado Imediatamente"
)

// Classify derives the publication status from an optional scheduled timestamp.
//
// Nothing ever moves a scheduled record to a published state; the classification is informative only.
func Classify(scheduledAt *time.Time) Status {
	if scheduledAt != nil && !scheduledAt.IsZero() {
		return StatusScheduled
	}
	return StatusImmediate
}

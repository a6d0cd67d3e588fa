package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

var (
	// submissionsTotal counts submissions per content kind and outcome
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_submissions_total",
			Help: "Total number of content submissions by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// attachmentBytesTotal counts bytes of stored attachments per content kind
	attachmentBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_attachment_bytes_total",
			Help: "Total number of attachment bytes written by content kind",
		},
		[]string{"kind"},
	)
)

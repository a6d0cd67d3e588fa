package services

import (
	"mime"
	"strings"

	"github.com/intranetportal/backend/internal/models"
)

// KindPolicy configures the ingestion pipeline for one content kind
type KindPolicy struct {
	Kind models.ContentKind
	// Dir is the storage directory of the kind's attachments, relative to the public directory
	Dir string
	// RequireBody rejects submissions with an empty body
	RequireBody bool
	// MinFiles and MaxFiles bound the number of attachments; MaxFiles < 0 means unbounded
	MinFiles int
	MaxFiles int
	// LinkReplacesFiles lets a non-empty link stand in for the minimum of files
	LinkReplacesFiles bool
	// AcceptMediaType reports whether a declared media type is allowed; nil allows any type
	AcceptMediaType func(mediaType string) bool

	MissingFieldsMessage  string
	MissingContentMessage string
	TooManyFilesMessage   string
	InvalidMediaMessage   string
}

const invalidScheduleMessage = "Data de agendamento inválida."

// policies holds the per-kind configuration of the ingestion pipeline
var policies = map[models.ContentKind]KindPolicy{
	models.ContentKindAnnouncement: {
		Kind:                 models.ContentKindAnnouncement,
		Dir:                  "avisos",
		RequireBody:          true,
		MinFiles:             0,
		MaxFiles:             1,
		AcceptMediaType:      isImage,
		MissingFieldsMessage: "Título e texto do aviso são obrigatórios.",
		TooManyFilesMessage:  "Apenas uma imagem pode ser enviada por aviso.",
		InvalidMediaMessage:  "O arquivo enviado não é uma imagem válida.",
	},
	models.ContentKindMaterial: {
		Kind:                  models.ContentKindMaterial,
		Dir:                   "materials",
		MinFiles:              1,
		MaxFiles:              -1,
		LinkReplacesFiles:     true,
		MissingFieldsMessage:  "Título da matéria é obrigatório.",
		MissingContentMessage: "Nenhum arquivo ou link de matéria foi enviado.",
	},
	models.ContentKindPdf: {
		Kind:                  models.ContentKindPdf,
		Dir:                   "pdfs",
		MinFiles:              1,
		MaxFiles:              1,
		AcceptMediaType:       isPDF,
		MissingFieldsMessage:  "Título e arquivo PDF são obrigatórios.",
		MissingContentMessage: "Título e arquivo PDF são obrigatórios.",
		TooManyFilesMessage:   "Apenas um arquivo PDF pode ser enviado.",
		InvalidMediaMessage:   "O arquivo enviado não é um PDF válido.",
	},
}

// PolicyFor returns the pipeline configuration of a content kind
func PolicyFor(kind models.ContentKind) (KindPolicy, bool) {
	policy, ok := policies[kind]
	return policy, ok
}

// mediaType returns the lower-cased media type of a declared Content-Type without parameters
func mediaType(declared string) string {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return mt
}

func isImage(mt string) bool {
	return strings.HasPrefix(mt, "image/")
}

func isPDF(mt string) bool {
	return mt == "application/pdf"
}

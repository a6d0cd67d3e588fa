package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/intranetportal/backend/internal/models"
	"github.com/intranetportal/backend/internal/services"
	"go.uber.org/zap"
)

// IngestionService is the interface that wraps methods for content ingestion
type IngestionService interface {
	// Method Submit validates a submission, stores its attachments and appends the resulting record.
	//
	// "kind" parameter selects the content kind and its validation rules.
	// A *services.ValidationError is returned when the submission is rejected before any side effect.
	// Any other error means the submission failed while storing files or persisting the record.
	Submit(ctx context.Context, kind models.ContentKind, submission *models.Submission) (*models.ContentRecord, error)
	// Method List retrieve every record of a content kind in submission order.
	//
	// If some error will occur during data retrieve, the error will be returned together with "nil" value.
	List(ctx context.Context, kind models.ContentKind) ([]models.ContentRecord, error)
}

// formSpec describes the multipart form of one submission endpoint
type formSpec struct {
	kind           models.ContentKind
	titleField     string
	bodyField      string
	linkField      string
	fileField      string
	successMessage string
	failureMessage string
}

const (
	scheduleField        = "agendamento"
	invalidFormMessage   = "Não foi possível processar o formulário enviado."
	requestTooBigMessage = "O envio excede o tamanho máximo permitido."
	listFailureMessage   = "Erro interno do servidor ao listar os conteúdos."
)

var (
	announcementForm = formSpec{
		kind:           models.ContentKindAnnouncement,
		titleField:     "titulo",
		bodyField:      "texto",
		fileField:      "imagem",
		successMessage: "Aviso enviado e cadastrado com sucesso!",
		failureMessage: "Erro interno do servidor.",
	}
	materialForm = formSpec{
		kind:           models.ContentKindMaterial,
		titleField:     "titulo",
		bodyField:      "descricao",
		linkField:      "link",
		fileField:      "files",
		successMessage: "Matérias enviadas, salvas localmente e agendadas com sucesso!",
		failureMessage: "Erro interno do servidor ao processar o upload de múltiplas matérias.",
	}
	pdfForm = formSpec{
		kind:           models.ContentKindPdf,
		titleField:     "title",
		bodyField:      "description",
		fileField:      "file",
		successMessage: "PDF enviado, salvo localmente e agendado com sucesso!",
		failureMessage: "Erro interno do servidor ao processar o PDF.",
	}
)

// ContentHandler handles content submission HTTP requests
type ContentHandler struct {
	BaseHandler
	service   IngestionService
	maxMemory int64
}

// NewContentHandler creates a new content handler
//
// "maxMemory" is the number of bytes of a multipart body kept in memory; larger files spill to temporary files.
func NewContentHandler(svc IngestionService, logger *zap.Logger, maxMemory int64) *ContentHandler {
	return &ContentHandler{
		BaseHandler: BaseHandler{Logger: logger},
		service:     svc,
		maxMemory:   maxMemory,
	}
}

// RegisterRoutes registers all content handler routes
// Note: This assumes the router is already scoped to /api
func (h *ContentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/avisos", h.SubmitAnnouncement)
	r.Get("/avisos", h.ListAnnouncements)
	r.Post("/upload-material", h.SubmitMaterial)
	r.Get("/upload-material", h.ListMaterials)
	r.Post("/upload-pdf", h.SubmitPdf)
	r.Get("/upload-pdf", h.ListPdfs)
}

// SubmitAnnouncement handles POST /api/avisos
// @Summary Submit an announcement
// @Description Create an announcement with an optional image and an optional scheduled publication date
// @Tags content
// @Accept multipart/form-data
// @Produce json
// @Param titulo formData string true "Title"
// @Param texto formData string true "Announcement text"
// @Param agendamento formData string false "Scheduled publication (2006-01-02T15:04)"
// @Param imagem formData file false "Image"
// @Success 200 {object} models.Response{data=models.ContentRecord}
// @Failure 400 {object} models.Response "Validation failure"
// @Failure 500 {object} models.Response "Internal server error"
// @Router /avisos [post]
func (h *ContentHandler) SubmitAnnouncement(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, announcementForm)
}

// SubmitMaterial handles POST /api/upload-material
// @Summary Submit a material bundle
// @Description Create a material with one or more files and/or an external link
// @Tags content
// @Accept multipart/form-data
// @Produce json
// @Param titulo formData string true "Title"
// @Param descricao formData string false "Description"
// @Param link formData string false "External link, required when no file is sent"
// @Param agendamento formData string false "Scheduled publication (2006-01-02T15:04)"
// @Param files formData file false "Files"
// @Success 200 {object} models.Response{data=models.ContentRecord}
// @Failure 400 {object} models.Response "Validation failure"
// @Failure 500 {object} models.Response "Internal server error"
// @Router /upload-material [post]
func (h *ContentHandler) SubmitMaterial(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, materialForm)
}

// SubmitPdf handles POST /api/upload-pdf
// @Summary Submit a PDF
// @Description Create a PDF record. The file must be declared as application/pdf.
// @Tags content
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param agendamento formData string false "Scheduled publication (2006-01-02T15:04)"
// @Param file formData file true "PDF file"
// @Success 200 {object} models.Response{data=models.ContentRecord}
// @Failure 400 {object} models.Response "Validation failure"
// @Failure 500 {object} models.Response "Internal server error"
// @Router /upload-pdf [post]
func (h *ContentHandler) SubmitPdf(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, pdfForm)
}

// ListAnnouncements handles GET /api/avisos
// @Summary List announcements
// @Tags content
// @Produce json
// @Success 200 {object} models.Response{data=[]models.ContentRecord}
// @Failure 500 {object} models.Response "Internal server error"
// @Router /avisos [get]
func (h *ContentHandler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.ContentKindAnnouncement)
}

// ListMaterials handles GET /api/upload-material
// @Summary List materials
// @Tags content
// @Produce json
// @Success 200 {object} models.Response{data=[]models.ContentRecord}
// @Failure 500 {object} models.Response "Internal server error"
// @Router /upload-material [get]
func (h *ContentHandler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.ContentKindMaterial)
}

// ListPdfs handles GET /api/upload-pdf
// @Summary List PDFs
// @Tags content
// @Produce json
// @Success 200 {object} models.Response{data=[]models.ContentRecord}
// @Failure 500 {object} models.Response "Internal server error"
// @Router /upload-pdf [get]
func (h *ContentHandler) ListPdfs(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.ContentKindPdf)
}

// submit parses the multipart form of spec and runs it through the ingestion service
func (h *ContentHandler) submit(w http.ResponseWriter, r *http.Request, spec formSpec) {
	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.Logger.Info("multipart form too large", zap.Int64("limit", maxBytesErr.Limit))
			h.RespondError(w, http.StatusRequestEntityTooLarge, requestTooBigMessage)
			return
		}
		h.Logger.Info("failed to parse multipart form", zap.String("kind", string(spec.kind)), zap.Error(err))
		h.RespondError(w, http.StatusBadRequest, invalidFormMessage)
		return
	}
	defer r.MultipartForm.RemoveAll()

	submission := &models.Submission{
		Title:       r.FormValue(spec.titleField),
		Body:        r.FormValue(spec.bodyField),
		ScheduledAt: r.FormValue(scheduleField),
		Files:       uploadsFromForm(r.MultipartForm, spec.fileField),
	}
	if spec.linkField != "" {
		submission.Link = r.FormValue(spec.linkField)
	}

	record, err := h.service.Submit(r.Context(), spec.kind, submission)
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			h.RespondError(w, http.StatusBadRequest, validationErr.Message)
			return
		}
		h.Logger.Error("failed to submit content", zap.String("kind", string(spec.kind)), zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, spec.failureMessage)
		return
	}

	h.RespondJSON(w, http.StatusOK, models.Response{
		OK:      true,
		Message: spec.successMessage,
		Data:    record,
		ID:      &record.ID,
	})
}

// list responds with every record of a content kind
func (h *ContentHandler) list(w http.ResponseWriter, r *http.Request, kind models.ContentKind) {
	records, err := h.service.List(r.Context(), kind)
	if err != nil {
		h.Logger.Error("failed to list content", zap.String("kind", string(kind)), zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, listFailureMessage)
		return
	}
	if records == nil {
		records = []models.ContentRecord{}
	}

	h.RespondJSON(w, http.StatusOK, models.Response{OK: true, Data: records})
}

// uploadsFromForm converts the file parts of field into uploads.
// Empty parts, sent by browsers for a file input left blank, are skipped.
func uploadsFromForm(form *multipart.Form, field string) []models.Upload {
	if form == nil {
		return nil
	}

	headers := form.File[field]
	uploads := make([]models.Upload, 0, len(headers))
	for _, header := range headers {
		if header.Filename == "" && header.Size == 0 {
			continue
		}
		fh := header
		uploads = append(uploads, models.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return uploads
}

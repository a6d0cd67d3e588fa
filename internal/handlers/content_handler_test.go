package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/intranetportal/backend/internal/models"
	"github.com/intranetportal/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockIngestionService is a mock implementation of IngestionService
type mockIngestionService struct {
	kind       models.ContentKind
	submission *models.Submission
	contents   map[string]string
	record     *models.ContentRecord
	records    []models.ContentRecord
	err        error
}

func (m *mockIngestionService) Submit(ctx context.Context, kind models.ContentKind, submission *models.Submission) (*models.ContentRecord, error) {
	m.kind = kind
	m.submission = submission
	m.contents = make(map[string]string)
	for _, file := range submission.Files {
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		m.contents[file.Name] = string(data)
	}
	if m.err != nil {
		return nil, m.err
	}
	record := *m.record
	record.Kind = kind
	return &record, nil
}

func (m *mockIngestionService) List(ctx context.Context, kind models.ContentKind) ([]models.ContentRecord, error) {
	m.kind = kind
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

type formFile struct {
	field       string
	name        string
	contentType string
	content     string
}

// multipartBody builds a multipart/form-data body from text fields and files
func multipartBody(t *testing.T, fields map[string]string, files []formFile) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.field, f.name))
		if f.contentType != "" {
			header.Set("Content-Type", f.contentType)
		}
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func setupContentRouter(svc IngestionService) chi.Router {
	handler := NewContentHandler(svc, zap.NewNop(), 1<<20)
	r := chi.NewRouter()
	r.Route("/api", handler.RegisterRoutes)
	return r
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestContentHandler_Submit(t *testing.T) {
	tests := []struct {
		name            string
		path            string
		fields          map[string]string
		files           []formFile
		serviceErr      error
		expectedStatus  int
		expectedKind    models.ContentKind
		expectedMessage string
		validate        func(t *testing.T, svc *mockIngestionService, resp map[string]any)
	}{
		{
			name:            "announcement with image",
			path:            "/api/avisos",
			fields:          map[string]string{"titulo": "Reunião", "texto": "Sala 3", "agendamento": "2030-01-15T10:00"},
			files:           []formFile{{field: "imagem", name: "foto.png", contentType: "image/png", content: "png-bytes"}},
			expectedStatus:  http.StatusOK,
			expectedKind:    models.ContentKindAnnouncement,
			expectedMessage: announcementForm.successMessage,
			validate: func(t *testing.T, svc *mockIngestionService, resp map[string]any) {
				assert.Equal(t, "Reunião", svc.submission.Title)
				assert.Equal(t, "Sala 3", svc.submission.Body)
				assert.Equal(t, "2030-01-15T10:00", svc.submission.ScheduledAt)
				assert.Empty(t, svc.submission.Link)
				require.Len(t, svc.submission.Files, 1)
				assert.Equal(t, "image/png", svc.submission.Files[0].ContentType)
				assert.Equal(t, int64(len("png-bytes")), svc.submission.Files[0].Size)
				assert.Equal(t, "png-bytes", svc.contents["foto.png"])
				assert.Equal(t, float64(42), resp["id"])
				data := resp["data"].(map[string]any)
				assert.Equal(t, float64(42), data["id"])
				assert.Equal(t, "announcement", data["kind"])
			},
		},
		{
			name:            "material with several files and link",
			path:            "/api/upload-material",
			fields:          map[string]string{"titulo": "Apostila", "descricao": "Módulo 1", "link": "https://example.org"},
			files:           []formFile{{field: "files", name: "a.docx", content: "a"}, {field: "files", name: "b.xlsx", content: "bb"}},
			expectedStatus:  http.StatusOK,
			expectedKind:    models.ContentKindMaterial,
			expectedMessage: materialForm.successMessage,
			validate: func(t *testing.T, svc *mockIngestionService, resp map[string]any) {
				assert.Equal(t, "Módulo 1", svc.submission.Body)
				assert.Equal(t, "https://example.org", svc.submission.Link)
				require.Len(t, svc.submission.Files, 2)
				assert.Equal(t, "bb", svc.contents["b.xlsx"])
			},
		},
		{
			name:            "pdf uses english field names",
			path:            "/api/upload-pdf",
			fields:          map[string]string{"title": "Relatório", "description": "Anual", "link": "ignored"},
			files:           []formFile{{field: "file", name: "r.pdf", contentType: "application/pdf", content: "%PDF"}},
			expectedStatus:  http.StatusOK,
			expectedKind:    models.ContentKindPdf,
			expectedMessage: pdfForm.successMessage,
			validate: func(t *testing.T, svc *mockIngestionService, resp map[string]any) {
				assert.Equal(t, "Relatório", svc.submission.Title)
				assert.Equal(t, "Anual", svc.submission.Body)
				assert.Empty(t, svc.submission.Link)
				require.Len(t, svc.submission.Files, 1)
				assert.Equal(t, "application/pdf", svc.submission.Files[0].ContentType)
			},
		},
		{
			name:            "empty file part is skipped",
			path:            "/api/avisos",
			fields:          map[string]string{"titulo": "A", "texto": "B"},
			files:           []formFile{{field: "imagem", name: "", content: ""}},
			expectedStatus:  http.StatusOK,
			expectedKind:    models.ContentKindAnnouncement,
			expectedMessage: announcementForm.successMessage,
			validate: func(t *testing.T, svc *mockIngestionService, resp map[string]any) {
				assert.Empty(t, svc.submission.Files)
			},
		},
		{
			name:            "files under another field are ignored",
			path:            "/api/upload-pdf",
			fields:          map[string]string{"title": "T"},
			files:           []formFile{{field: "imagem", name: "x.pdf", contentType: "application/pdf", content: "x"}},
			expectedStatus:  http.StatusOK,
			expectedKind:    models.ContentKindPdf,
			expectedMessage: pdfForm.successMessage,
			validate: func(t *testing.T, svc *mockIngestionService, resp map[string]any) {
				assert.Empty(t, svc.submission.Files)
			},
		},
		{
			name:            "validation error",
			path:            "/api/avisos",
			fields:          map[string]string{"titulo": "A"},
			serviceErr:      &services.ValidationError{Message: "Título e texto do aviso são obrigatórios."},
			expectedStatus:  http.StatusBadRequest,
			expectedKind:    models.ContentKindAnnouncement,
			expectedMessage: "Título e texto do aviso são obrigatórios.",
			validate: func(t *testing.T, svc *mockIngestionService, resp map[string]any) {
				assert.NotContains(t, resp, "data")
				assert.NotContains(t, resp, "id")
			},
		},
		{
			name:            "wrapped validation error",
			path:            "/api/upload-pdf",
			fields:          map[string]string{"title": "A"},
			serviceErr:      fmt.Errorf("submit: %w", &services.ValidationError{Message: "O arquivo enviado não é um PDF válido."}),
			expectedStatus:  http.StatusBadRequest,
			expectedKind:    models.ContentKindPdf,
			expectedMessage: "O arquivo enviado não é um PDF válido.",
		},
		{
			name:            "storage error",
			path:            "/api/upload-material",
			fields:          map[string]string{"titulo": "A"},
			files:           []formFile{{field: "files", name: "a.txt", content: "a"}},
			serviceErr:      &services.StorageError{Err: errors.New("disk full")},
			expectedStatus:  http.StatusInternalServerError,
			expectedKind:    models.ContentKindMaterial,
			expectedMessage: materialForm.failureMessage,
			validate: func(t *testing.T, svc *mockIngestionService, resp map[string]any) {
				assert.NotContains(t, resp["message"], "disk full")
			},
		},
		{
			name:            "persistence error",
			path:            "/api/upload-pdf",
			fields:          map[string]string{"title": "A"},
			serviceErr:      &services.PersistenceError{Err: errors.New("db down")},
			expectedStatus:  http.StatusInternalServerError,
			expectedKind:    models.ContentKindPdf,
			expectedMessage: pdfForm.failureMessage,
		},
		{
			name:            "unexpected error",
			path:            "/api/avisos",
			fields:          map[string]string{"titulo": "A", "texto": "B"},
			serviceErr:      errors.New("unexpected"),
			expectedStatus:  http.StatusInternalServerError,
			expectedKind:    models.ContentKindAnnouncement,
			expectedMessage: announcementForm.failureMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockIngestionService{
				record: &models.ContentRecord{ID: 42, Title: "stored", Attachments: []models.Attachment{}},
				err:    tt.serviceErr,
			}
			router := setupContentRouter(svc)

			body, contentType := multipartBody(t, tt.fields, tt.files)
			req := httptest.NewRequest(http.MethodPost, tt.path, body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.expectedKind, svc.kind)
			resp := decodeResponse(t, w)
			assert.Equal(t, tt.expectedStatus == http.StatusOK, resp["ok"])
			assert.Equal(t, tt.expectedMessage, resp["message"])
			if tt.validate != nil {
				tt.validate(t, svc, resp)
			}
		})
	}
}

func TestContentHandler_Submit_InvalidForm(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{name: "urlencoded body", contentType: "application/x-www-form-urlencoded", body: "titulo=a&texto=b"},
		{name: "json body", contentType: "application/json", body: `{"titulo":"a"}`},
		{name: "truncated multipart", contentType: "multipart/form-data; boundary=xyz", body: "--xyz\r\nContent-Disposition: form-data; name=\"titulo\"\r\n\r\nabc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockIngestionService{}
			router := setupContentRouter(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/avisos", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, false, resp["ok"])
			assert.Equal(t, invalidFormMessage, resp["message"])
			assert.Nil(t, svc.submission)
		})
	}
}

func TestContentHandler_Submit_BodyTooLarge(t *testing.T) {
	svc := &mockIngestionService{}
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, 64)
			next.ServeHTTP(w, r)
		})
	})
	router.Route("/api", NewContentHandler(svc, zap.NewNop(), 1<<20).RegisterRoutes)

	body, contentType := multipartBody(t, map[string]string{"titulo": "A"}, []formFile{
		{field: "files", name: "big.bin", content: strings.Repeat("x", 4096)},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/upload-material", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, requestTooBigMessage, decodeResponse(t, w)["message"])
	assert.Nil(t, svc.submission)
}

func TestContentHandler_List(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		records        []models.ContentRecord
		serviceErr     error
		expectedKind   models.ContentKind
		expectedStatus int
		expectedCount  int
	}{
		{
			name:           "announcements",
			path:           "/api/avisos",
			records:        []models.ContentRecord{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}},
			expectedKind:   models.ContentKindAnnouncement,
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:           "materials empty",
			path:           "/api/upload-material",
			records:        []models.ContentRecord{},
			expectedKind:   models.ContentKindMaterial,
			expectedStatus: http.StatusOK,
			expectedCount:  0,
		},
		{
			name:           "nil collection is an empty array",
			path:           "/api/upload-pdf",
			expectedKind:   models.ContentKindPdf,
			expectedStatus: http.StatusOK,
			expectedCount:  0,
		},
		{
			name:           "pdfs",
			path:           "/api/upload-pdf",
			records:        []models.ContentRecord{{ID: 9, Title: "P"}},
			expectedKind:   models.ContentKindPdf,
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name:           "service error",
			path:           "/api/avisos",
			serviceErr:     errors.New("read failed"),
			expectedKind:   models.ContentKindAnnouncement,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockIngestionService{records: tt.records, err: tt.serviceErr}
			router := setupContentRouter(svc)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedKind, svc.kind)
			resp := decodeResponse(t, w)
			if tt.expectedStatus != http.StatusOK {
				assert.Equal(t, false, resp["ok"])
				assert.Equal(t, listFailureMessage, resp["message"])
				return
			}
			assert.Equal(t, true, resp["ok"])
			data, ok := resp["data"].([]any)
			require.True(t, ok)
			assert.Len(t, data, tt.expectedCount)
		})
	}
}

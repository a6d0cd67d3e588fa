package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/intranetportal/backend/internal/models"
	"github.com/intranetportal/backend/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Storage defines the interface for attachment storage operations
type Storage interface {
	// EnsureDir makes sure a storage directory exists. Calling it twice is not an error.
	EnsureDir(dir string) error
	// Save writes the payload under dir/name and returns the number of bytes written
	Save(dir, name string, reader io.Reader) (int64, error)
	// Delete removes a stored file; a missing file is not an error
	Delete(dir, name string) error
	// PublicPath returns the address at which a stored file is served
	PublicPath(dir, name string) string
}

// ContentRepository defines the interface for the metadata store of one content kind
type ContentRepository interface {
	// Method Load returns the whole collection, never nil.
	//
	// A missing or corrupt backing document is returned as an empty collection.
	Load(ctx context.Context) ([]models.ContentRecord, error)
	// Method Append assigns the record its id and creation time and adds it to the end of the collection.
	//
	// The load, append and persist steps are serialized, so concurrent appends never lose a record.
	Append(ctx context.Context, record *models.ContentRecord) error
	// Method Persist overwrites the backing store with the full collection.
	Persist(ctx context.Context, records []models.ContentRecord) error
}

// scheduleLayouts lists the accepted formats of a scheduled publication timestamp
var scheduleLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

type ingestionService struct {
	repos    map[models.ContentKind]ContentRepository
	storage  Storage
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewIngestionService creates a new ingestion service
//
// "repos" holds one repository per content kind; kinds must not share a repository.
// "location" is used to interpret scheduled timestamps that carry no zone offset.
func NewIngestionService(repos map[models.ContentKind]ContentRepository, storage Storage, location *time.Location, logger *zap.Logger) *ingestionService {
	if location == nil {
		location = time.Local
	}
	return &ingestionService{
		repos:    repos,
		storage:  storage,
		location: location,
		now:      time.Now,
		logger:   logger,
	}
}

// Submit validates a submission, stores its attachments and appends the resulting record.
//
// Validation runs before any side effect, so a *ValidationError means nothing was written.
// A *StorageError or *PersistenceError means the request was aborted; files already written
// for it are removed on a best-effort basis.
func (s *ingestionService) Submit(ctx context.Context, kind models.ContentKind, submission *models.Submission) (*models.ContentRecord, error) {
	policy, ok := policies[kind]
	repo := s.repos[kind]
	if !ok || repo == nil {
		return nil, fmt.Errorf("unsupported content kind: %s", kind)
	}

	title := strings.TrimSpace(submission.Title)
	body := strings.TrimSpace(submission.Body)
	link := ""
	if policy.LinkReplacesFiles {
		link = strings.TrimSpace(submission.Link)
	}

	scheduledAt, err := s.validate(policy, title, body, link, submission)
	if err != nil {
		submissionsTotal.WithLabelValues(string(kind), outcomeRejected).Inc()
		s.logger.Info("submission rejected", zap.String("kind", string(kind)), zap.String("reason", err.Error()))
		return nil, err
	}

	attachments, err := s.storeAttachments(policy, submission.Files)
	if err != nil {
		submissionsTotal.WithLabelValues(string(kind), outcomeFailed).Inc()
		s.logger.Error("failed to store attachments", zap.String("kind", string(kind)), zap.Error(err))
		return nil, &StorageError{Err: err}
	}

	record := &models.ContentRecord{
		Kind:        kind,
		Title:       title,
		Body:        body,
		Link:        link,
		Attachments: attachments,
		ScheduledAt: scheduledAt,
		Status:      models.Classify(scheduledAt),
	}

	if err := repo.Append(ctx, record); err != nil {
		submissionsTotal.WithLabelValues(string(kind), outcomeFailed).Inc()
		s.logger.Error("failed to append content record", zap.String("kind", string(kind)), zap.Error(err))
		s.discard(policy, attachments)
		return nil, &PersistenceError{Err: err}
	}

	submissionsTotal.WithLabelValues(string(kind), outcomeAccepted).Inc()
	s.logger.Info("content submitted",
		zap.String("kind", string(kind)),
		zap.Int64("id", record.ID),
		zap.Int("attachments", len(record.Attachments)),
		zap.String("status", string(record.Status)),
	)

	return record, nil
}

// List returns every record of a content kind in submission order
func (s *ingestionService) List(ctx context.Context, kind models.ContentKind) ([]models.ContentRecord, error) {
	repo := s.repos[kind]
	if repo == nil {
		return nil, fmt.Errorf("unsupported content kind: %s", kind)
	}

	records, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load content records: %w", err)
	}
	return records, nil
}

// validate checks text fields, attachment arity and media types, and parses the schedule
func (s *ingestionService) validate(policy KindPolicy, title, body, link string, submission *models.Submission) (*time.Time, error) {
	if title == "" || (policy.RequireBody && body == "") {
		return nil, newValidationError(policy.MissingFieldsMessage)
	}

	files := len(submission.Files)
	if files < policy.MinFiles && !(policy.LinkReplacesFiles && link != "") {
		return nil, newValidationError(policy.MissingContentMessage)
	}
	if policy.MaxFiles >= 0 && files > policy.MaxFiles {
		return nil, newValidationError(policy.TooManyFilesMessage)
	}

	for _, file := range submission.Files {
		if file.Open == nil {
			return nil, fmt.Errorf("upload %q has no content", file.Name)
		}
		if policy.AcceptMediaType != nil && !policy.AcceptMediaType(mediaType(file.ContentType)) {
			return nil, newValidationError(policy.InvalidMediaMessage)
		}
	}

	return s.parseSchedule(submission.ScheduledAt)
}

// parseSchedule parses an optional scheduled publication timestamp
func (s *ingestionService) parseSchedule(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	for _, layout := range scheduleLayouts {
		t, err := time.ParseInLocation(layout, value, s.location)
		if err == nil {
			return &t, nil
		}
	}

	return nil, newValidationError(invalidScheduleMessage)
}

// storeAttachments writes every upload concurrently and returns the attachments in upload order.
// When any write fails, the files already written are removed.
func (s *ingestionService) storeAttachments(policy KindPolicy, uploads []models.Upload) ([]models.Attachment, error) {
	attachments := make([]models.Attachment, len(uploads))
	if len(uploads) == 0 {
		return attachments, nil
	}

	if err := s.storage.EnsureDir(policy.Dir); err != nil {
		return nil, err
	}

	var g errgroup.Group
	for i, upload := range uploads {
		g.Go(func() error {
			attachment, err := s.storeAttachment(policy, upload)
			if err != nil {
				return err
			}
			attachments[i] = attachment
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.discard(policy, attachments)
		return nil, err
	}

	return attachments, nil
}

// storeAttachment writes one upload under its sanitized name
func (s *ingestionService) storeAttachment(policy KindPolicy, upload models.Upload) (models.Attachment, error) {
	reader, err := upload.Open()
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to open upload %q: %w", upload.Name, err)
	}
	defer reader.Close()

	storedName := storage.SanitizeFileName(upload.Name, s.now())
	size, err := s.storage.Save(policy.Dir, storedName, reader)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to save upload %q: %w", upload.Name, err)
	}

	attachmentBytesTotal.WithLabelValues(string(policy.Kind)).Add(float64(size))

	return models.Attachment{
		OriginalName: upload.Name,
		StoredName:   storedName,
		ContentType:  upload.ContentType,
		SizeBytes:    size,
		PublicPath:   s.storage.PublicPath(policy.Dir, storedName),
	}, nil
}

// discard removes stored attachments of an aborted request
func (s *ingestionService) discard(policy KindPolicy, attachments []models.Attachment) {
	for _, attachment := range attachments {
		if attachment.StoredName == "" {
			continue
		}
		if err := s.storage.Delete(policy.Dir, attachment.StoredName); err != nil {
			s.logger.Warn("failed to remove orphaned attachment",
				zap.String("kind", string(policy.Kind)),
				zap.String("stored_name", attachment.StoredName),
				zap.Error(err),
			)
		}
	}
}

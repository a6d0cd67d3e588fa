package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/intranetportal/backend/internal/models"
	"go.uber.org/zap"
)

// documentRepository keeps the collection of one content kind in a JSON document on disk.
//
// Every read-modify-write cycle runs under mu, so concurrent appends to the same kind never lose
// a record. Different kinds use different documents and different instances.
type documentRepository struct {
	mu     sync.Mutex
	path   string
	kind   models.ContentKind
	ids    *IDGenerator
	now    func() time.Time
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository backed by the JSON file at path
func NewDocumentRepository(path string, kind models.ContentKind, ids *IDGenerator, logger *zap.Logger) *documentRepository {
	return &documentRepository{
		path:   path,
		kind:   kind,
		ids:    ids,
		now:    time.Now,
		logger: logger,
	}
}

// Load returns the current collection.
//
// A missing document is an empty collection. A document that cannot be parsed is also treated
// as empty; the corruption is logged and the corrupt content is replaced on the next write.
func (r *documentRepository) Load(ctx context.Context) ([]models.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load()
}

// Append assigns the record its id and creation time and adds it to the end of the collection
func (r *documentRepository) Append(ctx context.Context, record *models.ContentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil {
		return err
	}

	for _, existing := range records {
		r.ids.Observe(existing.ID)
	}

	record.ID = r.ids.Next()
	record.Kind = r.kind
	record.CreatedAt = r.now().UTC()
	record.Normalize()

	records = append(records, *record)

	return r.persist(records)
}

// Persist overwrites the document with the full collection
func (r *documentRepository) Persist(ctx context.Context, records []models.ContentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.persist(records)
}

// load reads and decodes the document. The caller must hold mu.
func (r *documentRepository) load() ([]models.ContentRecord, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.ContentRecord{}, nil
	}
	if err != nil {
		r.logger.Error("failed to read metadata document", zap.String("path", r.path), zap.Error(err))
		return nil, fmt.Errorf("failed to read metadata document: %w", err)
	}

	var records []models.ContentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		r.logger.Warn("metadata document is corrupt, treating it as empty; its content will be replaced on the next write",
			zap.String("path", r.path),
			zap.String("kind", string(r.kind)),
			zap.Error(err),
		)
		return []models.ContentRecord{}, nil
	}
	if records == nil {
		return []models.ContentRecord{}, nil
	}

	for i := range records {
		if records[i].Kind == "" {
			records[i].Kind = r.kind
		}
		records[i].Normalize()
	}

	return records, nil
}

// persist encodes records and atomically replaces the document. The caller must hold mu.
func (r *documentRepository) persist(records []models.ContentRecord) error {
	if records == nil {
		records = []models.ContentRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	tmpPath := r.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create metadata document: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write metadata document: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync metadata document: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close metadata document: %w", err)
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace metadata document: %w", err)
	}

	return nil
}

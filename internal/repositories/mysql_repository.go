package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/intranetportal/backend/internal/models"
	"go.uber.org/zap"
)

// mysqlRepository keeps the collection of one content kind as rows of the content tables.
// Atomicity of every write is provided by a database transaction.
type mysqlRepository struct {
	db     *sql.DB
	kind   models.ContentKind
	ids    *IDGenerator
	now    func() time.Time
	logger *zap.Logger
}

// NewMySQLRepository creates a new relational repository for one content kind
func NewMySQLRepository(db *sql.DB, kind models.ContentKind, ids *IDGenerator, logger *zap.Logger) *mysqlRepository {
	return &mysqlRepository{
		db:     db,
		kind:   kind,
		ids:    ids,
		now:    time.Now,
		logger: logger,
	}
}

// execer is satisfied by both *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Load returns every record of the repository kind ordered by creation time
func (r *mysqlRepository) Load(ctx context.Context) ([]models.ContentRecord, error) {
	query := `
		SELECT id, title, body, link, created_at, scheduled_at
		FROM content_records
		WHERE kind = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, r.kind)
	if err != nil {
		r.logger.Error("failed to query content records", zap.String("kind", string(r.kind)), zap.Error(err))
		return nil, fmt.Errorf("failed to query content records: %w", err)
	}
	defer rows.Close()

	records := []models.ContentRecord{}
	index := make(map[int64]int)
	for rows.Next() {
		record := models.ContentRecord{Kind: r.kind}
		var scheduledAt sql.NullTime
		if err := rows.Scan(&record.ID, &record.Title, &record.Body, &record.Link, &record.CreatedAt, &scheduledAt); err != nil {
			r.logger.Error("failed to scan content record", zap.Error(err))
			return nil, fmt.Errorf("failed to scan content record: %w", err)
		}
		if scheduledAt.Valid {
			t := scheduledAt.Time
			record.ScheduledAt = &t
		}
		index[record.ID] = len(records)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating rows", zap.Error(err))
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if err := r.loadAttachments(ctx, records, index); err != nil {
		return nil, err
	}

	for i := range records {
		records[i].Normalize()
	}

	return records, nil
}

// loadAttachments fills the attachments of already loaded records in their stored order
func (r *mysqlRepository) loadAttachments(ctx context.Context, records []models.ContentRecord, index map[int64]int) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		SELECT a.record_id, a.original_name, a.stored_name, a.content_type, a.size_bytes, a.public_path
		FROM content_attachments a
		JOIN content_records c ON c.id = a.record_id
		WHERE c.kind = ?
		ORDER BY a.record_id, a.position
	`

	rows, err := r.db.QueryContext(ctx, query, r.kind)
	if err != nil {
		r.logger.Error("failed to query attachments", zap.String("kind", string(r.kind)), zap.Error(err))
		return fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordID int64
		var attachment models.Attachment
		if err := rows.Scan(&recordID, &attachment.OriginalName, &attachment.StoredName, &attachment.ContentType, &attachment.SizeBytes, &attachment.PublicPath); err != nil {
			r.logger.Error("failed to scan attachment", zap.Error(err))
			return fmt.Errorf("failed to scan attachment: %w", err)
		}
		i, ok := index[recordID]
		if !ok {
			continue
		}
		records[i].Attachments = append(records[i].Attachments, attachment)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating rows", zap.Error(err))
		return fmt.Errorf("error iterating rows: %w", err)
	}

	return nil
}

// Append assigns the record its id and creation time and inserts it together with its attachments
// Ids already stored, by an earlier run or another instance, are observed first and never reissued.
func (r *mysqlRepository) Append(ctx context.Context, record *models.ContentRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var lastID sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(id) FROM content_records`).Scan(&lastID); err != nil {
		r.logger.Error("failed to read last content record id", zap.Error(err))
		return fmt.Errorf("failed to read last content record id: %w", err)
	}
	if lastID.Valid {
		r.ids.Observe(lastID.Int64)
	}

	record.ID = r.ids.Next()
	record.Kind = r.kind
	record.CreatedAt = r.now().UTC().Truncate(time.Millisecond)
	record.Normalize()

	if err := r.insert(ctx, tx, record); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("failed to commit content record", zap.Int64("id", record.ID), zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Persist replaces every record of the repository kind with records
func (r *mysqlRepository) Persist(ctx context.Context, records []models.ContentRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Attachments are removed by the ON DELETE CASCADE foreign key
	if _, err := tx.ExecContext(ctx, `DELETE FROM content_records WHERE kind = ?`, r.kind); err != nil {
		r.logger.Error("failed to clear content records", zap.String("kind", string(r.kind)), zap.Error(err))
		return fmt.Errorf("failed to clear content records: %w", err)
	}

	for i := range records {
		records[i].Kind = r.kind
		if err := r.insert(ctx, tx, &records[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// insert writes one record row and its attachment rows
func (r *mysqlRepository) insert(ctx context.Context, db execer, record *models.ContentRecord) error {
	query := `
		INSERT INTO content_records (id, kind, title, body, link, created_at, scheduled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var scheduledAt sql.NullTime
	if record.ScheduledAt != nil {
		scheduledAt = sql.NullTime{Time: *record.ScheduledAt, Valid: true}
	}

	_, err := db.ExecContext(ctx, query,
		record.ID,
		record.Kind,
		record.Title,
		record.Body,
		record.Link,
		record.CreatedAt,
		scheduledAt,
	)
	if err != nil {
		r.logger.Error("failed to insert content record", zap.Int64("id", record.ID), zap.Error(err))
		return fmt.Errorf("failed to insert content record: %w", err)
	}

	attachmentQuery := `
		INSERT INTO content_attachments (record_id, position, original_name, stored_name, content_type, size_bytes, public_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for position, attachment := range record.Attachments {
		_, err := db.ExecContext(ctx, attachmentQuery,
			record.ID,
			position,
			attachment.OriginalName,
			attachment.StoredName,
			attachment.ContentType,
			attachment.SizeBytes,
			attachment.PublicPath,
		)
		if err != nil {
			r.logger.Error("failed to insert attachment", zap.Int64("record_id", record.ID), zap.Error(err))
			return fmt.Errorf("failed to insert attachment: %w", err)
		}
	}

	return nil
}

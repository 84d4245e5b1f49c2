package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/italolelis/politodown/internal/storage"
)

type FileRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewFileRepository(dbConn *sql.DB) *FileRepository {
	return &FileRepository{db: dbConn, now: time.Now}
}

// RecordFile appends one outcome to the ledger.
func (r *FileRepository) RecordFile(ctx context.Context, rec storage.FileRecord) error {
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO files (run_id, file_id, kind, path, size, status, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.FileID, rec.Kind, rec.Path, rec.Size, rec.Status, recordedAt.UTC().Format(time.RFC3339),
	)

	return err
}

// GetFiles returns the outcomes of a run in the order they were recorded.
func (r *FileRepository) GetFiles(ctx context.Context, runID string) ([]storage.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, file_id, kind, path, size, status, recorded_at FROM files WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []storage.FileRecord

	for rows.Next() {
		var (
			record     storage.FileRecord
			fileID     sql.NullString
			kind       sql.NullString
			recordedAt string
		)

		if err := rows.Scan(&record.RunID, &fileID, &kind, &record.Path, &record.Size, &record.Status, &recordedAt); err != nil {
			return nil, err
		}

		record.FileID = fileID.String
		record.Kind = kind.String

		if t, err := time.Parse(time.RFC3339, recordedAt); err == nil {
			record.RecordedAt = t
		}

		files = append(files, record)
	}

	return files, rows.Err()
}

var (
	_ storage.FileReadRepository  = (*FileRepository)(nil)
	_ storage.FileWriteRepository = (*FileRepository)(nil)
)

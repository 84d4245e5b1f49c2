package sqlite

import (
	"context"
	"database/sql"

	"github.com/italolelis/politodown/internal/storage"
	"github.com/italolelis/politodown/internal/telemetry"
)

// InstrumentedFileRepository wraps FileRepository with telemetry.
type InstrumentedFileRepository struct {
	repo      *FileRepository
	telemetry *telemetry.Telemetry
}

// NewInstrumentedFileRepository creates a new instrumented file repository.
func NewInstrumentedFileRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedFileRepository {
	return &InstrumentedFileRepository{
		repo:      NewFileRepository(dbConn),
		telemetry: tel,
	}
}

// RecordFile records a file outcome with telemetry.
func (r *InstrumentedFileRepository) RecordFile(ctx context.Context, rec storage.FileRecord) error {
	return r.telemetry.InstrumentDBOperation(ctx, "record_file", func(ctx context.Context) error {
		return r.repo.RecordFile(ctx, rec)
	})
}

// GetFiles retrieves the outcomes of a run with telemetry.
func (r *InstrumentedFileRepository) GetFiles(ctx context.Context, runID string) ([]storage.FileRecord, error) {
	var result []storage.FileRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_files", func(ctx context.Context) error {
		var err error

		result, err = r.repo.GetFiles(ctx, runID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

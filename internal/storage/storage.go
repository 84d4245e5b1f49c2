package storage

import (
	"context"
	"time"
)

// File outcome statuses.
const (
	StatusDownloaded = "downloaded"
	StatusSkipped    = "skipped"
	StatusNotFound   = "not_found"
)

// FileRecord is one line of the download ledger: what happened to a file during a run.
type FileRecord struct {
	RunID      string    `json:"run_id"`
	FileID     string    `json:"file_id,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	Status     string    `json:"status"`
	RecordedAt time.Time `json:"recorded_at"`
}

// FileReadRepository reads the ledger.
type FileReadRepository interface {
	GetFiles(ctx context.Context, runID string) ([]FileRecord, error)
}

// FileWriteRepository appends to the ledger.
type FileWriteRepository interface {
	RecordFile(ctx context.Context, rec FileRecord) error
}

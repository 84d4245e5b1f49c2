// Package downloader mirrors the children of a remote node onto local storage.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/politodown/internal/downloader/progress"
	"github.com/italolelis/politodown/internal/logctx"
	"github.com/italolelis/politodown/internal/pathmap"
	"github.com/italolelis/politodown/internal/retry"
	"github.com/italolelis/politodown/internal/storage"
	"github.com/italolelis/politodown/internal/telemetry"
	"github.com/italolelis/politodown/internal/transfer"
)

const (
	dirPerm = 0755
)

// Outcome of a single file.
const (
	OutcomeDownloaded = storage.StatusDownloaded
	OutcomeSkipped    = storage.StatusSkipped
	OutcomeNotFound   = storage.StatusNotFound
	OutcomeFailed     = "error"
)

// Recorder keeps a ledger of per-file outcomes.
type Recorder interface {
	RecordFile(ctx context.Context, rec storage.FileRecord) error
}

// Result summarises one Download call.
type Result struct {
	Downloaded int
	Skipped    int
	NotFound   int
	Bytes      int64
}

// Files is the number of files the run went through.
func (r Result) Files() int {
	return r.Downloaded + r.Skipped + r.NotFound
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithInvoker sets the retry policy used for listing and saving.
func WithInvoker(inv *retry.Invoker) Option {
	return func(d *Downloader) {
		d.invoker = inv
	}
}

// WithReporter sets the factory that builds a fresh reporter for each run.
// It receives the name of the node being downloaded.
func WithReporter(newReporter func(base string) progress.Reporter) Option {
	return func(d *Downloader) {
		d.newReporter = newReporter
	}
}

// WithTelemetry records file outcomes, retries and bytes.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(d *Downloader) {
		d.telemetry = tel
	}
}

// WithRecorder stores every file outcome in a ledger.
func WithRecorder(r Recorder) Option {
	return func(d *Downloader) {
		d.recorder = r
	}
}

type Downloader struct {
	client      transfer.DownloadClient
	invoker     *retry.Invoker
	newReporter func(base string) progress.Reporter
	telemetry   *telemetry.Telemetry
	recorder    Recorder
	mkdirAll    func(path string, perm os.FileMode) error

	mu       sync.Mutex
	reporter progress.Reporter
}

func New(client transfer.DownloadClient, opts ...Option) *Downloader {
	d := &Downloader{
		client:      client,
		invoker:     retry.New(retry.DefaultDelay, 0),
		newReporter: progress.Discard,
		mkdirAll:    os.MkdirAll,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.telemetry != nil && d.invoker.OnRetry == nil {
		inv := *d.invoker
		inv.OnRetry = func(err error, attempt uint, wait time.Duration) {
			d.telemetry.RecordRetry("download")
		}
		d.invoker = &inv
	}

	return d
}

// Snapshot returns the progress of the current run, or of the last one.
func (d *Downloader) Snapshot() progress.State {
	d.mu.Lock()
	r := d.reporter
	d.mu.Unlock()

	if r == nil {
		return progress.State{}
	}

	return r.Snapshot()
}

// Download lists the children of node once and saves each of them under baseDir,
// reproducing the remote hierarchy. Missing remote objects are skipped; any
// other non-transient failure aborts the run.
func (d *Downloader) Download(ctx context.Context, node *transfer.Node, baseDir string) (Result, error) {
	logger := logctx.LoggerFromContext(ctx).With("node", node.Name, "kind", node.Kind.String())
	ctx = logctx.WithLogger(ctx, logger)

	reporter := d.newReporter(pathmap.Sanitize(node.Name))

	d.mu.Lock()
	d.reporter = reporter
	d.mu.Unlock()

	var result Result

	children, err := d.enumerate(ctx, node)
	if err != nil {
		return result, fmt.Errorf("failed to list %s %q: %w", node.Kind, node.Name, err)
	}

	logger.InfoContext(ctx, "downloading", "files", len(children), "base_dir", baseDir)

	reporter.BeginOuter(len(children))

	for _, f := range children {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		outcome, written, err := d.downloadFile(ctx, reporter, node, f, baseDir)
		if err != nil {
			return result, fmt.Errorf("failed to download %q: %w", f.Name, err)
		}

		switch outcome {
		case OutcomeDownloaded:
			result.Downloaded++
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeNotFound:
			result.NotFound++
		}

		result.Bytes += written

		reporter.AdvanceOuter()
	}

	logger.InfoContext(ctx, "download completed",
		"downloaded", result.Downloaded,
		"skipped", result.Skipped,
		"not_found", result.NotFound,
		"size", humanize.Bytes(uint64(result.Bytes)),
	)

	return result, nil
}

// enumerate lists the children of node once. Named containers are ordered by key.
func (d *Downloader) enumerate(ctx context.Context, node *transfer.Node) ([]*transfer.File, error) {
	var children []*transfer.File

	err := d.invoker.Do(ctx, "list", func(ctx context.Context) error {
		if node.Named() {
			named, err := d.client.NamedChildren(ctx, node)
			if err != nil {
				return err
			}

			children = transfer.SortedFiles(named)

			return nil
		}

		var err error

		children, err = d.client.Children(ctx, node)

		return err
	})

	return children, err
}

func (d *Downloader) downloadFile(
	ctx context.Context, reporter progress.Reporter, node *transfer.Node, f *transfer.File, baseDir string,
) (string, int64, error) {
	logger := logctx.LoggerFromContext(ctx).With("file", f.Name)
	ctx = logctx.WithLogger(ctx, logger)

	rel := pathmap.Dir(f)
	dir := filepath.Join(baseDir, rel)
	name := pathmap.FileName(f, transfer.FolderNaming)

	if rel != "" && filepath.Base(dir) != pathmap.Sanitize(node.Name) {
		reporter.SetLabel(filepath.Base(dir))
	}

	defer reporter.EndInner()

	var (
		skipped bool
		written int64
	)

	fileOutcome := func(err error) string {
		if err == nil && skipped {
			return OutcomeSkipped
		}

		return outcomeOf(err)
	}

	err := d.telemetry.InstrumentFile(ctx, f.Kind.String(), fileOutcome, func(ctx context.Context) error {
		return d.invoker.Do(ctx, "save", func(ctx context.Context) error {
			// every attempt is a fresh stream
			skipped, written = false, 0
			reporter.BeginInner(name, 0)

			if err := d.mkdirAll(dir, dirPerm); err != nil {
				return &transfer.DirectoryError{DirectoryName: dir, Reason: "cannot create", Err: err}
			}

			return d.client.Save(ctx, f, dir, transfer.FolderNaming, func(c transfer.Chunk) {
				if c.IsSkipped() {
					skipped = true

					logger.InfoContext(ctx, "already downloaded, skipping", "path", filepath.Join(dir, name))

					return
				}

				// Size may only be known once the stream started
				reporter.SetInnerTotal(f.Size)

				written += c.Bytes
				reporter.AdvanceInner(c.Bytes)
			})
		})
	})

	outcome := fileOutcome(err)

	switch {
	case transfer.IsNotFound(err):
		logger.WarnContext(ctx, "remote file not found, skipping", "err", err)
	case err != nil:
		return OutcomeFailed, written, err
	case skipped:
	default:
		logger.InfoContext(ctx, "saved file", "path", filepath.Join(dir, name), "size", humanize.Bytes(uint64(written)))
	}

	d.record(ctx, f, filepath.Join(dir, name), outcome, written)

	return outcome, written, nil
}

func (d *Downloader) record(ctx context.Context, f *transfer.File, path, outcome string, written int64) {
	if d.recorder == nil {
		return
	}

	err := d.recorder.RecordFile(ctx, storage.FileRecord{
		RunID:  logctx.RunIDFromContext(ctx),
		FileID: f.ID,
		Kind:   f.Kind.String(),
		Path:   path,
		Size:   written,
		Status: outcome,
	})
	if err != nil {
		logctx.LoggerFromContext(ctx).WarnContext(ctx, "failed to record file outcome", "err", err)
	}
}

func outcomeOf(err error) string {
	var notFound *transfer.NotFoundError

	switch {
	case err == nil:
		return OutcomeDownloaded
	case errors.As(err, &notFound):
		return OutcomeNotFound
	default:
		return OutcomeFailed
	}
}

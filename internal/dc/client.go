// Package dc holds what the remote session clients share: mapping HTTP
// failures onto transfer errors and streaming a remote file to disk.
package dc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/italolelis/politodown/internal/downloader/progress"
	"github.com/italolelis/politodown/internal/logctx"
	"github.com/italolelis/politodown/internal/pathmap"
	"github.com/italolelis/politodown/internal/transfer"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// PartSuffix marks a file that is still being written.
	PartSuffix = ".part"

	filePerm        = 0644
	maxErrorSnippet = 512
)

// NewHTTPClient returns an HTTP client whose requests are traced.
func NewHTTPClient(base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}

	return &http.Client{Transport: otelhttp.NewTransport(base)}
}

// StatusError maps an unsuccessful HTTP status onto the transfer error taxonomy:
// 404 and 410 mean the object is gone, 401 and 403 are authentication failures
// and everything else is a network error worth retrying.
func StatusError(operation, resource string, statusCode int, message string) error {
	netErr := &transfer.NetworkError{
		Operation:  operation,
		StatusCode: statusCode,
		APIMessage: message,
	}

	switch statusCode {
	case http.StatusNotFound, http.StatusGone:
		return &transfer.NotFoundError{Resource: resource, Err: netErr}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &transfer.AuthenticationError{Operation: operation, Err: netErr}
	default:
		return netErr
	}
}

// ResponseError builds the transfer error for a non-2xx response, using a
// snippet of the body as the message.
func ResponseError(operation, resource string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))

	msg := strings.TrimSpace(string(snippet))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return StatusError(operation, resource, resp.StatusCode, msg)
}

// Fetcher streams remote files into a local directory.
type Fetcher struct {
	HTTP *http.Client
}

// NewFetcher returns a fetcher using client, or a traced default client when nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = NewHTTPClient(nil)
	}

	return &Fetcher{HTTP: client}
}

// Save downloads rawURL into dir under the name chosen by naming. When a local
// file with the declared size already exists, or any local file when the size
// is unknown, it reports a single skipped chunk and leaves the file untouched. Bytes are written to a .part file that is
// renamed once complete, so an interrupted transfer never looks finished.
func (fe *Fetcher) Save(
	ctx context.Context, rawURL string, f *transfer.File, dir string,
	naming transfer.NamingStrategy, onChunk func(transfer.Chunk),
) error {
	logger := logctx.LoggerFromContext(ctx)

	target := filepath.Join(dir, pathmap.FileName(f, naming))

	if complete(target, f.Size) {
		onChunk(transfer.Skipped())

		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := fe.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", f.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ResponseError("save", f.Name, resp)
	}

	if f.Size <= 0 && resp.ContentLength > 0 {
		f.Size = resp.ContentLength

		if complete(target, f.Size) {
			onChunk(transfer.Skipped())

			return nil
		}
	}

	part := target + PartSuffix

	out, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return &transfer.DirectoryError{DirectoryName: dir, Reason: "cannot create file", Err: err}
	}

	pr := progress.NewReader(resp.Body, func(n int64) {
		onChunk(transfer.Transferred(n))
	})

	written, copyErr := io.Copy(out, pr)
	closeErr := out.Close()

	if copyErr == nil && resp.ContentLength > 0 && written != resp.ContentLength {
		copyErr = io.ErrUnexpectedEOF
	}

	if err := errors.Join(copyErr, closeErr); err != nil {
		if rmErr := os.Remove(part); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.WarnContext(ctx, "failed to remove partial file", "path", part, "err", rmErr)
		}

		return fmt.Errorf("failed to write %s: %w", f.Name, err)
	}

	if err := os.Rename(part, target); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", f.Name, err)
	}

	if f.Size <= 0 {
		f.Size = written
	}

	return nil
}

// complete reports whether path is a regular file of exactly size bytes. With
// an unknown size any regular file counts, since targets only appear once a
// .part file has been fully written and renamed.
func complete(path string, size int64) bool {
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		return false
	}

	return size <= 0 || st.Size() == size
}

package dc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/italolelis/politodown/internal/retry"
	"github.com/italolelis/politodown/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusError(t *testing.T) {
	tests := []struct {
		status    int
		notFound  bool
		auth      bool
		transient bool
	}{
		{http.StatusNotFound, true, false, false},
		{http.StatusGone, true, false, false},
		{http.StatusUnauthorized, false, true, false},
		{http.StatusForbidden, false, true, false},
		{http.StatusInternalServerError, false, false, true},
		{http.StatusBadGateway, false, false, true},
		{http.StatusTooManyRequests, false, false, true},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			err := StatusError("save", "a.pdf", tt.status, "boom")

			var authErr *transfer.AuthenticationError

			assert.Equal(t, tt.notFound, transfer.IsNotFound(err))
			assert.Equal(t, tt.auth, errors.As(err, &authErr))
			assert.Equal(t, tt.transient, transfer.IsTransient(err))

			var netErr *transfer.NetworkError
			require.True(t, errors.As(err, &netErr), "status is always kept as a network error in the chain")
			assert.Equal(t, tt.status, netErr.StatusCode)
		})
	}
}

// Credentials are not fixed by waiting, so 401 and 403 stop the run at once
// while every other status is retried.
func TestStatusError_AuthenticationIsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			calls := 0

			err := retry.New(time.Millisecond, 0).Do(context.Background(), "save", func(ctx context.Context) error {
				calls++

				return StatusError("save", "a.pdf", status, "token expired")
			})

			var authErr *transfer.AuthenticationError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, 1, calls)
		})
	}

	calls := 0

	err := retry.New(time.Millisecond, 0).Do(context.Background(), "save", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return StatusError("save", "a.pdf", http.StatusServiceUnavailable, "try later")
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func newContentServer(t *testing.T, files map[string]string) (*httptest.Server, *int) {
	t.Helper()

	hits := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++

		content, ok := files[r.URL.Path]
		if !ok {
			http.Error(w, "no such file", http.StatusNotFound)

			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		_, _ = io.WriteString(w, content)
	}))
	t.Cleanup(srv.Close)

	return srv, &hits
}

func TestFetcher_Save(t *testing.T) {
	srv, hits := newContentServer(t, map[string]string{"/a.pdf": "hello world"})
	fetcher := NewFetcher(srv.Client())
	dir := t.TempDir()

	f := &transfer.File{Name: "a.pdf", Parent: &transfer.Node{Kind: transfer.KindFolder}}

	var total int64

	err := fetcher.Save(context.Background(), srv.URL+"/a.pdf", f, dir, nil, func(c transfer.Chunk) {
		require.False(t, c.IsSkipped())
		total += c.Bytes
	})
	require.NoError(t, err)

	assert.Equal(t, int64(11), total)
	assert.Equal(t, int64(11), f.Size, "size is learned from the response")

	content, err := os.ReadFile(filepath.Join(dir, "a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(content))
	assert.NoFileExists(t, filepath.Join(dir, "a.pdf"+PartSuffix))

	var chunks []transfer.Chunk

	err = fetcher.Save(context.Background(), srv.URL+"/a.pdf", f, dir, nil, func(c transfer.Chunk) {
		chunks = append(chunks, c)
	})
	require.NoError(t, err)

	assert.Equal(t, []transfer.Chunk{transfer.Skipped()}, chunks)
	assert.Equal(t, 1, *hits, "a complete local file is not requested again")
}

func TestFetcher_SaveUnknownSizeIsIdempotent(t *testing.T) {
	hits := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++

		// flushing before the body forces a chunked response without Content-Length
		w.(http.Flusher).Flush()
		_, _ = io.WriteString(w, "hello world")
	}))
	t.Cleanup(srv.Close)

	fetcher := NewFetcher(srv.Client())
	dir := t.TempDir()

	save := func() (bool, int64) {
		f := &transfer.File{Name: "a.pdf", Parent: &transfer.Node{Kind: transfer.KindFolder}}

		var (
			skipped bool
			total   int64
		)

		err := fetcher.Save(context.Background(), srv.URL+"/a.pdf", f, dir, nil, func(c transfer.Chunk) {
			if c.IsSkipped() {
				skipped = true

				return
			}

			total += c.Bytes
		})
		require.NoError(t, err)

		return skipped, total
	}

	skipped, total := save()
	assert.False(t, skipped)
	assert.Equal(t, int64(11), total)

	skipped, total = save()
	assert.True(t, skipped)
	assert.Zero(t, total, "second run must not transfer any byte")
	assert.Equal(t, 1, hits)
}

func TestFetcher_SaveOverwritesIncompleteFile(t *testing.T) {
	srv, _ := newContentServer(t, map[string]string{"/b.pdf": "0123456789"})
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.pdf"), []byte("0123"), 0o644))

	f := &transfer.File{Name: "b.pdf", Size: 10, Parent: &transfer.Node{Kind: transfer.KindFolder}}

	err := NewFetcher(srv.Client()).Save(context.Background(), srv.URL+"/b.pdf", f, dir, nil, func(transfer.Chunk) {})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "b.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(content))
}

func TestFetcher_SaveNotFound(t *testing.T) {
	srv, _ := newContentServer(t, nil)
	dir := t.TempDir()

	err := NewFetcher(srv.Client()).Save(context.Background(), srv.URL+"/gone.pdf", &transfer.File{Name: "gone.pdf"}, dir, nil, func(transfer.Chunk) {})
	require.Error(t, err)
	assert.True(t, transfer.IsNotFound(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetcher_SaveTruncatedBodyIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		fmt.Fprint(w, "only a few bytes")
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := &transfer.File{Name: "c.pdf", Size: 100, Parent: &transfer.Node{Kind: transfer.KindFolder}}

	err := NewFetcher(srv.Client()).Save(context.Background(), srv.URL, f, dir, nil, func(transfer.Chunk) {})
	require.Error(t, err)
	assert.True(t, transfer.IsTransient(err))
	assert.NoFileExists(t, filepath.Join(dir, "c.pdf"))
	assert.NoFileExists(t, filepath.Join(dir, "c.pdf"+PartSuffix))
}

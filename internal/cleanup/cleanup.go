package cleanup

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/italolelis/politodown/internal/dc"
	"github.com/italolelis/politodown/internal/logctx"
)

// RemovePartialFiles deletes the .part files an interrupted run left under dir
// and returns how many were removed. A missing dir is not an error.
func RemovePartialFiles(ctx context.Context, dir string) (int, error) {
	logger := logctx.LoggerFromContext(ctx)
	removed := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), dc.PartSuffix) {
			return nil
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Error("failed to delete partial file", "file", path, "err", err)

			return err
		}

		logger.Info("deleted partial file", "file", path)

		removed++

		return nil
	})

	return removed, err
}

// Package pathmap derives local paths that mirror the remote container hierarchy.
package pathmap

import (
	"path/filepath"
	"strings"

	"github.com/italolelis/politodown/internal/transfer"
	"golang.org/x/text/unicode/norm"
)

// reserved are the characters rejected by at least one of the filesystems
// the mirror may land on.
const reserved = `<>:"/\|?*`

// Sanitize turns a remote display name into a valid file or directory name.
// The same input always yields the same output.
func Sanitize(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))

	var b strings.Builder

	b.Grow(len(name))

	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		case strings.ContainsRune(reserved, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}

	// Windows drops trailing dots and spaces; this also folds "." and "..".
	s := strings.TrimRight(b.String(), ". ")
	if s == "" {
		return "_"
	}

	return s
}

// FileName is the sanitized local name of f under the given naming strategy.
func FileName(f *transfer.File, naming transfer.NamingStrategy) string {
	if naming == nil {
		naming = transfer.FolderNaming
	}

	return Sanitize(naming(f))
}

// Dir returns the relative directory of f: one sanitized segment per mirrored
// ancestor, outermost first. The last segment is the file's own container.
func Dir(f *transfer.File) string {
	if f.Parent == nil {
		return ""
	}

	chain := f.Parent.Path()
	segments := make([]string, 0, len(chain))

	for _, n := range chain {
		segments = append(segments, Sanitize(n.Name))
	}

	return filepath.Join(segments...)
}

// RelativePath returns where f is stored relative to the category base directory.
func RelativePath(f *transfer.File) string {
	return filepath.Join(Dir(f), FileName(f, transfer.FolderNaming))
}

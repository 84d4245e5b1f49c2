// Package catalog picks the node to download from names given in configuration.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/italolelis/politodown/internal/transfer"
)

// Download categories. Each one is also the directory its files go under.
const (
	CategoryMaterials = "Materiali"
	CategoryVideos    = "Videolezioni"
)

// ErrAmbiguous is returned when a name matches several entries case-insensitively.
var ErrAmbiguous = errors.New("ambiguous name")

// Navigator is the part of a session that walks the catalog.
type Navigator interface {
	Materials(ctx context.Context, year string) (map[string]*transfer.Node, error)
	Assignments(ctx context.Context, material *transfer.Node) (map[string]*transfer.Node, error)
	VideoStores(ctx context.Context, year string) (map[string]map[string]*transfer.Node, error)
}

var _ Navigator = transfer.Session(nil)

// Selection names the node to download.
type Selection struct {
	Category        string
	Year            string
	Material        string
	Assignment      string
	VideoCollection string
	VideoStore      string
}

// BaseDir is the directory under root where the selection's files are mirrored.
func (s Selection) BaseDir(root string) string {
	return filepath.Join(root, s.Category)
}

// Resolve walks the catalog following sel and returns the selected node.
func Resolve(ctx context.Context, nav Navigator, sel Selection) (*transfer.Node, error) {
	switch sel.Category {
	case CategoryMaterials:
		materials, err := nav.Materials(ctx, sel.Year)
		if err != nil {
			return nil, err
		}

		material, err := Lookup(materials, "material", sel.Material)
		if err != nil {
			return nil, err
		}

		assignments, err := nav.Assignments(ctx, material)
		if err != nil {
			return nil, err
		}

		return Lookup(assignments, "assignment", sel.Assignment)
	case CategoryVideos:
		collections, err := nav.VideoStores(ctx, sel.Year)
		if err != nil {
			return nil, err
		}

		stores, err := Lookup(collections, "video collection", sel.VideoCollection)
		if err != nil {
			return nil, err
		}

		return Lookup(stores, "video store", sel.VideoStore)
	default:
		return nil, fmt.Errorf("unknown category %q", sel.Category)
	}
}

// Lookup finds name in entries: an exact match wins, otherwise a unique
// case-insensitive match is accepted.
func Lookup[T any](entries map[string]T, what, name string) (T, error) {
	var zero T

	if v, ok := entries[name]; ok {
		return v, nil
	}

	var matches []string

	for key := range entries {
		if strings.EqualFold(strings.TrimSpace(key), strings.TrimSpace(name)) {
			matches = append(matches, key)
		}
	}

	switch len(matches) {
	case 1:
		return entries[matches[0]], nil
	case 0:
		return zero, &transfer.NotFoundError{
			Resource: fmt.Sprintf("%s %q (available: %s)", what, name, strings.Join(Names(entries), ", ")),
		}
	default:
		slices.Sort(matches)

		return zero, fmt.Errorf("%w: %s %q matches %s", ErrAmbiguous, what, name, strings.Join(matches, ", "))
	}
}

// Names returns the sorted keys of entries.
func Names[T any](entries map[string]T) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

package transfer

import (
	"context"
	"sort"
)

// Kind discriminates the remote node variants.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
	KindAssignment
	KindMaterial
	KindVideoLesson
	KindVideoStore
	KindVideoCollection
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFolder:
		return "folder"
	case KindAssignment:
		return "assignment"
	case KindMaterial:
		return "material"
	case KindVideoLesson:
		return "videolesson"
	case KindVideoStore:
		return "videostore"
	case KindVideoCollection:
		return "videocollection"
	default:
		return "unknown"
	}
}

// Mirrored reports whether containers of this kind become a directory on disk.
// Materials and video collections are navigation only.
func (k Kind) Mirrored() bool {
	switch k {
	case KindFolder, KindAssignment, KindVideoStore:
		return true
	default:
		return false
	}
}

// Node is a remote container: a folder, an assignment, a material or a video store.
type Node struct {
	ID     string
	Kind   Kind
	Name   string
	Parent *Node
}

// Named reports whether the children of the node are addressed by name
// rather than listed as a sequence.
func (n *Node) Named() bool {
	return n.Kind == KindVideoStore
}

// Path returns the mirrored containers from the outermost ancestor down to n.
func (n *Node) Path() []*Node {
	var chain []*Node

	for cur := n; cur != nil && cur.Kind.Mirrored(); cur = cur.Parent {
		chain = append(chain, cur)
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return chain
}

// File is a remote leaf that can be saved locally.
type File struct {
	ID       string
	Kind     Kind
	Name     string
	Filename string // declared filename; assignments name their deliverables generically
	Size     int64  // may stay 0 until the save stream has started
	URL      string
	Parent   *Node
}

// ChunkKind tells whether a save step transferred bytes or skipped the file.
type ChunkKind int

const (
	ChunkTransferred ChunkKind = iota
	ChunkSkipped
)

// Chunk is a single result produced while saving a file.
type Chunk struct {
	Kind  ChunkKind
	Bytes int64
}

// Transferred returns a chunk of n bytes just written to disk.
func Transferred(n int64) Chunk {
	return Chunk{Kind: ChunkTransferred, Bytes: n}
}

// Skipped returns the chunk emitted when a complete local copy already exists.
func Skipped() Chunk {
	return Chunk{Kind: ChunkSkipped}
}

func (c Chunk) IsSkipped() bool {
	return c.Kind == ChunkSkipped
}

// NamingStrategy picks the local filename of a remote file.
type NamingStrategy func(f *File) string

// FolderNaming uses the file's own name inside folders and the declared
// filename everywhere else.
func FolderNaming(f *File) string {
	if f.Parent != nil && f.Parent.Kind == KindFolder {
		return f.Name
	}

	if f.Filename != "" {
		return f.Filename
	}

	return f.Name
}

// DownloadClient is the part of a remote session the downloader needs.
// Children must be restartable: a second call lists the same logical sequence.
type DownloadClient interface {
	Children(ctx context.Context, node *Node) ([]*File, error)
	NamedChildren(ctx context.Context, node *Node) (map[string]*File, error)
	Save(ctx context.Context, file *File, dir string, naming NamingStrategy, onChunk func(Chunk)) error
}

// Session is an authenticated connection to a remote catalog.
type Session interface {
	DownloadClient

	Authenticate(ctx context.Context) error
	Materials(ctx context.Context, year string) (map[string]*Node, error)
	Assignments(ctx context.Context, material *Node) (map[string]*Node, error)
	VideoStores(ctx context.Context, year string) (map[string]map[string]*Node, error)
}

// SortedFiles flattens a named collection into a slice ordered by key.
func SortedFiles(named map[string]*File) []*File {
	keys := make([]string, 0, len(named))
	for k := range named {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	files := make([]*File, 0, len(keys))
	for _, k := range keys {
		files = append(files, named[k])
	}

	return files
}

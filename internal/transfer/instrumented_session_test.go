package transfer

import (
	"context"
	"errors"
	"testing"

	"github.com/italolelis/politodown/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSession struct {
	calls  []string
	err    error
	chunks []Chunk
}

func (s *stubSession) Authenticate(ctx context.Context) error {
	s.calls = append(s.calls, "authenticate")

	return s.err
}

func (s *stubSession) Materials(ctx context.Context, year string) (map[string]*Node, error) {
	s.calls = append(s.calls, "materials:"+year)
	if s.err != nil {
		return nil, s.err
	}

	return map[string]*Node{"Analisi I": {Kind: KindMaterial, Name: "Analisi I"}}, nil
}

func (s *stubSession) Assignments(ctx context.Context, material *Node) (map[string]*Node, error) {
	s.calls = append(s.calls, "assignments:"+material.Name)

	return map[string]*Node{}, s.err
}

func (s *stubSession) VideoStores(ctx context.Context, year string) (map[string]map[string]*Node, error) {
	s.calls = append(s.calls, "video_stores:"+year)

	return map[string]map[string]*Node{}, s.err
}

func (s *stubSession) Children(ctx context.Context, node *Node) ([]*File, error) {
	s.calls = append(s.calls, "children:"+node.Name)

	return []*File{{Name: "a.pdf"}}, s.err
}

func (s *stubSession) NamedChildren(ctx context.Context, node *Node) (map[string]*File, error) {
	s.calls = append(s.calls, "named_children:"+node.Name)

	return map[string]*File{"Lezione 1": {Name: "l1.mp4"}}, s.err
}

func (s *stubSession) Save(ctx context.Context, f *File, dir string, naming NamingStrategy, onChunk func(Chunk)) error {
	s.calls = append(s.calls, "save:"+f.Name)

	for _, c := range s.chunks {
		onChunk(c)
	}

	return s.err
}

func newTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()

	tel, err := telemetry.New(context.Background(), telemetry.Config{})
	require.NoError(t, err)

	return tel
}

func TestInstrumentedSession_Delegates(t *testing.T) {
	stub := &stubSession{}
	s := NewInstrumentedSession(stub, newTelemetry(t), "portal")
	ctx := context.Background()
	node := &Node{Kind: KindAssignment, Name: "Esercitazioni"}

	require.NoError(t, s.Authenticate(ctx))

	materials, err := s.Materials(ctx, "2024")
	require.NoError(t, err)
	assert.Contains(t, materials, "Analisi I")

	_, err = s.Assignments(ctx, materials["Analisi I"])
	require.NoError(t, err)

	_, err = s.VideoStores(ctx, "2024")
	require.NoError(t, err)

	files, err := s.Children(ctx, node)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	named, err := s.NamedChildren(ctx, node)
	require.NoError(t, err)
	assert.Contains(t, named, "Lezione 1")

	assert.Equal(t, []string{
		"authenticate",
		"materials:2024",
		"assignments:Analisi I",
		"video_stores:2024",
		"children:Esercitazioni",
		"named_children:Esercitazioni",
	}, stub.calls)
}

func TestInstrumentedSession_ErrorDropsResult(t *testing.T) {
	boom := errors.New("boom")
	s := NewInstrumentedSession(&stubSession{err: boom}, newTelemetry(t), "putio")

	materials, err := s.Materials(context.Background(), "2024")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, materials)

	files, err := s.Children(context.Background(), &Node{Name: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, files)
}

func TestInstrumentedSession_SaveForwardsChunks(t *testing.T) {
	stub := &stubSession{chunks: []Chunk{Transferred(10), Transferred(20), Skipped()}}
	s := NewInstrumentedSession(stub, newTelemetry(t), "portal")

	var got []Chunk

	err := s.Save(context.Background(), &File{Name: "a.pdf"}, t.TempDir(), FolderNaming, func(c Chunk) {
		got = append(got, c)
	})

	require.NoError(t, err)
	assert.Equal(t, stub.chunks, got)
}

func TestInstrumentedSession_SaveWithoutCallback(t *testing.T) {
	stub := &stubSession{chunks: []Chunk{Transferred(10)}}
	s := NewInstrumentedSession(stub, nil, "portal")

	require.NoError(t, s.Save(context.Background(), &File{Name: "a.pdf"}, t.TempDir(), FolderNaming, nil))
	assert.Equal(t, []string{"save:a.pdf"}, stub.calls)
}

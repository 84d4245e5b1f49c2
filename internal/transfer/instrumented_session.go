package transfer

import (
	"context"

	"github.com/italolelis/politodown/internal/telemetry"
)

// InstrumentedSession wraps a Session with telemetry.
type InstrumentedSession struct {
	session    Session
	telemetry  *telemetry.Telemetry
	clientType string
}

var _ Session = (*InstrumentedSession)(nil)

// NewInstrumentedSession creates a new instrumented session.
func NewInstrumentedSession(session Session, tel *telemetry.Telemetry, clientType string) *InstrumentedSession {
	return &InstrumentedSession{
		session:    session,
		telemetry:  tel,
		clientType: clientType,
	}
}

// Authenticate authenticates with the remote service with telemetry.
func (s *InstrumentedSession) Authenticate(ctx context.Context) error {
	return s.telemetry.InstrumentClientOperation(ctx, s.clientType, "authenticate", func(ctx context.Context) error {
		return s.session.Authenticate(ctx)
	})
}

// Materials lists the materials of an academic year with telemetry.
func (s *InstrumentedSession) Materials(ctx context.Context, year string) (map[string]*Node, error) {
	return instrumented(ctx, s, "materials", func(ctx context.Context) (map[string]*Node, error) {
		return s.session.Materials(ctx, year)
	})
}

// Assignments lists the assignments of a material with telemetry.
func (s *InstrumentedSession) Assignments(ctx context.Context, material *Node) (map[string]*Node, error) {
	return instrumented(ctx, s, "assignments", func(ctx context.Context) (map[string]*Node, error) {
		return s.session.Assignments(ctx, material)
	})
}

// VideoStores lists video collections and their stores with telemetry.
func (s *InstrumentedSession) VideoStores(ctx context.Context, year string) (map[string]map[string]*Node, error) {
	return instrumented(ctx, s, "video_stores", func(ctx context.Context) (map[string]map[string]*Node, error) {
		return s.session.VideoStores(ctx, year)
	})
}

// Children lists the children of a node with telemetry.
func (s *InstrumentedSession) Children(ctx context.Context, node *Node) ([]*File, error) {
	return instrumented(ctx, s, "children", func(ctx context.Context) ([]*File, error) {
		return s.session.Children(ctx, node)
	})
}

// NamedChildren lists the children of a named node with telemetry.
func (s *InstrumentedSession) NamedChildren(ctx context.Context, node *Node) (map[string]*File, error) {
	return instrumented(ctx, s, "named_children", func(ctx context.Context) (map[string]*File, error) {
		return s.session.NamedChildren(ctx, node)
	})
}

// Save saves a file with telemetry. Written bytes are counted as they arrive.
func (s *InstrumentedSession) Save(ctx context.Context, f *File, dir string, naming NamingStrategy, onChunk func(Chunk)) error {
	return s.telemetry.InstrumentClientOperation(ctx, s.clientType, "save", func(ctx context.Context) error {
		return s.session.Save(ctx, f, dir, naming, func(c Chunk) {
			if !c.IsSkipped() {
				s.telemetry.RecordBytes(c.Bytes)
			}

			if onChunk != nil {
				onChunk(c)
			}
		})
	})
}

func instrumented[T any](ctx context.Context, s *InstrumentedSession, operation string, fn func(context.Context) (T, error)) (T, error) {
	var result T

	err := s.telemetry.InstrumentClientOperation(ctx, s.clientType, operation, func(ctx context.Context) error {
		var err error

		result, err = fn(ctx)

		return err
	})
	if err != nil {
		var zero T

		return zero, err
	}

	return result, nil
}

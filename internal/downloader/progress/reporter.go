package progress

import (
	"sync"
	"sync/atomic"
)

// State is a point-in-time view of a download run.
type State struct {
	ItemsTotal int    `json:"items_total"`
	ItemsDone  int    `json:"items_done"`
	BytesTotal int64  `json:"bytes_total"`
	BytesDone  int64  `json:"bytes_done"`
	Label      string `json:"label,omitempty"`
	Current    string `json:"current,omitempty"`
}

// Reporter observes a run at two levels: items of the batch and bytes of the current item.
// Implementations never influence control flow and must be cheap to call once per chunk.
type Reporter interface {
	BeginOuter(total int)
	AdvanceOuter()
	SetLabel(label string)
	BeginInner(name string, total int64)
	SetInnerTotal(total int64)
	AdvanceInner(n int64)
	EndInner()
	Snapshot() State
}

// Tracker is a Reporter that only keeps counters. It is safe for concurrent
// readers while one writer drives it.
type Tracker struct {
	base string

	itemsTotal atomic.Int64
	itemsDone  atomic.Int64
	bytesTotal atomic.Int64
	bytesDone  atomic.Int64

	mu      sync.Mutex
	label   string
	current string
}

// NewTracker returns a tracker for a run over the node called base.
// Labels equal to base are not shown.
func NewTracker(base string) *Tracker {
	return &Tracker{base: base}
}

func (t *Tracker) BeginOuter(total int) {
	t.itemsTotal.Store(int64(total))
	t.itemsDone.Store(0)
}

// AdvanceOuter counts one more item, never beyond the announced total.
func (t *Tracker) AdvanceOuter() {
	for {
		done := t.itemsDone.Load()
		if done >= t.itemsTotal.Load() {
			return
		}

		if t.itemsDone.CompareAndSwap(done, done+1) {
			return
		}
	}
}

func (t *Tracker) SetLabel(label string) {
	if label == t.base {
		return
	}

	t.mu.Lock()
	t.label = label
	t.mu.Unlock()
}

func (t *Tracker) BeginInner(name string, total int64) {
	t.bytesTotal.Store(total)
	t.bytesDone.Store(0)

	t.mu.Lock()
	t.current = name
	t.mu.Unlock()
}

func (t *Tracker) SetInnerTotal(total int64) {
	t.bytesTotal.Store(total)
}

func (t *Tracker) AdvanceInner(n int64) {
	t.bytesDone.Add(n)
}

func (t *Tracker) EndInner() {
	t.mu.Lock()
	t.current = ""
	t.mu.Unlock()
}

func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	label, current := t.label, t.current
	t.mu.Unlock()

	return State{
		ItemsTotal: int(t.itemsTotal.Load()),
		ItemsDone:  int(t.itemsDone.Load()),
		BytesTotal: t.bytesTotal.Load(),
		BytesDone:  t.bytesDone.Load(),
		Label:      label,
		Current:    current,
	}
}

var _ Reporter = (*Tracker)(nil)

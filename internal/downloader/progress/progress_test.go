package progress

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_OuterNeverExceedsTotal(t *testing.T) {
	tr := NewTracker("Assignment-A")
	tr.BeginOuter(2)

	for range 5 {
		tr.AdvanceOuter()
	}

	s := tr.Snapshot()
	assert.Equal(t, 2, s.ItemsTotal)
	assert.Equal(t, 2, s.ItemsDone)
}

func TestTracker_ConcurrentAdvance(t *testing.T) {
	tr := NewTracker("root")
	tr.BeginOuter(100)

	var wg sync.WaitGroup

	for range 150 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			tr.AdvanceOuter()
			_ = tr.Snapshot()
		}()
	}

	wg.Wait()

	assert.Equal(t, 100, tr.Snapshot().ItemsDone)
}

func TestTracker_LabelIgnoresBaseName(t *testing.T) {
	tr := NewTracker("Assignment-A")

	tr.SetLabel("Assignment-A")
	assert.Empty(t, tr.Snapshot().Label)

	tr.SetLabel("Week 1")
	assert.Equal(t, "Week 1", tr.Snapshot().Label)

	tr.SetLabel("Assignment-A")
	assert.Equal(t, "Week 1", tr.Snapshot().Label, "base name must not overwrite the visible label")
}

func TestTracker_Inner(t *testing.T) {
	tr := NewTracker("root")

	tr.BeginInner("a.pdf", 0)
	tr.SetInnerTotal(100)
	tr.AdvanceInner(40)
	tr.AdvanceInner(60)

	s := tr.Snapshot()
	assert.Equal(t, "a.pdf", s.Current)
	assert.Equal(t, int64(100), s.BytesTotal)
	assert.Equal(t, int64(100), s.BytesDone)

	tr.EndInner()
	assert.Empty(t, tr.Snapshot().Current)

	tr.BeginInner("b.pdf", 0)
	assert.Zero(t, tr.Snapshot().BytesDone, "a new file restarts the byte meter")
}

func TestBar_Render(t *testing.T) {
	var buf bytes.Buffer

	bar := NewBar(&buf, "Assignment-A", time.Hour)
	bar.BeginOuter(2)
	bar.SetLabel("Week 1")
	bar.BeginInner("slides.pdf", 0)
	bar.SetInnerTotal(2048)
	bar.AdvanceInner(1024)
	bar.EndInner()
	bar.AdvanceOuter()

	out := buf.String()
	assert.Contains(t, out, "Assignment-A")
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "slides.pdf")
	assert.Contains(t, out, "[Week 1]")
}

func TestBar_ThrottlesByteUpdates(t *testing.T) {
	var buf bytes.Buffer

	now := time.Unix(0, 0)
	bar := NewBar(&buf, "root", time.Second)
	bar.now = func() time.Time { return now }

	bar.BeginOuter(1)
	bar.BeginInner("big.mp4", 1<<30)

	before := strings.Count(buf.String(), "big.mp4")

	for range 1000 {
		bar.AdvanceInner(1024)
	}

	assert.Equal(t, before, strings.Count(buf.String(), "big.mp4"), "byte updates inside the interval must not redraw")

	now = now.Add(2 * time.Second)
	bar.AdvanceInner(1024)

	assert.Equal(t, before+1, strings.Count(buf.String(), "big.mp4"))
	assert.Equal(t, int64(1001*1024), bar.Snapshot().BytesDone)
}

func TestGauge(t *testing.T) {
	assert.Equal(t, "["+strings.Repeat(" ", gaugeWidth)+"]", gauge(10, 0))
	assert.Equal(t, "["+strings.Repeat("=", gaugeWidth)+"]", gauge(10, 10))
	assert.Equal(t, "["+strings.Repeat("=", gaugeWidth)+"]", gauge(20, 10))
	assert.Equal(t, "[>"+strings.Repeat(" ", gaugeWidth-1)+"]", gauge(0, 10))
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "short.pdf", shorten("short.pdf"))

	long := strings.Repeat("x", 40) + ".pdf"
	got := shorten(long)
	assert.Len(t, []rune(got), maxNameWidth)
	assert.True(t, strings.HasSuffix(got, ".pdf"))
}

func TestProgressReader(t *testing.T) {
	var chunks []int64

	pr := NewReader(strings.NewReader(strings.Repeat("a", 10_000)), func(n int64) {
		chunks = append(chunks, n)
	})

	n, err := io.CopyBuffer(struct{ io.Writer }{io.Discard}, pr, make([]byte, 4096))
	require.NoError(t, err)

	assert.Equal(t, int64(10_000), n)
	assert.Equal(t, []int64{4096, 4096, 1808}, chunks)
}

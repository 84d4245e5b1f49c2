package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const (
	gaugeWidth      = 30
	maxNameWidth    = 25
	defaultInterval = 200 * time.Millisecond
)

var _ Reporter = (*Bar)(nil)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gaugeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("37"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)

// Bar draws the two progress meters on a terminal. Counter updates are
// atomic; redraws triggered by byte updates are throttled to one per interval.
type Bar struct {
	*Tracker

	out      io.Writer
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastDraw time.Time
	lines    int
}

// NewBar returns a Bar writing to out for a run over the node called base.
func NewBar(out io.Writer, base string, interval time.Duration) *Bar {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Bar{
		Tracker:  NewTracker(base),
		out:      out,
		interval: interval,
		now:      time.Now,
	}
}

func (b *Bar) BeginOuter(total int) {
	b.Tracker.BeginOuter(total)
	b.draw(true)
}

func (b *Bar) AdvanceOuter() {
	b.Tracker.AdvanceOuter()
	b.draw(true)
}

func (b *Bar) SetLabel(label string) {
	b.Tracker.SetLabel(label)
	b.draw(false)
}

func (b *Bar) BeginInner(name string, total int64) {
	b.Tracker.BeginInner(name, total)
	b.draw(true)
}

func (b *Bar) AdvanceInner(n int64) {
	b.Tracker.AdvanceInner(n)
	b.draw(false)
}

func (b *Bar) EndInner() {
	b.Tracker.EndInner()
	b.draw(true)
}

func (b *Bar) draw(force bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if !force && now.Sub(b.lastDraw) < b.interval {
		return
	}

	b.lastDraw = now
	s := b.Snapshot()

	if b.lines > 0 {
		fmt.Fprintf(b.out, "\033[%dA\033[J", b.lines)
	}

	outer := fmt.Sprintf("%s %s %d/%d",
		headerStyle.Render(b.Tracker.base),
		gaugeStyle.Render(gauge(int64(s.ItemsDone), int64(s.ItemsTotal))),
		s.ItemsDone, s.ItemsTotal,
	)
	if s.Label != "" {
		outer += " " + labelStyle.Render("["+s.Label+"]")
	}

	fmt.Fprintln(b.out, outer)
	b.lines = 1

	if s.Current == "" {
		return
	}

	size := humanize.Bytes(uint64(s.BytesDone))
	if s.BytesTotal > 0 {
		size += "/" + humanize.Bytes(uint64(s.BytesTotal))
	}

	fmt.Fprintf(b.out, "  %s %s %s\n",
		detailStyle.Render(shorten(s.Current)),
		gaugeStyle.Render(gauge(s.BytesDone, s.BytesTotal)),
		size,
	)
	b.lines = 2
}

func gauge(done, total int64) string {
	if total <= 0 {
		return "[" + strings.Repeat(" ", gaugeWidth) + "]"
	}

	filled := int(float64(done) / float64(total) * gaugeWidth)
	filled = max(0, min(filled, gaugeWidth))

	bar := strings.Repeat("=", filled)
	if filled < gaugeWidth {
		bar += ">" + strings.Repeat(" ", gaugeWidth-filled-1)
	}

	return "[" + bar + "]"
}

func shorten(name string) string {
	r := []rune(name)
	if len(r) <= maxNameWidth {
		return name
	}

	return "..." + string(r[len(r)-maxNameWidth+3:])
}

// Discard is a Reporter that keeps counters and draws nothing.
func Discard(base string) Reporter {
	return NewTracker(base)
}

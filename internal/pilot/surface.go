package pilot

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/verte-zerg/neolog/internal/experiment"
)

// ErrScriptExhausted is returned by Present when the script ran out of keys
// and the session did not finish within the grace period.
var ErrScriptExhausted = errors.New("pilot script exhausted before the session ended")

// Replay timing.
const (
	FrameInterval  = 16 * time.Millisecond
	ExhaustedGrace = 10 * time.Second
)

// VirtualClock is a manually advanced clock.
type VirtualClock struct {
	now time.Time
}

// NewVirtualClock returns a clock stopped at start.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

// Now implements experiment.Clock.
func (c *VirtualClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d.
func (c *VirtualClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// ScriptSurface is an experiment.Surface that plays back scripted keys.
// Every Present advances the clock by one frame; keys are delivered with
// their scripted timestamps once the clock has reached them.
type ScriptSurface struct {
	clock *VirtualClock
	steps []Step
	next  int
	due   time.Time
	start time.Time

	trace     io.Writer
	lastTrace experiment.Frame
	frames    int
	closed    bool
}

// NewScriptSurface returns a surface replaying steps on clock. A non-nil
// trace receives one line per screen change and per delivered key.
func NewScriptSurface(clock *VirtualClock, steps []Step, trace io.Writer) *ScriptSurface {
	s := &ScriptSurface{
		clock: clock,
		steps: steps,
		start: clock.Now(),
		trace: trace,
	}
	s.due = s.start
	if len(steps) > 0 {
		s.due = s.start.Add(steps[0].Delay)
	}
	return s
}

// Frames returns how many frames were rendered.
func (s *ScriptSurface) Frames() int {
	return s.frames
}

// Remaining returns the number of undelivered steps.
func (s *ScriptSurface) Remaining() int {
	return len(s.steps) - s.next
}

// Render implements experiment.Surface.
func (s *ScriptSurface) Render(f experiment.Frame) {
	s.frames++
	if s.trace == nil {
		return
	}
	// Blink phases are not screen changes.
	cmp := f
	cmp.CaretVisible = false
	cmp.ContinueBright = false
	if s.frames > 1 && cmp == s.lastTrace {
		return
	}
	s.lastTrace = cmp
	s.tracef("%s", describe(f))
}

// Present implements experiment.Surface.
func (s *ScriptSurface) Present() error {
	if s.closed {
		return errors.New("surface is closed")
	}
	s.clock.Advance(FrameInterval)
	if s.Remaining() == 0 && s.clock.Now().Sub(s.due) > ExhaustedGrace {
		return ErrScriptExhausted
	}
	return nil
}

// PollInputEvents implements experiment.Surface.
func (s *ScriptSurface) PollInputEvents() []experiment.KeyEvent {
	var events []experiment.KeyEvent
	now := s.clock.Now()
	for s.next < len(s.steps) && !s.due.After(now) {
		step := s.steps[s.next]
		events = append(events, experiment.KeyEvent{Key: step.Key, At: s.due})
		s.tracef("key %s", step.Key)
		s.next++
		if s.next < len(s.steps) {
			s.due = s.due.Add(s.steps[s.next].Delay)
		}
	}
	return events
}

// Close implements experiment.Surface.
func (s *ScriptSurface) Close() error {
	s.closed = true
	return nil
}

func (s *ScriptSurface) tracef(format string, args ...any) {
	if s.trace == nil {
		return
	}
	elapsed := s.clock.Now().Sub(s.start).Seconds()
	if _, err := fmt.Fprintf(s.trace, "%8.3fs "+format+"\n", append([]any{elapsed}, args...)...); err != nil {
		// Best-effort trace output.
		_ = err
	}
}

func describe(f experiment.Frame) string {
	switch f.Kind {
	case experiment.FrameText:
		return fmt.Sprintf("text %q", firstLine(f.Text, 48))
	case experiment.FrameTyping:
		return fmt.Sprintf("typing %q typed=%q", f.Target, f.Typed)
	default:
		return "blank"
	}
}

func firstLine(text string, limit int) string {
	line, _, cut := strings.Cut(strings.TrimSpace(text), "\n")
	runes := []rune(line)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	if cut {
		return line + "..."
	}
	return line
}

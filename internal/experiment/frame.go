package experiment

import (
	"context"
	"time"

	"github.com/verte-zerg/neolog/internal/model"
)

// FrameKind selects how a frame is drawn.
type FrameKind int

// Frame kinds.
const (
	FrameBlank FrameKind = iota
	FrameText
	FrameTyping
)

// Frame is everything a display surface needs to draw one screen.
type Frame struct {
	Kind FrameKind

	// Text frames: instructions, definitions and the thank-you message.
	Text           string
	Continue       string
	ContinueBright bool

	// Typing frames.
	Target       string
	Typed        string
	CaretVisible bool
}

// KeyEvent is one keypress with the time it was observed.
type KeyEvent struct {
	Key string
	At  time.Time
}

// Surface renders frames and delivers queued keypresses.
type Surface interface {
	Render(Frame)
	// Present flips the rendered frame to the screen and waits for the next one.
	Present() error
	PollInputEvents() []KeyEvent
	Close() error
}

// Clock reads the time used for timers and blinking.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sink persists session log snapshots.
type Sink interface {
	WriteLog(ctx context.Context, rec model.Record) error
}

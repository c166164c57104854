// Package keylog turns keystrokes into typed-buffer updates and log records.
package keylog

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/verte-zerg/neolog/internal/model"
)

// Symbolic key tokens.
const (
	KeyBackspace = "backspace"
	KeyReturn    = "return"
	KeyNumEnter  = "num_enter"
	KeyEscape    = "escape"
	KeySpace     = "space"
)

// IsSubmit reports whether key terminates an attempt.
func IsSubmit(key string) bool {
	return key == KeyReturn || key == KeyNumEnter
}

// Context carries everything about the current attempt that does not change
// between keystrokes.
type Context struct {
	Target      string
	Trial       model.Trial
	Attempt     int
	Participant model.ParticipantInfo
}

// State is the typed buffer of a running attempt.
// Cursor counts runes and always equals the rune length of Typed.
type State struct {
	Typed       string
	Cursor      int
	LastEventAt time.Time
}

// Log is the append-only keystroke log of a session.
// It has a single writer and is not safe for concurrent use.
type Log struct {
	events []model.InputEvent
}

// Append adds one event.
func (l *Log) Append(e model.InputEvent) {
	l.events = append(l.events, e)
}

// Len returns the number of logged events.
func (l *Log) Len() int {
	return len(l.events)
}

// Events returns a copy of the logged events.
func (l *Log) Events() []model.InputEvent {
	out := make([]model.InputEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Processor applies keystrokes and records accepted ones.
type Processor struct {
	log *Log
}

// NewProcessor returns a Processor writing to log.
func NewProcessor(log *Log) *Processor {
	return &Processor{log: log}
}

// ProcessKey applies one keystroke to st and returns the new state.
// Backspace and single printable characters are accepted and logged;
// every other key leaves the state untouched and logs nothing.
func (p *Processor) ProcessKey(key string, at time.Time, st State, ctx *Context) State {
	interval := at.Sub(st.LastEventAt).Seconds()

	if key == KeyBackspace {
		if st.Typed == "" || st.Cursor <= 0 {
			return st
		}
		p.record(key, true, interval, st.Typed, ctx)
		_, size := utf8.DecodeLastRuneInString(st.Typed)
		return State{
			Typed:       st.Typed[:len(st.Typed)-size],
			Cursor:      st.Cursor - 1,
			LastEventAt: at,
		}
	}

	r, ok := printableRune(key)
	if !ok {
		return st
	}
	correct := matchesAt(ctx.Target, st.Cursor, r)
	p.record(key, correct, interval, st.Typed, ctx)
	return State{
		Typed:       st.Typed + key,
		Cursor:      st.Cursor + 1,
		LastEventAt: at,
	}
}

func (p *Processor) record(key string, correct bool, interval float64, typed string, ctx *Context) {
	p.log.Append(model.InputEvent{
		Trial:              ctx.Trial.Number,
		Attempt:            ctx.Attempt,
		Word:               ctx.Target,
		DefinitionPosition: ctx.Trial.Position,
		Input:              typed,
		Char:               key,
		Correct:            correct,
		Interval:           interval,
		Class:              ctx.Trial.Class,
		Newness:            ctx.Trial.Newness,
		Name:               ctx.Participant.Name,
		Language:           ctx.Participant.Language,
		Age:                ctx.Participant.Age,
	})
}

func printableRune(key string) (rune, bool) {
	if utf8.RuneCountInString(key) != 1 {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError || !unicode.IsPrint(r) {
		return 0, false
	}
	return r, true
}

func matchesAt(target string, pos int, r rune) bool {
	if pos < 0 {
		return false
	}
	i := 0
	for _, expected := range target {
		if i == pos {
			return strings.EqualFold(string(expected), string(r))
		}
		i++
	}
	return false
}

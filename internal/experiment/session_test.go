package experiment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/neolog/internal/keylog"
	"github.com/verte-zerg/neolog/internal/model"
)

var epoch = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type recordingSink struct {
	records []model.Record
	err     error
}

func (r *recordingSink) WriteLog(_ context.Context, rec model.Record) error {
	r.records = append(r.records, rec)
	return r.err
}

func (r *recordingSink) statuses() []model.Status {
	out := make([]model.Status, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Status
	}
	return out
}

func (r *recordingSink) last() model.Record {
	return r.records[len(r.records)-1]
}

func makeTrials(positions ...model.DefinitionPosition) []model.Trial {
	trials := make([]model.Trial, len(positions))
	for i, pos := range positions {
		trials[i] = model.Trial{
			Number:     i + 1,
			Word:       fmt.Sprintf("glorp%d", i+1),
			Definition: fmt.Sprintf("meaning %d", i+1),
			Class:      "noun",
			Newness:    "3",
			Position:   pos,
		}
	}
	return trials
}

type driver struct {
	t    *testing.T
	s    *Session
	sink *recordingSink
	now  time.Time
}

func newDriver(t *testing.T, cfg model.Config, instructions []string, trials []model.Trial) *driver {
	t.Helper()
	sink := &recordingSink{}
	s := New(Options{
		Config:        cfg,
		Instructions:  instructions,
		ThankYou:      "Danke!",
		ContinueLabel: "Leertaste",
		Trials:        trials,
		Participant:   model.ParticipantInfo{Name: "p01", Age: "29", Language: "de", SessionDate: "2026-10-19"},
		SessionID:     "session-1",
		Sink:          sink,
		Now:           func() time.Time { return epoch },
	})
	d := &driver{t: t, s: s, sink: sink, now: epoch}
	s.Start(d.now)
	return d
}

func (d *driver) press(keys ...string) {
	for _, key := range keys {
		d.now = d.now.Add(100 * time.Millisecond)
		d.s.HandleKey(KeyEvent{Key: key, At: d.now})
	}
}

func (d *driver) wait(dur time.Duration) {
	d.now = d.now.Add(dur)
	d.s.Tick(d.now)
}

func (d *driver) typeWord(word string) {
	for _, r := range word {
		d.press(string(r))
	}
	d.press(keylog.KeyReturn)
}

func (d *driver) skipInstructions() {
	for d.s.State() == StateInstructions {
		d.press(keylog.KeySpace)
	}
}

// runTrial finishes the current trial with correctly typed attempts.
func (d *driver) runTrial(cfg model.Config) {
	d.t.Helper()
	if d.s.Stage() == StagePreDefinition {
		d.wait(cfg.DefinitionDuration)
	}
	require.Equal(d.t, StageAttempting, d.s.Stage())
	word := d.s.trials[d.s.TrialIndex()].Word
	for i := 0; i < cfg.MaxAttempts; i++ {
		d.typeWord(word)
	}
	if d.s.Stage() == StagePostDefinition {
		d.wait(cfg.DefinitionDuration)
	}
}

func TestInstructionsAdvanceWithSpace(t *testing.T) {
	cfg := model.DefaultConfig()
	d := newDriver(t, cfg, []string{"one", "two"}, makeTrials(model.PositionAfter))

	assert.Equal(t, StateInstructions, d.s.State())
	assert.Equal(t, "one", d.s.Frame(d.now).Text)
	d.press("x", keylog.KeyReturn)
	assert.Equal(t, "one", d.s.Frame(d.now).Text)
	d.press(keylog.KeySpace)
	assert.Equal(t, "two", d.s.Frame(d.now).Text)
	d.press(keylog.KeySpace)
	assert.Equal(t, StateTrials, d.s.State())
	assert.Equal(t, StageAttempting, d.s.Stage())
	assert.Equal(t, 1, d.s.Attempt())
}

func TestEscapeDuringInstructionsAborts(t *testing.T) {
	d := newDriver(t, model.DefaultConfig(), []string{"one", "two"}, makeTrials(model.PositionAfter))
	d.press(keylog.KeySpace, keylog.KeyEscape)

	assert.True(t, d.s.Done())
	assert.Equal(t, StateAborted, d.s.State())
	assert.Equal(t, model.StatusAborted, d.s.Status())
	require.Len(t, d.sink.records, 1)
	assert.Equal(t, model.StatusAborted, d.sink.last().Status)
	assert.Empty(t, d.sink.last().Events)
}

func TestFullSessionCompletes(t *testing.T) {
	cfg := model.DefaultConfig()
	trials := makeTrials(model.PositionBefore, model.PositionAfter)
	d := newDriver(t, cfg, []string{"intro"}, trials)
	d.skipInstructions()

	require.Equal(t, StagePreDefinition, d.s.Stage())
	frame := d.s.Frame(d.now)
	assert.Equal(t, FrameText, frame.Kind)
	assert.Equal(t, "meaning 1", frame.Text)
	assert.Empty(t, frame.Continue)

	d.press("g", "l")
	assert.Zero(t, len(d.s.Events()), "keys during a definition must not be logged")
	d.wait(cfg.DefinitionDuration / 2)
	assert.Equal(t, StagePreDefinition, d.s.Stage())
	d.wait(cfg.DefinitionDuration)
	require.Equal(t, StageAttempting, d.s.Stage())

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		assert.Equal(t, attempt, d.s.Attempt())
		d.typeWord("glorp1")
	}
	assert.Equal(t, 1, d.s.TrialsCompleted())
	assert.Equal(t, []model.Status{model.StatusIntermediate}, d.sink.statuses())

	require.Equal(t, 1, d.s.TrialIndex())
	require.Equal(t, StageAttempting, d.s.Stage())
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		d.typeWord("glorp2")
	}
	require.Equal(t, StagePostDefinition, d.s.Stage())
	assert.Equal(t, "meaning 2", d.s.Frame(d.now).Text)
	d.wait(cfg.DefinitionDuration)

	assert.Equal(t, StateCompleted, d.s.State())
	assert.False(t, d.s.Done())
	assert.Equal(t, "Danke!", d.s.Frame(d.now).Text)
	assert.Equal(t, []model.Status{model.StatusIntermediate, model.StatusFinal}, d.sink.statuses())

	final := d.sink.last()
	assert.Equal(t, "session-1", final.SessionID)
	assert.Equal(t, 2, final.TrialsCompleted)
	assert.Equal(t, 2, final.TrialsTotal)
	assert.Len(t, final.Events, 2*cfg.MaxAttempts*len("glorpN"))
	for _, e := range final.Events {
		assert.True(t, e.Correct)
	}

	d.press(keylog.KeySpace)
	assert.True(t, d.s.Done())
	assert.Len(t, d.sink.records, 2)
}

func TestSubmitIsNotLogged(t *testing.T) {
	d := newDriver(t, model.DefaultConfig(), nil, makeTrials(model.PositionAfter))
	d.press("g", keylog.KeyReturn, keylog.KeyNumEnter)

	events := d.s.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "g", events[0].Char)
	assert.Equal(t, 3, d.s.Attempt())
}

func TestAttemptStartsWithEmptyBuffer(t *testing.T) {
	d := newDriver(t, model.DefaultConfig(), nil, makeTrials(model.PositionAfter))
	d.press("g", "x")
	assert.Equal(t, "gx", d.s.Input().Typed)
	d.press(keylog.KeyReturn)
	assert.Equal(t, "", d.s.Input().Typed)
	assert.Equal(t, 0, d.s.Input().Cursor)

	d.now = d.now.Add(2 * time.Second)
	d.s.HandleKey(KeyEvent{Key: "g", At: d.now})
	events := d.s.Events()
	assert.InDelta(t, 2.0, events[len(events)-1].Interval, 1e-9)
	assert.Equal(t, 2, events[len(events)-1].Attempt)
}

func TestEscapeMidAttemptAbortsSession(t *testing.T) {
	cfg := model.DefaultConfig()
	positions := make([]model.DefinitionPosition, 10)
	for i := range positions {
		positions[i] = model.PositionAfter
	}
	d := newDriver(t, cfg, []string{"intro"}, makeTrials(positions...))
	d.skipInstructions()
	d.runTrial(cfg)

	require.Equal(t, 1, d.s.TrialIndex())
	d.typeWord("glorp2")
	d.press("g", "l")
	d.press(keylog.KeyEscape)

	assert.True(t, d.s.Done())
	assert.Equal(t, AttemptAborted, d.s.AttemptState())
	assert.Equal(t, model.StatusAborted, d.sink.last().Status)

	trialsSeen := map[int]bool{}
	for _, e := range d.sink.last().Events {
		trialsSeen[e.Trial] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true}, trialsSeen)

	d.press("x", keylog.KeySpace)
	assert.Equal(t, len(d.sink.last().Events), len(d.s.Events()))
}

func TestEscapeDuringDefinitionAborts(t *testing.T) {
	d := newDriver(t, model.DefaultConfig(), nil, makeTrials(model.PositionBefore))
	require.Equal(t, StagePreDefinition, d.s.Stage())
	d.press(keylog.KeyEscape)
	assert.Equal(t, StateAborted, d.s.State())
	assert.Equal(t, model.StatusAborted, d.s.Status())
}

func TestKeyAfterDefinitionDeadlineStartsTyping(t *testing.T) {
	cfg := model.DefaultConfig()
	d := newDriver(t, cfg, nil, makeTrials(model.PositionBefore))
	d.now = d.now.Add(cfg.DefinitionDuration + time.Second)
	d.s.HandleKey(KeyEvent{Key: "g", At: d.now})

	events := d.s.Events()
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Attempt)
}

func TestAttemptNumbersNeverExceedMax(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.MaxAttempts = 3
	d := newDriver(t, cfg, nil, makeTrials(model.PositionAfter, model.PositionBefore, model.PositionAfter))
	for d.s.State() == StateTrials {
		d.runTrial(cfg)
	}
	require.Equal(t, StateCompleted, d.s.State())

	attempts := map[int]map[int]bool{}
	for _, e := range d.s.Events() {
		if attempts[e.Trial] == nil {
			attempts[e.Trial] = map[int]bool{}
		}
		attempts[e.Trial][e.Attempt] = true
		assert.GreaterOrEqual(t, e.Attempt, 1)
		assert.LessOrEqual(t, e.Attempt, cfg.MaxAttempts)
	}
	require.Len(t, attempts, 3)
	for trial, seen := range attempts {
		assert.Len(t, seen, cfg.MaxAttempts, "trial %d", trial)
	}
}

func TestCheckpointDisabled(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Checkpoint = false
	d := newDriver(t, cfg, nil, makeTrials(model.PositionAfter, model.PositionAfter))
	d.runTrial(cfg)
	d.runTrial(cfg)
	assert.Equal(t, []model.Status{model.StatusFinal}, d.sink.statuses())
}

func TestNoTrialsCompletesImmediately(t *testing.T) {
	d := newDriver(t, model.DefaultConfig(), []string{"intro"}, nil)
	d.press(keylog.KeySpace)
	assert.Equal(t, StateCompleted, d.s.State())
	assert.Equal(t, model.StatusFinal, d.s.Status())
}

func TestFailDuringTrialsSavesAborted(t *testing.T) {
	d := newDriver(t, model.DefaultConfig(), nil, makeTrials(model.PositionAfter))
	d.press("g", "l")
	boom := errors.New("display lost")
	d.s.Fail(boom)

	assert.True(t, d.s.Done())
	assert.ErrorIs(t, d.s.Err(), boom)
	assert.Equal(t, model.StatusAborted, d.sink.last().Status)
	assert.Len(t, d.sink.last().Events, 2)

	d.s.Fail(errors.New("second failure"))
	assert.Len(t, d.sink.records, 1)
	assert.ErrorIs(t, d.s.Err(), boom)
}

func TestFailAfterCompletionKeepsFinal(t *testing.T) {
	cfg := model.DefaultConfig()
	d := newDriver(t, cfg, nil, makeTrials(model.PositionAfter))
	d.runTrial(cfg)
	require.Equal(t, StateCompleted, d.s.State())

	d.s.Fail(errors.New("late failure"))
	assert.True(t, d.s.Done())
	assert.NoError(t, d.s.Err())
	assert.Equal(t, model.StatusFinal, d.s.Status())
	assert.Equal(t, []model.Status{model.StatusFinal}, d.sink.statuses())
}

func TestSinkErrorIsNotFatal(t *testing.T) {
	d := newDriver(t, model.DefaultConfig(), nil, makeTrials(model.PositionAfter))
	d.sink.err = errors.New("disk full")
	d.press("g", keylog.KeyEscape)

	assert.True(t, d.s.Done())
	assert.Equal(t, model.StatusAborted, d.s.Status())
	assert.NoError(t, d.s.Err())
}

func TestHandleKeyBeforeStartIsIgnored(t *testing.T) {
	s := New(Options{Config: model.DefaultConfig(), Trials: makeTrials(model.PositionAfter)})
	s.HandleKey(KeyEvent{Key: keylog.KeyEscape, At: epoch})
	assert.Equal(t, StateIdle, s.State())
	assert.NotEmpty(t, s.ID())
}

func TestTypingFrameCaretBlinks(t *testing.T) {
	cfg := model.DefaultConfig()
	d := newDriver(t, cfg, nil, makeTrials(model.PositionAfter))
	start := d.now
	d.press("g")

	frame := d.s.Frame(start)
	assert.Equal(t, FrameTyping, frame.Kind)
	assert.Equal(t, "glorp1", frame.Target)
	assert.Equal(t, "g", frame.Typed)
	assert.False(t, frame.CaretVisible)
	assert.True(t, d.s.Frame(start.Add(cfg.BlinkInterval)).CaretVisible)
	assert.False(t, d.s.Frame(start.Add(2*cfg.BlinkInterval)).CaretVisible)
}

func TestInstructionContinueBlinks(t *testing.T) {
	cfg := model.DefaultConfig()
	d := newDriver(t, cfg, []string{"intro"}, makeTrials(model.PositionAfter))

	frame := d.s.Frame(d.now)
	assert.Equal(t, "Leertaste", frame.Continue)
	assert.True(t, frame.ContinueBright)
	assert.False(t, d.s.Frame(d.now.Add(cfg.BlinkInterval)).ContinueBright)
}

func TestAbortOnThankYouDismisses(t *testing.T) {
	cfg := model.DefaultConfig()
	d := newDriver(t, cfg, nil, makeTrials(model.PositionAfter))
	d.runTrial(cfg)
	d.s.Abort()
	assert.True(t, d.s.Done())
	assert.Equal(t, model.StatusFinal, d.s.Status())
	assert.Equal(t, FrameBlank, d.s.Frame(d.now).Kind)
}

// Package experiment sequences instructions, trials and typing attempts.
package experiment

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/neolog/internal/keylog"
	"github.com/verte-zerg/neolog/internal/logging"
	"github.com/verte-zerg/neolog/internal/model"
)

// State is the session-level state.
type State int

// Session states.
const (
	StateIdle State = iota
	StateInstructions
	StateTrials
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInstructions:
		return "instructions"
	case StateTrials:
		return "trials"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Stage is the position inside the current trial.
type Stage int

// Trial stages.
const (
	StageNone Stage = iota
	StagePreDefinition
	StageAttempting
	StagePostDefinition
)

// AttemptState is the state of the current typing attempt.
type AttemptState int

// Attempt states.
const (
	AttemptNone AttemptState = iota
	AttemptTyping
	AttemptSubmitted
	AttemptAborted
)

// Options configures a Session.
type Options struct {
	Config        model.Config
	Instructions  []string
	ThankYou      string
	ContinueLabel string
	Trials        []model.Trial
	Participant   model.ParticipantInfo
	SessionID     string
	Sink          Sink
	Logger        *slog.Logger
	// Now reads the wall clock for persisted timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Session runs one participant through instructions, trials and the
// closing screen. It is driven by HandleKey and Tick and is not safe for
// concurrent use.
type Session struct {
	cfg           model.Config
	instructions  []string
	thankYou      string
	continueLabel string
	trials        []model.Trial
	participant   model.ParticipantInfo
	id            string
	sink          Sink
	logger        *slog.Logger
	now           func() time.Time

	log  *keylog.Log
	proc *keylog.Processor

	state       State
	startedAt   time.Time
	screenStart time.Time
	instrIdx    int

	trialIdx        int
	trialsCompleted int
	stage           Stage
	deadline        time.Time

	attempt      int
	attemptState AttemptState
	attemptStart time.Time
	input        keylog.State
	keyCtx       keylog.Context

	saved     bool
	status    model.Status
	dismissed bool
	err       error
}

// New builds a Session from opts.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	id := opts.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	cfg := opts.Config
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = model.DefaultMaxAttempts
	}
	log := &keylog.Log{}
	return &Session{
		cfg:           cfg,
		instructions:  opts.Instructions,
		thankYou:      opts.ThankYou,
		continueLabel: opts.ContinueLabel,
		trials:        opts.Trials,
		participant:   opts.Participant,
		id:            id,
		sink:          opts.Sink,
		logger:        logger.With("session", id),
		now:           now,
		log:           log,
		proc:          keylog.NewProcessor(log),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the session-level state.
func (s *Session) State() State { return s.state }

// Stage returns the stage of the current trial.
func (s *Session) Stage() Stage { return s.stage }

// Attempt returns the current attempt number.
func (s *Session) Attempt() int { return s.attempt }

// AttemptState returns the state of the current attempt.
func (s *Session) AttemptState() AttemptState { return s.attemptState }

// TrialIndex returns the zero-based index of the current trial.
func (s *Session) TrialIndex() int { return s.trialIdx }

// TrialsCompleted returns how many trials finished all attempts.
func (s *Session) TrialsCompleted() int { return s.trialsCompleted }

// TrialsTotal returns the number of trials in the session.
func (s *Session) TrialsTotal() int { return len(s.trials) }

// Input returns the typed buffer of the current attempt.
func (s *Session) Input() keylog.State { return s.input }

// Events returns a copy of the keystroke log.
func (s *Session) Events() []model.InputEvent { return s.log.Events() }

// Status returns the status of the last terminal save, or "" if none happened.
func (s *Session) Status() model.Status { return s.status }

// Err returns the failure passed to Fail, if any.
func (s *Session) Err() error { return s.err }

// Done reports whether the session has nothing left to show.
func (s *Session) Done() bool {
	return s.state == StateAborted || (s.state == StateCompleted && s.dismissed)
}

// Start shows the first instruction screen.
func (s *Session) Start(now time.Time) {
	if s.state != StateIdle {
		return
	}
	s.startedAt = s.now()
	s.logger.Info("starting experiment",
		"participant", s.participant.Name,
		"language", s.participant.Language,
		"trials", len(s.trials))
	s.state = StateInstructions
	s.instrIdx = 0
	s.screenStart = now
	if len(s.instructions) == 0 {
		s.beginTrials(now)
	}
}

// HandleKey applies one keypress.
func (s *Session) HandleKey(ev KeyEvent) {
	if s.state == StateIdle || s.Done() {
		return
	}
	s.Tick(ev.At)

	switch s.state {
	case StateInstructions:
		switch ev.Key {
		case keylog.KeyEscape:
			s.logger.Info("experiment aborted during instructions")
			s.abort()
		case keylog.KeySpace:
			s.nextInstruction(ev.At)
		}
	case StateTrials:
		if ev.Key == keylog.KeyEscape {
			if s.stage == StageAttempting {
				s.attemptState = AttemptAborted
			}
			s.logger.Info("experiment aborted during trials",
				"trial", s.trialIdx+1,
				"attempt", s.attempt)
			s.abort()
			return
		}
		if s.stage != StageAttempting {
			return
		}
		if keylog.IsSubmit(ev.Key) {
			s.submit(ev.At)
			return
		}
		s.input = s.proc.ProcessKey(ev.Key, ev.At, s.input, &s.keyCtx)
	case StateCompleted:
		if ev.Key == keylog.KeySpace || ev.Key == keylog.KeyEscape {
			s.dismissed = true
		}
	}
}

// Tick advances timed screens.
func (s *Session) Tick(now time.Time) {
	if s.state != StateTrials || now.Before(s.deadline) {
		return
	}
	switch s.stage {
	case StagePreDefinition:
		s.startAttempt(1, now)
	case StagePostDefinition:
		s.endTrial(now)
	}
}

// Abort ends the session as if escape had been pressed.
func (s *Session) Abort() {
	switch s.state {
	case StateAborted:
		return
	case StateCompleted:
		s.dismissed = true
		return
	}
	s.logger.Info("experiment cancelled", "state", s.state.String())
	s.abort()
}

// Fail records an unhandled failure and ends the session as aborted.
// A session that already saved its final log keeps it and records no error.
func (s *Session) Fail(err error) {
	if err == nil {
		return
	}
	if s.state == StateCompleted {
		s.logger.Warn("error after experiment completed", "error", err)
		s.dismissed = true
		return
	}
	if s.err == nil {
		s.err = err
	}
	s.logger.Error("error during experiment", "error", err)
	if s.state == StateAborted {
		return
	}
	s.abort()
}

// Frame describes what should be on screen at now.
func (s *Session) Frame(now time.Time) Frame {
	switch s.state {
	case StateInstructions:
		return s.textFrame(s.instructions[s.instrIdx], now)
	case StateCompleted:
		if s.dismissed {
			return Frame{Kind: FrameBlank}
		}
		return s.textFrame(s.thankYou, now)
	case StateTrials:
		trial := s.trials[s.trialIdx]
		if s.stage == StageAttempting {
			return Frame{
				Kind:         FrameTyping,
				Target:       trial.Word,
				Typed:        s.input.Typed,
				CaretVisible: s.blinkPhase(now.Sub(s.attemptStart))%2 == 1,
			}
		}
		return Frame{Kind: FrameText, Text: trial.Definition}
	default:
		return Frame{Kind: FrameBlank}
	}
}

func (s *Session) textFrame(text string, now time.Time) Frame {
	return Frame{
		Kind:           FrameText,
		Text:           text,
		Continue:       s.continueLabel,
		ContinueBright: s.blinkPhase(now.Sub(s.screenStart))%2 == 0,
	}
}

func (s *Session) blinkPhase(elapsed time.Duration) int64 {
	if s.cfg.BlinkInterval <= 0 || elapsed < 0 {
		return 0
	}
	return int64(elapsed / s.cfg.BlinkInterval)
}

func (s *Session) nextInstruction(now time.Time) {
	s.instrIdx++
	s.screenStart = now
	if s.instrIdx >= len(s.instructions) {
		s.instrIdx = len(s.instructions) - 1
		s.beginTrials(now)
	}
}

func (s *Session) beginTrials(now time.Time) {
	s.state = StateTrials
	s.beginTrial(0, now)
}

func (s *Session) beginTrial(idx int, now time.Time) {
	if idx >= len(s.trials) {
		s.complete(now)
		return
	}
	s.trialIdx = idx
	s.attempt = 0
	s.attemptState = AttemptNone
	if s.trials[idx].Position == model.PositionBefore {
		s.showDefinition(StagePreDefinition, now)
		return
	}
	s.startAttempt(1, now)
}

func (s *Session) showDefinition(stage Stage, now time.Time) {
	s.stage = stage
	s.deadline = now.Add(s.cfg.DefinitionDuration)
}

func (s *Session) startAttempt(n int, now time.Time) {
	trial := s.trials[s.trialIdx]
	s.stage = StageAttempting
	s.attempt = n
	s.attemptState = AttemptTyping
	s.attemptStart = now
	s.input = keylog.State{LastEventAt: now}
	s.keyCtx = keylog.Context{
		Target:      trial.Word,
		Trial:       trial,
		Attempt:     n,
		Participant: s.participant,
	}
}

func (s *Session) submit(now time.Time) {
	s.attemptState = AttemptSubmitted
	if s.attempt < s.cfg.MaxAttempts {
		s.startAttempt(s.attempt+1, now)
		return
	}
	if s.trials[s.trialIdx].Position == model.PositionAfter {
		s.showDefinition(StagePostDefinition, now)
		return
	}
	s.endTrial(now)
}

func (s *Session) endTrial(now time.Time) {
	s.trialsCompleted++
	s.stage = StageNone
	if s.cfg.Checkpoint && s.trialIdx+1 < len(s.trials) {
		s.persist(model.StatusIntermediate)
	}
	s.beginTrial(s.trialIdx+1, now)
}

func (s *Session) complete(now time.Time) {
	s.state = StateCompleted
	s.stage = StageNone
	s.screenStart = now
	s.persist(model.StatusFinal)
	s.logger.Info("experiment completed successfully", "trials", s.trialsCompleted)
}

func (s *Session) abort() {
	s.state = StateAborted
	s.persist(model.StatusAborted)
}

func (s *Session) persist(status model.Status) {
	if status.Terminal() {
		if s.saved {
			return
		}
		s.saved = true
		s.status = status
	}
	if s.sink == nil {
		return
	}
	rec := model.Record{
		SessionID:       s.id,
		Participant:     s.participant,
		Status:          status,
		StartedAt:       s.startedAt,
		SavedAt:         s.now(),
		TrialsCompleted: s.trialsCompleted,
		TrialsTotal:     len(s.trials),
		Events:          s.log.Events(),
	}
	if err := s.sink.WriteLog(context.Background(), rec); err != nil {
		s.logger.Error("error saving data", "status", string(status), "error", err)
		return
	}
	s.logger.Info("data saved", "status", string(status), "events", len(rec.Events))
}

// Package model defines shared data structures.
package model

import "time"

// DefinitionPosition controls whether a definition is shown before or after typing.
type DefinitionPosition string

// Definition positions.
const (
	PositionBefore DefinitionPosition = "before"
	PositionAfter  DefinitionPosition = "after"
)

// Status marks how a persisted log snapshot came about.
type Status string

// Persisted log statuses.
const (
	StatusFinal        Status = "final"
	StatusAborted      Status = "aborted"
	StatusIntermediate Status = "intermediate"
)

// Terminal reports whether the status ends a session.
func (s Status) Terminal() bool {
	return s == StatusFinal || s == StatusAborted
}

// Default experiment settings.
const (
	DefaultLang               = "de"
	DefaultWordCount          = "all"
	DefaultMaxAttempts        = 5
	DefaultDefinitionDuration = 3 * time.Second
	DefaultBlinkInterval      = 500 * time.Millisecond
	DefaultWidth              = 100
	DefaultHeight             = 30
)

// DefaultInstructionSections lists the instruction sections shown before the trials.
var DefaultInstructionSections = []string{
	"Welcome",
	"Task Introduction",
	"Input Instructions",
	"Definition Info",
	"Controls",
	"Exit Info",
}

// Config defines experiment settings.
type Config struct {
	Lang                string
	WordCount           string
	MaxAttempts         int
	DefinitionDuration  time.Duration
	BlinkInterval       time.Duration
	InstructionSections []string
	Width               int
	Height              int
	Shuffle             bool
	Seed                int64
	Checkpoint          bool
}

// DefaultConfig returns the stock experiment settings.
func DefaultConfig() Config {
	return Config{
		Lang:                DefaultLang,
		WordCount:           DefaultWordCount,
		MaxAttempts:         DefaultMaxAttempts,
		DefinitionDuration:  DefaultDefinitionDuration,
		BlinkInterval:       DefaultBlinkInterval,
		InstructionSections: append([]string(nil), DefaultInstructionSections...),
		Width:               DefaultWidth,
		Height:              DefaultHeight,
		Shuffle:             true,
		Checkpoint:          true,
	}
}

// Word is one row of a stimulus list.
type Word struct {
	Word       string
	Definition string
	Class      string
	Newness    string
}

// Trial is one stimulus word with its randomly assigned definition position.
type Trial struct {
	Number     int
	Word       string
	Definition string
	Class      string
	Newness    string
	Position   DefinitionPosition
}

// ParticipantInfo is captured once during setup.
type ParticipantInfo struct {
	Name        string `yaml:"name"`
	Age         string `yaml:"age"`
	Gender      string `yaml:"gender"`
	SessionDate string `yaml:"session_date"`
	WordCount   string `yaml:"word_count"`
	Language    string `yaml:"language"`
}

// InputEvent is one accepted keystroke.
type InputEvent struct {
	Trial              int
	Attempt            int
	Word               string
	DefinitionPosition DefinitionPosition
	// Input is the typed text before the keystroke was applied.
	Input    string
	Char     string
	Correct  bool
	Interval float64
	Class    string
	Newness  string
	Name     string
	Language string
	Age      string
}

// Record is one snapshot of a session log handed to a sink.
type Record struct {
	SessionID       string
	Participant     ParticipantInfo
	Status          Status
	StartedAt       time.Time
	SavedAt         time.Time
	TrialsCompleted int
	TrialsTotal     int
	Events          []InputEvent
}

// SessionSummary describes an archived session.
type SessionSummary struct {
	ID              string
	Participant     ParticipantInfo
	Status          Status
	StartedAt       time.Time
	SavedAt         time.Time
	TrialsCompleted int
	TrialsTotal     int
	Keystrokes      int
}

// SessionFilter narrows archived session listings.
type SessionFilter struct {
	Name     string
	Language string
	Status   Status
	Since    *time.Time
	Last     int
}

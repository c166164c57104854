package stats

import (
	"strings"
	"unicode/utf8"

	"github.com/verte-zerg/neolog/internal/keylog"
	"github.com/verte-zerg/neolog/internal/model"
)

// AttemptSummary aggregates the keystrokes of one attempt.
type AttemptSummary struct {
	Trial        int
	Attempt      int
	Word         string
	Position     model.DefinitionPosition
	Keystrokes   int
	Correct      int
	Incorrect    int
	Backspaces   int
	MeanInterval float64
	FinalInput   string
}

// Matches reports whether the reconstructed input equals the target word,
// ignoring case.
func (a AttemptSummary) Matches() bool {
	return a.FinalInput != "" && strings.EqualFold(a.FinalInput, a.Word)
}

// SummarizeAttempts groups events by (trial, attempt) in log order.
// Attempts without a single accepted keystroke are not represented.
func SummarizeAttempts(events []model.InputEvent) []AttemptSummary {
	var out []AttemptSummary
	var intervalSum float64
	for i, e := range events {
		if len(out) == 0 || out[len(out)-1].Trial != e.Trial || out[len(out)-1].Attempt != e.Attempt {
			if len(out) > 0 {
				closeAttempt(&out[len(out)-1], intervalSum, events[i-1])
			}
			out = append(out, AttemptSummary{
				Trial:    e.Trial,
				Attempt:  e.Attempt,
				Word:     e.Word,
				Position: e.DefinitionPosition,
			})
			intervalSum = 0
		}
		cur := &out[len(out)-1]
		cur.Keystrokes++
		intervalSum += e.Interval
		switch {
		case e.Char == keylog.KeyBackspace:
			cur.Backspaces++
		case e.Correct:
			cur.Correct++
		default:
			cur.Incorrect++
		}
	}
	if len(out) > 0 {
		closeAttempt(&out[len(out)-1], intervalSum, events[len(events)-1])
	}
	return out
}

func closeAttempt(a *AttemptSummary, intervalSum float64, last model.InputEvent) {
	if a.Keystrokes > 0 {
		a.MeanInterval = intervalSum / float64(a.Keystrokes)
	}
	a.FinalInput = ReplayInput(last)
}

// ReplayInput returns the typed buffer after e was applied.
func ReplayInput(e model.InputEvent) string {
	if e.Char == keylog.KeyBackspace {
		if e.Input == "" {
			return ""
		}
		_, size := utf8.DecodeLastRuneInString(e.Input)
		return e.Input[:len(e.Input)-size]
	}
	return e.Input + e.Char
}

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/neolog/internal/keylog"
	"github.com/verte-zerg/neolog/internal/model"
)

func ev(trial, attempt int, word, input, char string, correct bool, interval float64) model.InputEvent {
	return model.InputEvent{
		Trial:              trial,
		Attempt:            attempt,
		Word:               word,
		DefinitionPosition: model.PositionBefore,
		Input:              input,
		Char:               char,
		Correct:            correct,
		Interval:           interval,
	}
}

func sampleEvents() []model.InputEvent {
	return []model.InputEvent{
		ev(1, 1, "ab", "", "a", true, 0.5),
		ev(1, 1, "ab", "a", "x", false, 1),
		ev(1, 1, "ab", "ax", keylog.KeyBackspace, true, 0.5),
		ev(1, 1, "ab", "a", "b", true, 1),
		ev(1, 2, "ab", "", "A", true, 2),
		ev(2, 1, "üx", "", "ü", true, 1),
		ev(2, 1, "üx", "ü", keylog.KeyBackspace, true, 3),
	}
}

func TestSummarizeAttempts(t *testing.T) {
	attempts := SummarizeAttempts(sampleEvents())
	require.Len(t, attempts, 3)

	first := attempts[0]
	assert.Equal(t, 1, first.Trial)
	assert.Equal(t, 1, first.Attempt)
	assert.Equal(t, 4, first.Keystrokes)
	assert.Equal(t, 2, first.Correct)
	assert.Equal(t, 1, first.Incorrect)
	assert.Equal(t, 1, first.Backspaces)
	assert.InDelta(t, 0.75, first.MeanInterval, 1e-9)
	assert.Equal(t, "ab", first.FinalInput)
	assert.True(t, first.Matches())

	second := attempts[1]
	assert.Equal(t, 2, second.Attempt)
	assert.Equal(t, "A", second.FinalInput)
	assert.False(t, second.Matches())

	third := attempts[2]
	assert.Equal(t, 2, third.Trial)
	assert.Equal(t, "", third.FinalInput)
	assert.Equal(t, 1, third.Backspaces)
	assert.False(t, third.Matches())
}

func TestSummarizeAttemptsEmpty(t *testing.T) {
	assert.Empty(t, SummarizeAttempts(nil))
}

func TestReplayInput(t *testing.T) {
	assert.Equal(t, "gl", ReplayInput(ev(1, 1, "glorp", "g", "l", true, 0)))
	assert.Equal(t, "g", ReplayInput(ev(1, 1, "glorp", "gä", keylog.KeyBackspace, true, 0)))
	assert.Equal(t, "", ReplayInput(ev(1, 1, "glorp", "", keylog.KeyBackspace, true, 0)))
}

func TestAggregateCharsAndWeakest(t *testing.T) {
	aggs := AggregateChars(sampleEvents())
	require.Len(t, aggs, 5)
	assert.Equal(t, []string{"A", "a", "b", "x", "ü"}, chars(aggs))

	x := aggs[3]
	assert.Equal(t, 0, x.Correct)
	assert.Equal(t, 1, x.Incorrect)
	assert.Equal(t, 0.0, x.Accuracy())
	assert.InDelta(t, 1.0, x.MeanInterval(), 1e-9)

	weak := WeakestChars(aggs, 2)
	assert.Equal(t, []string{"x", "A"}, chars(weak))
	assert.Len(t, WeakestChars(aggs, 0), 5)
	assert.Nil(t, WeakestChars(nil, 3))

	assert.Equal(t, 1.0, CharAggregate{}.Accuracy())
	assert.Equal(t, 0.0, CharAggregate{}.MeanInterval())
}

func chars(aggs []CharAggregate) []string {
	out := make([]string, len(aggs))
	for i, a := range aggs {
		out[i] = a.Char
	}
	return out
}

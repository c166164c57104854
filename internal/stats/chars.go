package stats

import (
	"sort"

	"github.com/verte-zerg/neolog/internal/keylog"
	"github.com/verte-zerg/neolog/internal/model"
)

// CharAggregate counts typed characters across events.
type CharAggregate struct {
	Char        string
	Correct     int
	Incorrect   int
	IntervalSum float64
}

// Accuracy returns the share of correct keystrokes, 1 when nothing was typed.
func (a CharAggregate) Accuracy() float64 {
	total := a.Correct + a.Incorrect
	if total == 0 {
		return 1.0
	}
	return float64(a.Correct) / float64(total)
}

// MeanInterval returns the average delay before the character, in seconds.
func (a CharAggregate) MeanInterval() float64 {
	total := a.Correct + a.Incorrect
	if total == 0 {
		return 0
	}
	return a.IntervalSum / float64(total)
}

// AggregateChars groups non-backspace keystrokes by typed character.
func AggregateChars(events []model.InputEvent) []CharAggregate {
	index := map[string]int{}
	var out []CharAggregate
	for _, e := range events {
		if e.Char == keylog.KeyBackspace {
			continue
		}
		i, ok := index[e.Char]
		if !ok {
			i = len(out)
			index[e.Char] = i
			out = append(out, CharAggregate{Char: e.Char})
		}
		if e.Correct {
			out[i].Correct++
		} else {
			out[i].Incorrect++
		}
		out[i].IntervalSum += e.Interval
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Char < out[j].Char })
	return out
}

// WeakestChars returns up to top characters with the lowest accuracy.
func WeakestChars(aggs []CharAggregate, top int) []CharAggregate {
	if len(aggs) == 0 {
		return nil
	}
	candidates := make([]CharAggregate, len(aggs))
	copy(candidates, aggs)
	sort.SliceStable(candidates, func(i, j int) bool {
		ai := candidates[i].Accuracy()
		aj := candidates[j].Accuracy()
		if ai == aj {
			return candidates[i].Char < candidates[j].Char
		}
		return ai < aj
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	return candidates[:top]
}

// Package generator builds randomized trial sequences.
package generator

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/neolog/internal/model"
)

// ErrInvalidWordCount marks a requested word count that cannot be honored.
var ErrInvalidWordCount = errors.New("invalid word count")

// AllWords requests the full stimulus set.
const AllWords = "all"

// Generator produces randomized trial sequences.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a Generator with a fixed seed.
func NewSeeded(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// ParseWordCount resolves a requested word count against the available words.
// "all" and "" select every word. Anything else that is not an integer in
// 1..available also selects every word and returns ErrInvalidWordCount.
func ParseWordCount(requested string, available int) (int, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" || strings.EqualFold(requested, AllWords) {
		return available, nil
	}
	n, err := strconv.Atoi(requested)
	if err != nil {
		return available, fmt.Errorf("%w: %q is not a number", ErrInvalidWordCount, requested)
	}
	if n <= 0 || n > available {
		return available, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidWordCount, n, available)
	}
	return n, nil
}

// Trials shuffles the words when requested, keeps the first count of them and
// assigns each a random definition position.
func (g *Generator) Trials(words []model.Word, count int, shuffle bool) []model.Trial {
	pool := make([]model.Word, len(words))
	copy(pool, words)
	if shuffle {
		g.rnd.Shuffle(len(pool), func(i, j int) {
			pool[i], pool[j] = pool[j], pool[i]
		})
	}
	if count >= 0 && count < len(pool) {
		pool = pool[:count]
	}

	trials := make([]model.Trial, 0, len(pool))
	for i, w := range pool {
		trials = append(trials, model.Trial{
			Number:     i + 1,
			Word:       w.Word,
			Definition: w.Definition,
			Class:      w.Class,
			Newness:    w.Newness,
			Position:   g.position(),
		})
	}
	return trials
}

func (g *Generator) position() model.DefinitionPosition {
	if g.rnd.Intn(2) == 0 {
		return model.PositionBefore
	}
	return model.PositionAfter
}

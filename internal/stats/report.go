package stats

import (
	"context"

	"github.com/verte-zerg/neolog/internal/model"
	"github.com/verte-zerg/neolog/internal/store"
)

// Report contains precomputed data for one session.
type Report struct {
	Session  model.SessionSummary
	Events   []model.InputEvent
	Attempts []AttemptSummary
	Chars    []CharAggregate
}

// BuildReport loads an archived session and derives its summaries.
func BuildReport(ctx context.Context, st *store.Store, id string) (Report, error) {
	session, err := st.GetSession(ctx, id)
	if err != nil {
		return Report{}, err
	}
	events, err := st.ListEvents(ctx, id)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Session:  session,
		Events:   events,
		Attempts: SummarizeAttempts(events),
		Chars:    AggregateChars(events),
	}, nil
}

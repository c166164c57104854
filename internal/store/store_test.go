package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/neolog/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "neolog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func record(id, name, lang string, status model.Status, savedAt time.Time, events int) model.Record {
	rec := model.Record{
		SessionID: id,
		Participant: model.ParticipantInfo{
			Name:        name,
			Age:         "27",
			Gender:      "d",
			SessionDate: savedAt.Format("2006-01-02"),
			WordCount:   "all",
			Language:    lang,
		},
		Status:          status,
		StartedAt:       savedAt.Add(-time.Minute),
		SavedAt:         savedAt,
		TrialsCompleted: 1,
		TrialsTotal:     3,
	}
	for i := 0; i < events; i++ {
		rec.Events = append(rec.Events, model.InputEvent{
			Trial:              1,
			Attempt:            1,
			Word:               "blick",
			DefinitionPosition: model.PositionAfter,
			Input:              "blick"[:i%5],
			Char:               string("blick"[i%5]),
			Correct:            i%2 == 0,
			Interval:           float64(i) / 4,
			Class:              "verb",
			Newness:            "1",
			Name:               name,
			Language:           lang,
			Age:                "27",
		})
	}
	return rec
}

func TestWriteLogAndReadBack(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	rec := record("s1", "p01", "de", model.StatusFinal, at, 3)
	require.NoError(t, st.WriteLog(ctx, rec))

	summary, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, rec.Participant, summary.Participant)
	assert.Equal(t, model.StatusFinal, summary.Status)
	assert.True(t, at.Equal(summary.SavedAt))
	assert.Equal(t, 3, summary.Keystrokes)
	assert.Equal(t, 1, summary.TrialsCompleted)
	assert.Equal(t, 3, summary.TrialsTotal)

	events, err := st.ListEvents(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, rec.Events, events)
}

func TestWriteLogReplacesSnapshot(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	require.NoError(t, st.WriteLog(ctx, record("s1", "p01", "de", model.StatusIntermediate, at, 5)))
	final := record("s1", "p01", "de", model.StatusFinal, at.Add(time.Minute), 8)
	final.TrialsCompleted = 3
	require.NoError(t, st.WriteLog(ctx, final))

	summary, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinal, summary.Status)
	assert.Equal(t, 3, summary.TrialsCompleted)
	assert.Equal(t, 8, summary.Keystrokes)

	sessions, err := st.ListSessions(ctx, model.SessionFilter{})
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestWriteLogRequiresID(t *testing.T) {
	st := openTestStore(t)
	err := st.WriteLog(context.Background(), model.Record{})
	assert.Error(t, err)
}

func TestGetSessionNotFound(t *testing.T) {
	st := openTestStore(t)
	_, err := st.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = st.ListEvents(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSessionsFilters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, st.WriteLog(ctx, record("a", "p01", "de", model.StatusFinal, base, 1)))
	require.NoError(t, st.WriteLog(ctx, record("b", "p02", "en", model.StatusAborted, base.Add(24*time.Hour), 2)))
	require.NoError(t, st.WriteLog(ctx, record("c", "p01", "de", model.StatusAborted, base.Add(48*time.Hour), 0)))

	all, err := st.ListSessions(ctx, model.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, ids(all))
	assert.Equal(t, 0, all[2].Keystrokes)

	byName, err := st.ListSessions(ctx, model.SessionFilter{Name: "p01"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(byName))

	byLang, err := st.ListSessions(ctx, model.SessionFilter{Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(byLang))

	aborted, err := st.ListSessions(ctx, model.SessionFilter{Status: model.StatusAborted})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(aborted))

	since := base.Add(12 * time.Hour)
	recent, err := st.ListSessions(ctx, model.SessionFilter{Since: &since})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(recent))

	last, err := st.ListSessions(ctx, model.SessionFilter{Last: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(last))
}

func TestListSessionsOrdersSubsecondTimes(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	require.NoError(t, st.WriteLog(ctx, record("half", "p01", "de", model.StatusFinal, base.Add(500*time.Millisecond), 0)))
	require.NoError(t, st.WriteLog(ctx, record("whole", "p02", "de", model.StatusFinal, base, 0)))
	require.NoError(t, st.WriteLog(ctx, record("before", "p03", "de", model.StatusFinal, base.Add(-100*time.Millisecond), 0)))

	all, err := st.ListSessions(ctx, model.SessionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "whole", "half"}, ids(all))

	last, err := st.ListSessions(ctx, model.SessionFilter{Last: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"half"}, ids(last))

	since := base.Add(250 * time.Millisecond)
	recent, err := st.ListSessions(ctx, model.SessionFilter{Since: &since})
	require.NoError(t, err)
	assert.Equal(t, []string{"half"}, ids(recent))

	summary, err := st.GetSession(ctx, "whole")
	require.NoError(t, err)
	assert.True(t, base.Equal(summary.SavedAt))
}

func ids(sessions []model.SessionSummary) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

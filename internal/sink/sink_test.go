package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/neolog/internal/model"
)

func sampleRecord(status model.Status, savedAt time.Time) model.Record {
	return model.Record{
		SessionID: "sess-1",
		Participant: model.ParticipantInfo{
			Name:        "Ana Lu",
			Age:         "31",
			Gender:      "w",
			SessionDate: "2026-10-19",
			WordCount:   "2",
			Language:    "de",
		},
		Status:          status,
		StartedAt:       savedAt.Add(-10 * time.Minute),
		SavedAt:         savedAt,
		TrialsCompleted: 1,
		TrialsTotal:     2,
		Events: []model.InputEvent{
			{Trial: 1, Attempt: 1, Word: "gl0rp", DefinitionPosition: model.PositionBefore, Input: "", Char: "g", Correct: true, Interval: 0.25, Class: "noun", Newness: "3", Name: "Ana Lu", Language: "de", Age: "31"},
			{Trial: 1, Attempt: 1, Word: "gl0rp", DefinitionPosition: model.PositionBefore, Input: "g", Char: "x", Correct: false, Interval: 1.5, Class: "noun", Newness: "3", Name: "Ana Lu", Language: "de", Age: "31"},
		},
	}
}

func TestFileName(t *testing.T) {
	rec := sampleRecord(model.StatusFinal, time.Date(2026, 10, 19, 14, 7, 0, 0, time.UTC))
	assert.Equal(t, "2026-10-19_participant_Ana_Lu_final_1407.csv", FileName(rec))

	rec.Participant.SessionDate = ""
	rec.Participant.Name = "../x"
	assert.Equal(t, "2026-10-19_participant_.._x_final_1407.csv", FileName(rec))
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "unknown", SafeName("  "))
	assert.Equal(t, "Jürgen_M", SafeName("Jürgen M"))
	assert.Equal(t, "a_b_c", SafeName("a/b\\c"))
}

func TestWriteEvents(t *testing.T) {
	rec := sampleRecord(model.StatusFinal, time.Now())
	var buf bytes.Buffer
	require.NoError(t, WriteEvents(&buf, rec.Events))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"1", "1", "gl0rp", "before", "", "g", "true", "0.25", "noun", "3", "Ana Lu", "de", "31"}, rows[1])
	assert.Equal(t, "g", rows[2][4])
	assert.Equal(t, "false", rows[2][6])
	assert.Equal(t, "1.5", rows[2][7])
}

func TestWriteEventsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEvents(&buf, nil))
	assert.Equal(t, strings.Join(Header, ",")+"\n", buf.String())
}

func TestCSVFinalRemovesCheckpoints(t *testing.T) {
	dir := t.TempDir()
	c := NewCSV(dir)
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 14, 7, 0, 0, time.UTC)

	require.NoError(t, c.WriteLog(ctx, sampleRecord(model.StatusIntermediate, at)))
	require.NoError(t, c.WriteLog(ctx, sampleRecord(model.StatusIntermediate, at.Add(time.Minute))))

	day := filepath.Join(dir, "2026-10-19")
	entries, err := os.ReadDir(day)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	final := sampleRecord(model.StatusFinal, at.Add(2*time.Minute))
	require.NoError(t, c.WriteLog(ctx, final))

	entries, err = os.ReadDir(day)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"2026-10-19_participant_Ana_Lu_final_1409.csv",
		"2026-10-19_participant_Ana_Lu_final_1409.yaml",
	}, names)
	assert.Equal(t, filepath.Join(day, "2026-10-19_participant_Ana_Lu_final_1409.csv"), c.LastPath())
}

func TestCSVAbortedKeepsCheckpoints(t *testing.T) {
	dir := t.TempDir()
	c := NewCSV(dir)
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

	require.NoError(t, c.WriteLog(ctx, sampleRecord(model.StatusIntermediate, at)))
	require.NoError(t, c.WriteLog(ctx, sampleRecord(model.StatusAborted, at.Add(time.Minute))))

	entries, err := os.ReadDir(filepath.Join(dir, "2026-10-19"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestCSVManifest(t *testing.T) {
	dir := t.TempDir()
	c := NewCSV(dir)
	at := time.Date(2026, 10, 19, 14, 7, 0, 0, time.UTC)
	rec := sampleRecord(model.StatusAborted, at)
	require.NoError(t, c.WriteLog(context.Background(), rec))

	m, err := ReadManifest(strings.TrimSuffix(c.LastPath(), ".csv") + ".yaml")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", m.SessionID)
	assert.Equal(t, model.StatusAborted, m.Status)
	assert.Equal(t, rec.Participant, m.Participant)
	assert.Equal(t, 2, m.Keystrokes)
	assert.Equal(t, 1, m.TrialsCompleted)
	assert.Equal(t, 2, m.TrialsTotal)
	assert.True(t, at.Equal(m.SavedAt))
	assert.Equal(t, "2026-10-19_participant_Ana_Lu_aborted_1407.csv", m.DataFile)
}

func TestCSVIntermediateHasNoManifest(t *testing.T) {
	dir := t.TempDir()
	c := NewCSV(dir)
	require.NoError(t, c.WriteLog(context.Background(), sampleRecord(model.StatusIntermediate, time.Now())))
	_, err := os.Stat(strings.TrimSuffix(c.LastPath(), ".csv") + ".yaml")
	assert.True(t, os.IsNotExist(err))
}

func TestCSVFinalKeepsOtherParticipantsFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	other := sampleRecord(model.StatusFinal, at)
	other.SessionID = "sess-other"
	other.Participant.Name = "bob intermediate"
	require.NoError(t, NewCSV(dir).WriteLog(ctx, other))

	c := NewCSV(dir)
	bob := sampleRecord(model.StatusIntermediate, at.Add(30*time.Minute))
	bob.Participant.Name = "bob"
	require.NoError(t, c.WriteLog(ctx, bob))
	bob.Status = model.StatusFinal
	bob.SavedAt = at.Add(time.Hour)
	require.NoError(t, c.WriteLog(ctx, bob))

	entries, err := os.ReadDir(filepath.Join(dir, "2026-10-19"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"2026-10-19_participant_bob_intermediate_final_1200.csv",
		"2026-10-19_participant_bob_intermediate_final_1200.yaml",
		"2026-10-19_participant_bob_final_1300.csv",
		"2026-10-19_participant_bob_final_1300.yaml",
	}, names)
}

func TestCSVFinalKeepsForeignCheckpoints(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	earlier := sampleRecord(model.StatusIntermediate, at)
	earlier.SessionID = "sess-crashed"
	require.NoError(t, NewCSV(dir).WriteLog(ctx, earlier))

	c := NewCSV(dir)
	require.NoError(t, c.WriteLog(ctx, sampleRecord(model.StatusIntermediate, at.Add(time.Hour))))
	require.NoError(t, c.WriteLog(ctx, sampleRecord(model.StatusFinal, at.Add(2*time.Hour))))

	day := filepath.Join(dir, "2026-10-19")
	_, err := os.Stat(filepath.Join(day, "2026-10-19_participant_Ana_Lu_intermediate_0900.csv"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(day, "2026-10-19_participant_Ana_Lu_intermediate_1000.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestCSVNameCollisionAddsSessionID(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 14, 7, 0, 0, time.UTC)

	first := sampleRecord(model.StatusFinal, at)
	first.SessionID = "0f8fad5b-d9cb-469f-a165-70867728950e"
	first.Participant.Name = "a b"
	require.NoError(t, NewCSV(dir).WriteLog(ctx, first))

	second := sampleRecord(model.StatusFinal, at)
	second.SessionID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	second.Participant.Name = "a_b"
	c := NewCSV(dir)
	require.NoError(t, c.WriteLog(ctx, second))

	day := filepath.Join(dir, "2026-10-19")
	assert.Equal(t, filepath.Join(day, "2026-10-19_participant_a_b_final_1407_7c9e6679.csv"), c.LastPath())
	_, err := os.Stat(filepath.Join(day, "2026-10-19_participant_a_b_final_1407.csv"))
	assert.NoError(t, err)

	m, err := ReadManifest(filepath.Join(day, "2026-10-19_participant_a_b_final_1407_7c9e6679.yaml"))
	require.NoError(t, err)
	assert.Equal(t, second.SessionID, m.SessionID)
	assert.Equal(t, "2026-10-19_participant_a_b_final_1407_7c9e6679.csv", m.DataFile)

	m, err = ReadManifest(filepath.Join(day, "2026-10-19_participant_a_b_final_1407.yaml"))
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, m.SessionID)
}

func TestCSVOverwritesOwnCheckpoint(t *testing.T) {
	dir := t.TempDir()
	c := NewCSV(dir)
	at := time.Date(2026, 10, 19, 14, 7, 0, 0, time.UTC)
	require.NoError(t, c.WriteLog(context.Background(), sampleRecord(model.StatusIntermediate, at)))
	require.NoError(t, c.WriteLog(context.Background(), sampleRecord(model.StatusIntermediate, at.Add(20*time.Second))))

	entries, err := os.ReadDir(filepath.Join(dir, "2026-10-19"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

type writerFunc func(context.Context, model.Record) error

func (f writerFunc) WriteLog(ctx context.Context, rec model.Record) error { return f(ctx, rec) }

func TestMultiWritesAll(t *testing.T) {
	first := errors.New("first")
	var calls int
	m := Multi{
		writerFunc(func(context.Context, model.Record) error { calls++; return first }),
		nil,
		writerFunc(func(context.Context, model.Record) error { calls++; return nil }),
	}
	err := m.WriteLog(context.Background(), model.Record{})
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 2, calls)

	assert.NoError(t, Multi{}.WriteLog(context.Background(), model.Record{}))
}

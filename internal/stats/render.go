package stats

import (
	"fmt"
	"io"
	"strconv"

	"github.com/verte-zerg/neolog/internal/model"
)

const timeLayout = "2006-01-02 15:04"

// SessionHeaders are the column titles of a session listing.
var SessionHeaders = []string{"ID", "Saved", "Participant", "Lang", "Status", "Trials", "Keys"}

// SessionRow formats one archived session as listing cells.
func SessionRow(s model.SessionSummary) []string {
	return []string{
		s.ID,
		s.SavedAt.Local().Format(timeLayout),
		s.Participant.Name,
		s.Participant.Language,
		string(s.Status),
		fmt.Sprintf("%d/%d", s.TrialsCompleted, s.TrialsTotal),
		strconv.Itoa(s.Keystrokes),
	}
}

// RenderSessions prints one line per archived session.
func RenderSessions(w io.Writer, sessions []model.SessionSummary) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, SessionRow(s))
	}
	return writeLines(w, formatTable(SessionHeaders, rows, map[int]bool{5: true, 6: true}))
}

// RenderSessionHeader prints the participant block of one session.
func RenderSessionHeader(w io.Writer, s model.SessionSummary) error {
	p := s.Participant
	lines := []string{
		fmt.Sprintf("Session: %s", s.ID),
		fmt.Sprintf("Participant: %s (age %s, gender %s)", p.Name, p.Age, p.Gender),
		fmt.Sprintf("Language: %s  Word count: %s  Date: %s", p.Language, p.WordCount, p.SessionDate),
		fmt.Sprintf("Status: %s  Trials: %d/%d  Keystrokes: %d", s.Status, s.TrialsCompleted, s.TrialsTotal, s.Keystrokes),
		fmt.Sprintf("Started: %s  Saved: %s", s.StartedAt.Local().Format(timeLayout), s.SavedAt.Local().Format(timeLayout)),
		"",
	}
	return writeLines(w, lines)
}

// RenderAttempts prints the per-attempt table.
func RenderAttempts(w io.Writer, attempts []AttemptSummary) error {
	if len(attempts) == 0 {
		_, err := fmt.Fprintln(w, "No keystrokes logged.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Attempts"); err != nil {
		return err
	}
	headers := []string{"Trial", "Try", "Word", "Def", "Typed", "Keys", "Correct", "Wrong", "Back", "Mean (s)", "Match"}
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		match := ""
		if a.Matches() {
			match = "yes"
		}
		rows = append(rows, []string{
			strconv.Itoa(a.Trial),
			strconv.Itoa(a.Attempt),
			a.Word,
			string(a.Position),
			a.FinalInput,
			strconv.Itoa(a.Keystrokes),
			strconv.Itoa(a.Correct),
			strconv.Itoa(a.Incorrect),
			strconv.Itoa(a.Backspaces),
			fmt.Sprintf("%.3f", a.MeanInterval),
			match,
		})
	}
	rightAlign := map[int]bool{0: true, 1: true, 5: true, 6: true, 7: true, 8: true, 9: true}
	if err := writeLines(w, formatTable(headers, rows, rightAlign)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderCharTable prints per-character aggregates, lowest accuracy first.
func RenderCharTable(w io.Writer, aggs []CharAggregate) error {
	if len(aggs) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Per-Character"); err != nil {
		return err
	}
	headers := []string{"Char", "Accuracy", "Mean (s)", "Correct", "Incorrect"}
	rows := make([][]string, 0, len(aggs))
	for _, agg := range WeakestChars(aggs, 0) {
		rows = append(rows, []string{
			agg.Char,
			fmt.Sprintf("%.2f%%", agg.Accuracy()*100),
			fmt.Sprintf("%.3f", agg.MeanInterval()),
			strconv.Itoa(agg.Correct),
			strconv.Itoa(agg.Incorrect),
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true, 4: true}
	if err := writeLines(w, formatTable(headers, rows, rightAlign)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderReport prints a full session report.
func RenderReport(w io.Writer, r Report) error {
	if err := RenderSessionHeader(w, r.Session); err != nil {
		return err
	}
	if err := RenderAttempts(w, r.Attempts); err != nil {
		return err
	}
	return RenderCharTable(w, r.Chars)
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

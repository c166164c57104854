// Package sink writes session keystroke logs to disk.
package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/verte-zerg/neolog/internal/model"
)

// Header is the column order of exported keystroke logs.
var Header = []string{
	"trial",
	"attempt",
	"word",
	"definition_position",
	"input",
	"char",
	"correct",
	"time",
	"class",
	"newness",
	"name",
	"language",
	"age",
}

const shortIDLen = 8

// CSV writes one file per save under <dir>/<session date>/.
// A CSV sink serves a single session.
type CSV struct {
	dir      string
	lastPath string
	written  map[string]bool
}

// NewCSV returns a CSV sink rooted at dir.
func NewCSV(dir string) *CSV {
	return &CSV{dir: dir, written: map[string]bool{}}
}

// LastPath returns the file written by the most recent successful save.
func (c *CSV) LastPath() string {
	return c.lastPath
}

// WriteLog implements the session sink contract. Final saves remove the
// checkpoints this sink wrote; terminal saves also write a manifest.
func (c *CSV) WriteLog(_ context.Context, rec model.Record) error {
	dir := filepath.Join(c.dir, sessionDate(rec))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	name := c.fileName(dir, rec)
	path := filepath.Join(dir, name)
	if err := writeFileAtomic(path, func(w io.Writer) error {
		return WriteEvents(w, rec.Events)
	}); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	c.lastPath = path
	c.written[path] = true

	if !rec.Status.Terminal() {
		return nil
	}
	if err := writeManifest(strings.TrimSuffix(path, ".csv")+".yaml", rec, name); err != nil {
		return err
	}
	if rec.Status == model.StatusFinal {
		return c.removeCheckpoints(rec)
	}
	return nil
}

// fileName returns FileName(rec). When a file of that name exists and was
// written by another session, the short session id is appended.
func (c *CSV) fileName(dir string, rec model.Record) string {
	name := FileName(rec)
	path := filepath.Join(dir, name)
	if c.written[path] {
		return name
	}
	if _, err := os.Stat(path); err != nil {
		return name
	}
	id := shortID(rec.SessionID)
	if id == "" {
		return name
	}
	return strings.TrimSuffix(name, ".csv") + "_" + id + ".csv"
}

func shortID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	runes := []rune(SafeName(id))
	if len(runes) > shortIDLen {
		runes = runes[:shortIDLen]
	}
	return string(runes)
}

// FileName builds <date>_participant_<name>_<status>_<HHMM>.csv.
func FileName(rec model.Record) string {
	return fmt.Sprintf("%s_%s_%s.csv", filePrefix(rec), rec.Status, rec.SavedAt.Format("1504"))
}

func filePrefix(rec model.Record) string {
	return fmt.Sprintf("%s_participant_%s", sessionDate(rec), SafeName(rec.Participant.Name))
}

func sessionDate(rec model.Record) string {
	if rec.Participant.SessionDate != "" {
		return SafeName(rec.Participant.SessionDate)
	}
	return rec.SavedAt.Format("2006-01-02")
}

// SafeName replaces characters that are unsafe in file names with '_'.
func SafeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '-' || r == '.' || r == '_':
			return r
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		default:
			return '_'
		}
	}, name)
}

// WriteEvents encodes events as CSV with a header row.
func WriteEvents(w io.Writer, events []model.InputEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range events {
		row := []string{
			strconv.Itoa(e.Trial),
			strconv.Itoa(e.Attempt),
			e.Word,
			string(e.DefinitionPosition),
			e.Input,
			e.Char,
			strconv.FormatBool(e.Correct),
			strconv.FormatFloat(e.Interval, 'f', -1, 64),
			e.Class,
			e.Newness,
			e.Name,
			e.Language,
			e.Age,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (c *CSV) removeCheckpoints(rec model.Record) error {
	prefix := filePrefix(rec) + "_" + string(model.StatusIntermediate)
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `_\d{4}(_[\p{L}\p{N}._-]+)?\.csv$`)
	for path := range c.written {
		if !pattern.MatchString(filepath.Base(path)) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove checkpoint: %w", err)
		}
		delete(c.written, path)
	}
	return nil
}

func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".neolog-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	writer := bufio.NewWriter(tmpFile)
	if err := write(writer); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close: %w", err)
	}
	return os.Rename(tmpPath, path)
}

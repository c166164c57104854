// Package wordlist loads stimulus lists from CSV files.
package wordlist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/verte-zerg/neolog/internal/model"
)

// ErrEmpty is returned when a stimulus list contains no usable rows.
var ErrEmpty = errors.New("stimulus list is empty")

// Column names recognized in the header row.
const (
	ColumnWord       = "word"
	ColumnDefinition = "definition"
	ColumnClass      = "class"
	ColumnNewness    = "newness"
)

// PathFor returns the stimulus file for a language.
func PathFor(dir, lang string) string {
	return filepath.Join(dir, lang+"_words.csv")
}

// LoadWords reads stimulus rows from the provided CSV file path.
func LoadWords(path string) ([]model.Word, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only stimulus list.
			_ = cerr
		}
	}()
	return ReadWords(file)
}

// ReadWords parses a stimulus CSV with a header row.
// Columns may appear in any order; unknown columns are ignored.
func ReadWords(r io.Reader) ([]model.Word, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, required := range []string{ColumnWord, ColumnDefinition} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	var words []model.Word
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		word := model.Word{
			Word:       field(row, cols, ColumnWord),
			Definition: field(row, cols, ColumnDefinition),
			Class:      field(row, cols, ColumnClass),
			Newness:    field(row, cols, ColumnNewness),
		}
		if word.Word == "" {
			continue
		}
		words = append(words, word)
	}
	if len(words) == 0 {
		return nil, ErrEmpty
	}
	return words, nil
}

func field(row []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

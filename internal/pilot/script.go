// Package pilot replays scripted keypresses against a session on a virtual
// clock, so a full experiment can be rehearsed without a terminal.
package pilot

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Step is one scripted keypress, delivered Delay after the previous one.
type Step struct {
	Delay time.Duration
	Key   string
}

// LoadScript reads a script file.
func LoadScript(path string) ([]Step, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close for read-only file.
			_ = cerr
		}
	}()
	return ParseScript(f)
}

// ParseScript reads lines of the form "<delay_ms> <key>". Blank lines and
// lines starting with '#' are skipped. Keys are single characters or
// symbolic tokens such as space, backspace, return and escape.
func ParseScript(r io.Reader) ([]Step, error) {
	var steps []Step
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected \"<delay_ms> <key>\", got %q", lineNo, line)
		}
		ms, err := strconv.Atoi(fields[0])
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("line %d: invalid delay %q", lineNo, fields[0])
		}
		steps = append(steps, Step{
			Delay: time.Duration(ms) * time.Millisecond,
			Key:   fields[1],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return steps, nil
}

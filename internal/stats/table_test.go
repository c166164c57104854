package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Char", "Accuracy", "Correct"}
	rows := [][]string{
		{"a", "97.50%", "12"},
		{"<space>", "8.00%", "3"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	require.Len(t, lines, 3)
	assert.Equal(t, "Char     Accuracy  Correct", lines[0])
	assert.Equal(t, "a          97.50%       12", lines[1])
	assert.Equal(t, "<space>     8.00%        3", lines[2])
}

func TestFormatTableWideRunes(t *testing.T) {
	lines := formatTable([]string{"Word", "N"}, [][]string{{"日本", "1"}, {"ab", "22"}}, map[int]bool{1: true})
	require.Len(t, lines, 3)
	assert.Equal(t, "Word   N", lines[0])
	assert.Equal(t, "日本   1", lines[1])
	assert.Equal(t, "ab    22", lines[2])
}

func TestFormatTableTrimsTrailingPadding(t *testing.T) {
	lines := formatTable([]string{"A", "Long"}, [][]string{{"x"}}, nil)
	require.Len(t, lines, 2)
	assert.Equal(t, "x", lines[1])
}

func TestFormatTableEmpty(t *testing.T) {
	assert.Nil(t, formatTable(nil, nil, nil))
}

package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanelAlignsColoredLines(t *testing.T) {
	SetTheme("classic")
	SetColorForcing(true, false)
	defer SetColorForcing(false, false)

	var buf bytes.Buffer
	Panel(&buf, []string{C(fgGreen, "ok"), "a longer line", "☐ wide"})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	want := len([]rune(lines[0]))
	assert.Equal(t, want, len([]rune(lines[4])))
	// "a longer line" is the widest, so its row has no padding.
	assert.Equal(t, "│ a longer line │", lines[2])
}

func TestMonoThemeDisablesColor(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")
	SetColorForcing(true, false)
	defer SetColorForcing(false, false)

	var buf bytes.Buffer
	Fail(&buf, "boom")
	assert.Equal(t, "error: boom\n", buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "☐☐☐...", Truncate("☐☐☐☐☐☐☐", 6))
}

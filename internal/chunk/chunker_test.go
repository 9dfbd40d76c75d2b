package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSmallInputSingleChunk(t *testing.T) {
	text := "line one\nline two\nline three"
	chunks := Split(text, 1024, 2)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartOffset)
}

func TestSplitEmptyInput(t *testing.T) {
	chunks := Split("", 1024, 2)

	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].Text)
}

func TestSplitNeverSplitsLines(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&sb, "log line number %03d with some padding text\n", i)
	}
	text := sb.String()

	chunks := Split(text, 200, 1)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		// Every chunk must start at a line boundary.
		if c.StartOffset > 0 {
			assert.Equal(t, byte('\n'), text[c.StartOffset-1],
				"chunk %d does not start at a line boundary", c.Index)
		}
		// Offsets must map chunk text back into the original input.
		assert.Equal(t, c.Text, text[c.StartOffset:c.StartOffset+len(c.Text)])
	}
}

func TestSplitAdjacentLinesCooccur(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = fmt.Sprintf("entry %02d padded to a reasonable length", i)
	}
	text := strings.Join(lines, "\n")

	for _, overlap := range []int{1, 2, 3} {
		chunks := Split(text, 150, overlap)
		require.Greater(t, len(chunks), 1)

		for i := 0; i < len(lines)-1; i++ {
			pair := lines[i] + "\n" + lines[i+1]
			found := false
			for _, c := range chunks {
				if strings.Contains(c.Text, pair) {
					found = true
					break
				}
			}
			assert.True(t, found,
				"overlap=%d: adjacent lines %d and %d never co-occur", overlap, i, i+1)
		}
	}
}

func TestSplitOversizedLineEmittedWhole(t *testing.T) {
	huge := strings.Repeat("x", 5000)
	text := "before\n" + huge + "\nafter"

	chunks := Split(text, 100, 1)

	found := false
	for _, c := range chunks {
		if strings.Contains(c.Text, huge) {
			found = true
		}
	}
	assert.True(t, found, "oversized line must be emitted whole, never truncated")
}

func TestSplitCoversAllInput(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	text := sb.String()

	chunks := Split(text, 128, 2)

	covered := make([]bool, len(text))
	for _, c := range chunks {
		for i := 0; i < len(c.Text); i++ {
			covered[c.StartOffset+i] = true
		}
	}
	for i, ok := range covered {
		require.True(t, ok, "byte %d of input not covered by any chunk", i)
	}
}

func TestSplitDefaults(t *testing.T) {
	chunks := Split("tiny", 0, -1)
	require.Len(t, chunks, 1)
	assert.Equal(t, "tiny", chunks[0].Text)
}

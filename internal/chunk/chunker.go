// Package chunk splits log text into bounded, line-aligned, overlapping
// slices for bounded-memory parallel matching.
package chunk

const (
	// DefaultMaxBytes is the default chunk size bound.
	DefaultMaxBytes = 1 << 20 // 1MB

	// DefaultOverlapLines is the default number of trailing lines
	// repeated at the start of the next chunk.
	DefaultOverlapLines = 2
)

// Chunk is one bounded slice of the input text. StartOffset is the
// absolute byte offset of Text's first byte in the original input, so
// match positions found within a chunk translate back to absolute
// positions.
type Chunk struct {
	Text        string
	StartOffset int
	Index       int
}

// line is an input line (including its trailing newline, if any)
// together with its absolute offset.
type line struct {
	text   string
	offset int
}

// Split divides text into chunks of roughly maxBytes, never splitting a
// line across chunks. A chunk closes once appending the next line would
// exceed maxBytes; the closed chunk's trailing overlapLines lines are
// then repeated at the start of the next chunk, so with
// overlapLines >= 1 every pair of adjacent lines co-occurs in at least
// one chunk. Overlap padding means a chunk can exceed maxBytes; so can
// a single line longer than maxBytes, which is still emitted whole.
//
// Empty input yields exactly one empty chunk. maxBytes <= 0 and
// negative overlapLines fall back to the defaults.
func Split(text string, maxBytes, overlapLines int) []Chunk {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if overlapLines < 0 {
		overlapLines = DefaultOverlapLines
	}

	if len(text) <= maxBytes {
		return []Chunk{{Text: text, StartOffset: 0, Index: 0}}
	}

	var (
		chunks  []Chunk
		cur     []line
		curSize int
		fresh   int // lines in cur not yet emitted in any chunk
	)

	build := func() Chunk {
		buf := make([]byte, 0, curSize)
		for _, l := range cur {
			buf = append(buf, l.text...)
		}
		return Chunk{Text: string(buf), StartOffset: cur[0].offset, Index: len(chunks)}
	}

	emit := func() {
		chunks = append(chunks, build())

		keep := overlapLines
		if keep > len(cur) {
			keep = len(cur)
		}
		tail := make([]line, keep)
		copy(tail, cur[len(cur)-keep:])
		cur = tail
		curSize = 0
		for _, l := range cur {
			curSize += len(l.text)
		}
		fresh = 0
	}

	for _, l := range splitLines(text) {
		if fresh > 0 && curSize+len(l.text) > maxBytes {
			emit()
		}
		cur = append(cur, l)
		curSize += len(l.text)
		fresh++
	}
	if fresh > 0 {
		chunks = append(chunks, build())
	}

	return chunks
}

// splitLines cuts text into lines, each keeping its trailing newline.
func splitLines(text string) []line {
	var lines []line
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, line{text: text[start : i+1], offset: start})
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, line{text: text[start:], offset: start})
	}
	return lines
}

// Package ingest turns source files into indexable knowledge documents:
// text extraction followed by overlapping, sentence-aware chunking.
package ingest

import (
	"strings"
	"unicode/utf8"
)

// Chunking defaults, in runes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultMinChunkSize = 50
)

// Chunker splits text into fixed-size overlapping chunks. When a sentence
// boundary falls inside the tail of a chunk the cut moves there, so chunks
// tend to end on complete sentences.
type Chunker struct {
	size    int
	overlap int
	minSize int
}

// NewChunker creates a chunker. Non-positive size or overlap fall back to
// defaults; an overlap at or above size is clamped to half the size.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Chunker{size: size, overlap: overlap, minSize: DefaultMinChunkSize}
}

// Chunk splits text into chunks. Whitespace-only input yields no chunks,
// and trailing fragments shorter than the minimum are merged into the
// previous chunk rather than emitted on their own.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := sentenceCut(runes[start:end]); cut > 0 {
			end = start + cut
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			if utf8.RuneCountInString(chunk) < c.minSize && len(chunks) > 0 {
				chunks[len(chunks)-1] += " " + chunk
			} else {
				chunks = append(chunks, chunk)
			}
		}

		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// sentenceCut finds the position after the last sentence terminator in the
// second half of the window, or 0 when there is none worth cutting at.
func sentenceCut(window []rune) int {
	for i := len(window) - 1; i > len(window)/2; i-- {
		switch window[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	return 0
}

package ingest

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/lectern/pkg/model"
)

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 100
)

// Chunker splits a course document into overlapping word-boundary windows
// tagged with their lesson provenance. Given the same text and
// configuration, the produced chunks are byte-for-byte identical.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
	}
	return &Chunker{size: size, overlap: overlap}
}

type segment struct {
	lesson *int
	text   string
}

// Build locates the lesson markers of the given course in documentText and
// chunks each lesson's text. Text before the first marker becomes preamble
// chunks with a nil lesson. The per-lesson index restarts at zero; Seq runs
// across the whole document.
func (c *Chunker) Build(documentText, courseTitle string, lessons []model.Lesson) []*model.Chunk {
	var chunks []*model.Chunk
	seq := 0

	for _, seg := range segmentLessons(documentText, lessons) {
		for i, text := range c.split(seg.text) {
			chunks = append(chunks, &model.Chunk{
				CourseTitle: courseTitle,
				Lesson:      seg.lesson,
				Index:       i,
				Seq:         seq,
				Text:        text,
			})
			seq++
		}
	}

	return chunks
}

// split windows text into chunks of at most c.size bytes over whole words.
// Consecutive windows share trailing words adding up to at most c.overlap
// bytes. A single word longer than the window is emitted whole rather than
// split mid-word.
func (c *Chunker) split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var out []string
	start := 0
	for start < len(words) {
		length := 0
		end := start
		for end < len(words) {
			wordLen := len(words[end])
			if length > 0 {
				wordLen++ // joining space
			}
			if length > 0 && length+wordLen > c.size {
				break
			}
			length += wordLen
			end++
		}

		out = append(out, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}

		// Step back whole words until the overlap budget is spent. The
		// next window must start after the previous one did, so the loop
		// stops at start+1 even if the budget allows more.
		overlap := 0
		next := end
		for next > start+1 {
			wordLen := len(words[next-1])
			if overlap > 0 {
				wordLen++
			}
			if overlap+wordLen > c.overlap {
				break
			}
			overlap += wordLen
			next--
		}
		start = next
	}

	return out
}

// segmentLessons splits documentText at the "Lesson N: Title" marker lines
// of the given lessons, in document order. The marker line and an optional
// "Lesson Link:" line directly after it are not part of the lesson text.
func segmentLessons(documentText string, lessons []model.Lesson) []segment {
	type marker struct {
		start  int // marker line start
		body   int // lesson text start (after marker and link lines)
		lesson int
	}

	var markers []marker
	searchFrom := 0
	for _, lesson := range lessons {
		prefix := fmt.Sprintf("Lesson %d:", lesson.Number)
		pos := indexAtLineStart(documentText, prefix, searchFrom)
		if pos < 0 {
			continue
		}

		body := skipLine(documentText, pos)
		if strings.HasPrefix(documentText[body:], "Lesson Link:") {
			body = skipLine(documentText, body)
		}

		markers = append(markers, marker{start: pos, body: body, lesson: lesson.Number})
		searchFrom = body
	}

	var segments []segment
	if len(markers) == 0 {
		return []segment{{lesson: nil, text: documentText}}
	}

	if preamble := documentText[:markers[0].start]; strings.TrimSpace(preamble) != "" {
		segments = append(segments, segment{lesson: nil, text: preamble})
	}

	for i, m := range markers {
		end := len(documentText)
		if i+1 < len(markers) {
			end = markers[i+1].start
		}
		lesson := m.lesson
		segments = append(segments, segment{lesson: &lesson, text: documentText[m.body:end]})
	}

	return segments
}

// indexAtLineStart finds prefix at the beginning of a line, at or after from.
func indexAtLineStart(text, prefix string, from int) int {
	for from <= len(text) {
		idx := strings.Index(text[from:], prefix)
		if idx < 0 {
			return -1
		}
		pos := from + idx
		if pos == 0 || text[pos-1] == '\n' {
			return pos
		}
		from = pos + 1
	}
	return -1
}

// skipLine returns the offset just past the line containing pos.
func skipLine(text string, pos int) int {
	if nl := strings.IndexByte(text[pos:], '\n'); nl >= 0 {
		return pos + nl + 1
	}
	return len(text)
}

package ingest_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/usecase/ingest"
)

const courseBody = `Welcome to the course. This preamble introduces the topics.

Lesson 0: Introduction
Lesson Link: https://example.com/lesson/0
MCP is a protocol for connecting models to tools and data sources.

Lesson 1: Building Servers
Lesson Link: https://example.com/lesson/1
A server exposes tools over a transport such as stdio or HTTP.
`

var courseLessons = []model.Lesson{
	{Number: 0, Title: "Introduction", Link: "https://example.com/lesson/0"},
	{Number: 1, Title: "Building Servers", Link: "https://example.com/lesson/1"},
}

func TestChunkerLessonSegments(t *testing.T) {
	chunker := ingest.NewChunker(800, 100)
	chunks := chunker.Build(courseBody, "Intro to MCP", courseLessons)

	gt.Equal(t, len(chunks), 3)

	// Preamble text carries no lesson
	gt.Nil(t, chunks[0].Lesson)
	gt.S(t, chunks[0].Text).Contains("preamble")

	gt.NotNil(t, chunks[1].Lesson)
	gt.Equal(t, *chunks[1].Lesson, 0)
	gt.S(t, chunks[1].Text).Contains("MCP is a protocol")

	gt.NotNil(t, chunks[2].Lesson)
	gt.Equal(t, *chunks[2].Lesson, 1)
	gt.S(t, chunks[2].Text).Contains("server exposes tools")

	// Marker and link lines are provenance, not content
	for _, chunk := range chunks {
		gt.False(t, strings.Contains(chunk.Text, "Lesson Link:"))
		gt.False(t, strings.Contains(chunk.Text, "Lesson 0:"))
		gt.False(t, strings.Contains(chunk.Text, "Lesson 1:"))
	}

	// Seq runs across the document; Index restarts per segment
	for i, chunk := range chunks {
		gt.Equal(t, chunk.Seq, i)
		gt.Equal(t, chunk.Index, 0)
		gt.Equal(t, chunk.CourseTitle, "Intro to MCP")
	}
}

func TestChunkerWindowing(t *testing.T) {
	words := make([]string, 40)
	for i := range words {
		words[i] = fmt.Sprintf("w%02d", i)
	}
	text := strings.Join(words, " ")

	chunker := ingest.NewChunker(50, 10)
	chunks := chunker.Build(text, "Windowed", nil)

	gt.True(t, len(chunks) > 1)

	for i, chunk := range chunks {
		gt.True(t, len(chunk.Text) <= 50)
		gt.Equal(t, chunk.Index, i)
		gt.Equal(t, chunk.Seq, i)
	}

	// Adjacent windows share the maximal whole-word run fitting the
	// overlap budget: two 3-byte words joined cost 7 bytes, a third would
	// cost 11 and exceed 10. The words are distinct, so matching the
	// second-to-last word pins the shared run to exactly two.
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Text)
		next := strings.Fields(chunks[i].Text)
		gt.Equal(t, next[0], prev[len(prev)-2])
		gt.Equal(t, next[1], prev[len(prev)-1])
		gt.NotEqual(t, next[0], prev[len(prev)-3])
	}

	// Dropping each window's shared prefix reconstructs the input, so no
	// word is skipped or duplicated beyond the overlap
	joined := append([]string(nil), strings.Fields(chunks[0].Text)...)
	for i := 1; i < len(chunks); i++ {
		joined = append(joined, strings.Fields(chunks[i].Text)[2:]...)
	}
	gt.Equal(t, joined, words)
}

func TestChunkerDeterministic(t *testing.T) {
	chunker := ingest.NewChunker(60, 15)

	first := chunker.Build(courseBody, "Intro to MCP", courseLessons)
	second := chunker.Build(courseBody, "Intro to MCP", courseLessons)

	gt.Equal(t, len(first), len(second))
	for i := range first {
		gt.Equal(t, first[i].Text, second[i].Text)
		gt.Equal(t, first[i].Index, second[i].Index)
		gt.Equal(t, first[i].Seq, second[i].Seq)
	}
}

func TestChunkerNoMarkers(t *testing.T) {
	chunker := ingest.NewChunker(800, 100)
	chunks := chunker.Build("Just one paragraph of text without any lesson structure.", "Flat", nil)

	gt.Equal(t, len(chunks), 1)
	gt.Nil(t, chunks[0].Lesson)
	gt.S(t, chunks[0].Text).Contains("one paragraph")
}

func TestChunkerOversizedWord(t *testing.T) {
	long := strings.Repeat("x", 120)
	chunker := ingest.NewChunker(50, 10)
	chunks := chunker.Build("start "+long+" end", "Long", nil)

	// A word longer than the window is emitted whole, never split
	found := false
	for _, chunk := range chunks {
		if strings.Contains(chunk.Text, long) {
			found = true
		}
	}
	gt.True(t, found)
}

func TestChunkerEmptyText(t *testing.T) {
	chunker := ingest.NewChunker(800, 100)
	gt.Equal(t, len(chunker.Build("   \n  ", "Empty", nil)), 0)
}

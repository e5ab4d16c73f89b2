package model

import (
	"fmt"
	"strings"
)

// Lesson is a single lesson header within a course document.
type Lesson struct {
	Number int    `json:"number" firestore:"number"`
	Title  string `json:"title" firestore:"title"`
	Link   string `json:"link,omitempty" firestore:"link,omitempty"`
}

// Course is the catalog entry for one ingested course. The title is the
// identity: re-ingesting the same title supersedes the previous record.
type Course struct {
	Title      string   `json:"title" firestore:"title"`
	Link       string   `json:"link,omitempty" firestore:"link,omitempty"`
	Instructor string   `json:"instructor,omitempty" firestore:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons" firestore:"lessons"`
}

// Lesson returns the lesson header with the given number, if present.
func (c *Course) Lesson(number int) (*Lesson, bool) {
	for i := range c.Lessons {
		if c.Lessons[i].Number == number {
			return &c.Lessons[i], true
		}
	}
	return nil, false
}

// CatalogText is the normalized representation embedded for fuzzy
// course-name resolution.
func (c *Course) CatalogText() string {
	text := strings.TrimSpace(c.Title)
	if c.Instructor != "" {
		text += " by " + c.Instructor
	}
	return text
}

// Chunk is the unit of retrieval: a bounded slice of course text with its
// provenance. Lesson is nil for course-level preamble text.
type Chunk struct {
	CourseTitle string `json:"course_title" firestore:"course_title"`
	Lesson      *int   `json:"lesson,omitempty" firestore:"lesson,omitempty"`
	Index       int    `json:"index" firestore:"index"`
	Seq         int    `json:"seq" firestore:"seq"`
	Text        string `json:"text" firestore:"text"`
}

// ID returns a stable identifier for the chunk within its course. Seq is
// the document-wide position, so IDs never collide across lessons.
func (c *Chunk) ID() string {
	return fmt.Sprintf("%s:%d", NormalizeTitle(c.CourseTitle), c.Seq)
}

// NormalizeTitle lowercases and collapses whitespace so that title
// comparison and document IDs are case-insensitive.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

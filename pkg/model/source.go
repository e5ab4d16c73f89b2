package model

import "fmt"

// Source is a citation attached to an answer: which course and lesson a
// retrieved chunk came from.
type Source struct {
	CourseTitle string `json:"course_title"`
	Lesson      *int   `json:"lesson,omitempty"`
	Link        string `json:"link,omitempty"`
}

// Label renders the source for display, e.g. "Intro to MCP - Lesson 2".
func (s Source) Label() string {
	if s.Lesson != nil {
		return fmt.Sprintf("%s - Lesson %d", s.CourseTitle, *s.Lesson)
	}
	return s.CourseTitle
}

// Key identifies a source for deduplication within one tool execution.
func (s Source) Key() string {
	if s.Lesson != nil {
		return fmt.Sprintf("%s|%d", NormalizeTitle(s.CourseTitle), *s.Lesson)
	}
	return NormalizeTitle(s.CourseTitle)
}

package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
)

var lessonMarker = regexp.MustCompile(`^Lesson (\d+):\s*(.*)$`)

// ParseCourseDocument reads the plain-text course format:
//
//	Course Title: <title>
//	Course Link: <url>
//	Course Instructor: <name>
//
//	Lesson 0: Introduction
//	Lesson Link: <url>
//	<lesson text...>
//
// It returns the course metadata (title, link, instructor, ordered lesson
// headers) and the document body from which chunks are built. Header lines
// may appear in any order; only the title is mandatory.
func ParseCourseDocument(raw string) (*model.Course, string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, "", goerr.Wrap(model.ErrEmptyDocument, "document is blank")
	}

	course := &model.Course{}

	// Header block: consumed until the first line that is neither a
	// "Course ...:" header nor blank.
	offset := 0
	for offset < len(raw) {
		lineEnd := strings.IndexByte(raw[offset:], '\n')
		if lineEnd < 0 {
			lineEnd = len(raw) - offset
		}
		trimmed := strings.TrimSpace(raw[offset : offset+lineEnd])

		done := false
		switch {
		case strings.HasPrefix(trimmed, "Course Title:"):
			course.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Title:"))
		case strings.HasPrefix(trimmed, "Course Link:"):
			course.Link = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Link:"))
		case strings.HasPrefix(trimmed, "Course Instructor:"):
			course.Instructor = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Instructor:"))
		case trimmed == "":
			// blank lines inside the header block are fine
		default:
			done = true
		}
		if done {
			break
		}

		offset += lineEnd + 1
	}

	if course.Title == "" {
		return nil, "", goerr.Wrap(model.ErrEmptyDocument, "document has no course title")
	}

	body := ""
	if offset < len(raw) {
		body = raw[offset:]
	}
	if strings.TrimSpace(body) == "" {
		return nil, "", goerr.Wrap(model.ErrEmptyDocument, "document has no content after headers",
			goerr.V("title", course.Title))
	}

	course.Lessons = parseLessons(body)

	return course, body, nil
}

// parseLessons collects the ordered lesson headers from the document body.
func parseLessons(body string) []model.Lesson {
	var lessons []model.Lesson

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		m := lessonMarker.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}

		number, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		lesson := model.Lesson{Number: number, Title: strings.TrimSpace(m[2])}
		if i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if strings.HasPrefix(next, "Lesson Link:") {
				lesson.Link = strings.TrimSpace(strings.TrimPrefix(next, "Lesson Link:"))
			}
		}

		lessons = append(lessons, lesson)
	}

	return lessons
}

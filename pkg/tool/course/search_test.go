package course_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/repository"
	"github.com/m-mizutani/lectern/pkg/tool/course"
	"github.com/m-mizutani/lectern/pkg/usecase/index"
)

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embedding(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func lessonPtr(n int) *int {
	return &n
}

func setupIndex(t *testing.T) *index.Index {
	t.Helper()

	embedder := &fakeEmbedder{
		vectors: map[string][]float32{
			"Intro to MCP by Elena Vasquez": {1, 0, 0},

			"servers expose tools":  {1, 0, 0},
			"clients consume tools": {0.9, 0.1, 0},

			"MCP":         {0.95, 0.05, 0},
			"about tools": {1, 0, 0},
		},
	}

	idx := index.New(repository.NewMemory(), embedder)
	ctx := context.Background()

	gt.NoError(t, idx.UpsertCourse(ctx, &model.Course{
		Title:      "Intro to MCP",
		Link:       "https://example.com/courses/mcp",
		Instructor: "Elena Vasquez",
		Lessons: []model.Lesson{
			{Number: 1, Title: "Servers", Link: "https://example.com/l1"},
			{Number: 2, Title: "Clients", Link: "https://example.com/l2"},
		},
	}))
	gt.NoError(t, idx.UpsertChunks(ctx, []*model.Chunk{
		{CourseTitle: "Intro to MCP", Lesson: lessonPtr(1), Index: 0, Seq: 0, Text: "servers expose tools"},
		{CourseTitle: "Intro to MCP", Lesson: lessonPtr(2), Index: 0, Seq: 1, Text: "clients consume tools"},
	}))

	return idx
}

func TestSearchSpec(t *testing.T) {
	search := course.NewSearch(setupIndex(t), 5)
	spec := search.Spec()

	gt.Equal(t, spec.Name, "search_course_content")
	gt.Equal(t, spec.Parameters.Required, []string{"query"})
	gt.True(t, spec.Parameters.Properties["course_name"] != nil)
	gt.True(t, spec.Parameters.Properties["lesson_number"] != nil)
}

func TestSearchExecute(t *testing.T) {
	ctx := context.Background()
	search := course.NewSearch(setupIndex(t), 5)

	result, err := search.Execute(ctx, map[string]any{"query": "about tools"})
	gt.NoError(t, err)

	gt.S(t, result.Text).Contains("[Intro to MCP - Lesson 1]")
	gt.S(t, result.Text).Contains("servers expose tools")
	gt.S(t, result.Text).Contains("[Intro to MCP - Lesson 2]")

	gt.Equal(t, len(result.Sources), 2)
	gt.Equal(t, result.Sources[0].Label(), "Intro to MCP - Lesson 1")
	gt.Equal(t, result.Sources[0].Link, "https://example.com/l1")
	gt.Equal(t, result.Sources[1].Label(), "Intro to MCP - Lesson 2")
}

func TestSearchExecuteLessonFilter(t *testing.T) {
	ctx := context.Background()
	search := course.NewSearch(setupIndex(t), 5)

	// course_name is fuzzy; lesson_number arrives as float64 from JSON
	result, err := search.Execute(ctx, map[string]any{
		"query":         "about tools",
		"course_name":   "MCP",
		"lesson_number": float64(2),
	})
	gt.NoError(t, err)

	gt.S(t, result.Text).Contains("[Intro to MCP - Lesson 2]")
	gt.S(t, result.Text).NotContains("Lesson 1")
	gt.Equal(t, len(result.Sources), 1)
	gt.Equal(t, result.Sources[0].Label(), "Intro to MCP - Lesson 2")
}

func TestSearchExecuteCourseNotFound(t *testing.T) {
	ctx := context.Background()
	search := course.NewSearch(setupIndex(t), 5)

	result, err := search.Execute(ctx, map[string]any{
		"query":       "about tools",
		"course_name": "Underwater Basket Weaving",
	})
	gt.NoError(t, err)

	gt.Equal(t, result.Text, "No course found matching 'Underwater Basket Weaving'")
	gt.Equal(t, len(result.Sources), 0)
}

func TestSearchExecuteNoResults(t *testing.T) {
	ctx := context.Background()
	search := course.NewSearch(setupIndex(t), 5)

	result, err := search.Execute(ctx, map[string]any{
		"query":         "about tools",
		"course_name":   "MCP",
		"lesson_number": float64(9),
	})
	gt.NoError(t, err)

	gt.S(t, result.Text).Contains("No relevant content found")
	gt.S(t, result.Text).Contains("in course 'Intro to MCP'")
	gt.S(t, result.Text).Contains("in lesson 9")
	gt.Equal(t, len(result.Sources), 0)
}

func TestSearchExecuteMissingQuery(t *testing.T) {
	ctx := context.Background()
	search := course.NewSearch(setupIndex(t), 5)

	_, err := search.Execute(ctx, map[string]any{"course_name": "MCP"})
	gt.Error(t, err)

	_, err = search.Execute(ctx, map[string]any{"query": "   "})
	gt.Error(t, err)
}

package course_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/tool/course"
)

func TestOutlineSpec(t *testing.T) {
	outline := course.NewOutline(setupIndex(t))
	spec := outline.Spec()

	gt.Equal(t, spec.Name, "get_course_outline")
	gt.Equal(t, spec.Parameters.Required, []string{"course_title"})
}

func TestOutlineExecute(t *testing.T) {
	ctx := context.Background()
	outline := course.NewOutline(setupIndex(t))

	result, err := outline.Execute(ctx, map[string]any{"course_title": "MCP"})
	gt.NoError(t, err)

	gt.S(t, result.Text).Contains("**Course:** Intro to MCP")
	gt.S(t, result.Text).Contains("**Course Link:** https://example.com/courses/mcp")
	gt.S(t, result.Text).Contains("**Instructor:** Elena Vasquez")
	gt.S(t, result.Text).Contains("1. Servers")
	gt.S(t, result.Text).Contains("2. Clients")

	gt.Equal(t, len(result.Sources), 1)
	gt.Equal(t, result.Sources[0].CourseTitle, "Intro to MCP")
	gt.Equal(t, result.Sources[0].Link, "https://example.com/courses/mcp")
}

func TestOutlineExecuteNotFound(t *testing.T) {
	ctx := context.Background()
	outline := course.NewOutline(setupIndex(t))

	result, err := outline.Execute(ctx, map[string]any{"course_title": "Knitting"})
	gt.NoError(t, err)
	gt.Equal(t, result.Text, "No course found matching 'Knitting'")
	gt.Equal(t, len(result.Sources), 0)
}

func TestOutlineExecuteMissingTitle(t *testing.T) {
	ctx := context.Background()
	outline := course.NewOutline(setupIndex(t))

	_, err := outline.Execute(ctx, map[string]any{})
	gt.Error(t, err)
}

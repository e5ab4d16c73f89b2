package course

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/tool"
	"github.com/m-mizutani/lectern/pkg/usecase/index"
	"google.golang.org/genai"
)

// Outline is the get_course_outline tool: resolves a fuzzy course title and
// renders the full lesson list from the catalog record.
type Outline struct {
	index *index.Index
}

func NewOutline(idx *index.Index) *Outline {
	return &Outline{index: idx}
}

func (o *Outline) Spec() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "get_course_outline",
		Description: "Get the complete outline and lesson list for a specific course",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"course_title": {
					Type:        genai.TypeString,
					Description: "Course title or partial title (e.g. 'MCP', 'RAG', 'Chroma')",
				},
			},
			Required: []string{"course_title"},
		},
	}
}

func (o *Outline) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	title, ok := args["course_title"].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return nil, goerr.New("course_title is required", goerr.V("args", args))
	}

	resolved, found, err := o.index.ResolveCourseTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if !found {
		return &tool.Result{
			Text: fmt.Sprintf("No course found matching '%s'", title),
		}, nil
	}

	course, err := o.index.GetCourse(ctx, resolved)
	if err != nil {
		return nil, goerr.Wrap(err, "catalog record missing for resolved title", goerr.V("title", resolved))
	}

	lines := []string{
		fmt.Sprintf("**Course:** %s", course.Title),
	}
	if course.Link != "" {
		lines = append(lines, fmt.Sprintf("**Course Link:** %s", course.Link))
	}
	if course.Instructor != "" {
		lines = append(lines, fmt.Sprintf("**Instructor:** %s", course.Instructor))
	}
	lines = append(lines, "**Lessons:**")

	if len(course.Lessons) == 0 {
		lines = append(lines, "  No lessons found")
	}
	for _, lesson := range course.Lessons {
		lines = append(lines, fmt.Sprintf("  %d. %s", lesson.Number, lesson.Title))
	}

	return &tool.Result{
		Text: strings.Join(lines, "\n"),
		Sources: []model.Source{{
			CourseTitle: course.Title,
			Link:        course.Link,
		}},
	}, nil
}

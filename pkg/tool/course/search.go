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

// Search is the search_course_content tool: fuzzy course-name matching
// followed by filtered semantic search over the chunk collection.
type Search struct {
	index *index.Index
	limit int
}

func NewSearch(idx *index.Index, limit int) *Search {
	return &Search{index: idx, limit: limit}
}

func (s *Search) Spec() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "search_course_content",
		Description: "Search course materials with smart course name matching and lesson filtering",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"query": {
					Type:        genai.TypeString,
					Description: "What to search for in the course content",
				},
				"course_name": {
					Type:        genai.TypeString,
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": {
					Type:        genai.TypeInteger,
					Description: "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			Required: []string{"query"},
		},
	}
}

func (s *Search) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, goerr.New("query is required", goerr.V("args", args))
	}

	courseName, _ := args["course_name"].(string)
	lesson := intArg(args, "lesson_number")

	// Stage one: resolve a fuzzy course reference to its canonical title.
	// A miss is reported to the model in-band so the whole turn survives.
	resolved := ""
	if courseName != "" {
		title, found, err := s.index.ResolveCourseTitle(ctx, courseName)
		if err != nil {
			return nil, err
		}
		if !found {
			return &tool.Result{
				Text: fmt.Sprintf("No course found matching '%s'", courseName),
			}, nil
		}
		resolved = title
	}

	result, err := s.index.Search(ctx, query, resolved, lesson, s.limit)
	if err != nil {
		return nil, err
	}

	if len(result.Hits) == 0 {
		return &tool.Result{Text: emptyMessage(resolved, lesson)}, nil
	}

	return formatHits(result.Hits), nil
}

// intArg reads an integer argument. Function call arguments arrive as JSON
// values, so numbers may be float64.
func intArg(args map[string]any, key string) *int {
	switch v := args[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		n := v
		return &n
	case int64:
		n := int(v)
		return &n
	default:
		return nil
	}
}

func emptyMessage(courseTitle string, lesson *int) string {
	msg := "No relevant content found"
	if courseTitle != "" {
		msg += fmt.Sprintf(" in course '%s'", courseTitle)
	}
	if lesson != nil {
		msg += fmt.Sprintf(" in lesson %d", *lesson)
	}
	return msg + "."
}

// formatHits renders hits as [Course Title - Lesson N] blocks and collects
// one citation per distinct (course, lesson), in first-seen order.
func formatHits(hits []*index.Hit) *tool.Result {
	var blocks []string
	var sources []model.Source
	seen := make(map[string]bool)

	for _, hit := range hits {
		source := model.Source{
			CourseTitle: hit.Chunk.CourseTitle,
			Lesson:      hit.Chunk.Lesson,
			Link:        hit.Link,
		}

		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", source.Label(), hit.Chunk.Text))

		if key := source.Key(); !seen[key] {
			seen[key] = true
			sources = append(sources, source)
		}
	}

	return &tool.Result{
		Text:    strings.Join(blocks, "\n\n"),
		Sources: sources,
	}
}

package cli

import (
	"context"

	"github.com/m-mizutani/lectern/pkg/tool/course"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
)

type searchContentParams struct {
	Query        string `json:"query" jsonschema:"What to search for in the course content"`
	CourseName   string `json:"course_name,omitempty" jsonschema:"Course title, partial matches work"`
	LessonNumber *int   `json:"lesson_number,omitempty" jsonschema:"Specific lesson number to search within"`
}

type courseOutlineParams struct {
	CourseTitle string `json:"course_title" jsonschema:"Course title or partial title"`
}

func mcpCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, backendFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the course search tools over MCP (stdio)",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := setupContext(ctx, &cfg)
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			idx := cfg.newIndex(repo, gemini)
			search := course.NewSearch(idx, cfg.tuning.MaxResults)
			outline := course.NewOutline(idx)

			server := mcp.NewServer(&mcp.Implementation{
				Name:    "lectern",
				Version: "1.0.0",
			}, nil)

			mcp.AddTool(server, &mcp.Tool{
				Name:        "search_course_content",
				Description: "Search course materials with smart course name matching and lesson filtering",
			}, func(ctx context.Context, req *mcp.CallToolRequest, params *searchContentParams) (*mcp.CallToolResult, any, error) {
				args := map[string]any{"query": params.Query}
				if params.CourseName != "" {
					args["course_name"] = params.CourseName
				}
				if params.LessonNumber != nil {
					args["lesson_number"] = *params.LessonNumber
				}

				result, err := search.Execute(ctx, args)
				if err != nil {
					return nil, nil, err
				}
				return textResult(result.Text), nil, nil
			})

			mcp.AddTool(server, &mcp.Tool{
				Name:        "get_course_outline",
				Description: "Get the complete outline and lesson list for a specific course",
			}, func(ctx context.Context, req *mcp.CallToolRequest, params *courseOutlineParams) (*mcp.CallToolResult, any, error) {
				result, err := outline.Execute(ctx, map[string]any{
					"course_title": params.CourseTitle,
				})
				if err != nil {
					return nil, nil, err
				}
				return textResult(result.Text), nil, nil
			})

			return server.Run(ctx, &mcp.StdioTransport{})
		},
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

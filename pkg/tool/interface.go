package tool

import (
	"context"

	"github.com/m-mizutani/lectern/pkg/model"
	"google.golang.org/genai"
)

// Result is the outcome of one tool execution: the text block fed back to
// the generative model plus the citations backing it. Citations are scoped
// to this execution only; the orchestrator reads them right after the call.
type Result struct {
	Text    string
	Sources []model.Source
}

// Tool is an operation the generative model can request by name.
type Tool interface {
	// Spec returns the function declaration for Gemini function calling
	Spec() *genai.FunctionDeclaration

	// Execute runs the tool with the given call arguments
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

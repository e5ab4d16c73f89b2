package chat

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/adapter"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/tool"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/system.md
var systemPrompt string

const (
	defaultMaxRounds = 2
	defaultTimeout   = 120 * time.Second

	unavailableMessage = "The course search service is currently unavailable. Please try again later."
)

// UseCase drives the tool-calling loop: it sends the user query plus
// history and tool declarations to Gemini, executes requested tools
// sequentially, feeds results back, and finalizes the answer with the
// citations of the most recent tool round.
type UseCase struct {
	gemini   adapter.Gemini
	registry *tool.Registry
	sessions *SessionStore

	maxRounds int
	timeout   time.Duration
}

type Option func(*UseCase)

// WithMaxRounds bounds the number of tool-invocation rounds per query.
func WithMaxRounds(n int) Option {
	return func(u *UseCase) {
		if n > 0 {
			u.maxRounds = n
		}
	}
}

// WithTimeout bounds the total round-trip latency of one query.
func WithTimeout(d time.Duration) Option {
	return func(u *UseCase) {
		if d > 0 {
			u.timeout = d
		}
	}
}

func New(gemini adapter.Gemini, registry *tool.Registry, sessions *SessionStore, opts ...Option) *UseCase {
	u := &UseCase{
		gemini:    gemini,
		registry:  registry,
		sessions:  sessions,
		maxRounds: defaultMaxRounds,
		timeout:   defaultTimeout,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// Answer is the finalized response to one query.
type Answer struct {
	Text      string
	Sources   []model.Source
	SessionID model.SessionID
}

// Answer runs one query through the tool-calling loop. An empty session id
// starts a new session. History is only appended after successful
// finalization, so a timed-out query can be retried safely.
func (u *UseCase) Answer(ctx context.Context, id model.SessionID, query string) (*Answer, error) {
	if query == "" {
		return nil, goerr.New("query is empty")
	}
	if id == "" {
		id = model.NewSessionID()
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	logger := logging.From(ctx)

	contents := historyContents(u.sessions.History(id))
	contents = append(contents, genai.NewContentFromText(query, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
		Tools:             u.registry.Specs(),
	}

	var sources []model.Source
	degraded := false

	for round := 1; round <= u.maxRounds; round++ {
		if round > 1 {
			config.SystemInstruction = genai.NewContentFromText(u.roundGuidance(round), "")
		}

		resp, err := u.gemini.GenerateContent(ctx, contents, config)
		if err != nil {
			return nil, u.classify(ctx, err)
		}

		content := responseContent(resp)
		if content == nil {
			return nil, goerr.New("model returned no candidates")
		}
		contents = append(contents, content)

		calls := functionCalls(content)
		if len(calls) == 0 {
			text := responseText(content)
			u.sessions.AppendExchange(id, query, text)
			return &Answer{Text: text, Sources: sources, SessionID: id}, nil
		}

		// Execute requested tools sequentially, in request order. The
		// citations of this round replace those of any earlier round.
		var parts []*genai.Part
		var roundSources []model.Source

		for _, fc := range calls {
			result, err := u.registry.Execute(ctx, *fc)
			switch {
			case err == nil:
				roundSources = append(roundSources, result.Sources...)
				parts = append(parts, genai.NewPartFromFunctionResponse(fc.Name, map[string]any{
					"result": result.Text,
				}))

			case errors.Is(err, model.ErrRetrievalUnavailable):
				logger.Warn("retrieval unavailable during tool round",
					"tool", fc.Name, "round", round, "error", err)
				degraded = true
				parts = append(parts, genai.NewPartFromFunctionResponse(fc.Name, map[string]any{
					"error": "search is currently unavailable",
				}))

			default:
				if ctxErr := u.classify(ctx, err); errors.Is(ctxErr, model.ErrRetrievalTimeout) {
					return nil, ctxErr
				}
				logger.Warn("tool execution failed",
					"tool", fc.Name, "round", round, "error", err)
				parts = append(parts, genai.NewPartFromFunctionResponse(fc.Name, map[string]any{
					"error": err.Error(),
				}))
			}
		}

		sources = roundSources
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})

		if degraded {
			break
		}
	}

	// Round limit reached or retrieval went down: force finalization from
	// whatever the rounds produced, with tools disabled.
	text, err := u.finalize(ctx, contents, degraded)
	if err != nil {
		return nil, err
	}

	u.sessions.AppendExchange(id, query, text)
	return &Answer{Text: text, Sources: sources, SessionID: id}, nil
}

// Clear discards the session's conversation history.
func (u *UseCase) Clear(id model.SessionID) {
	u.sessions.Clear(id)
}

// History returns the session's turns, oldest first.
func (u *UseCase) History(id model.SessionID) []model.Turn {
	return u.sessions.History(id)
}

// roundGuidance nudges the model to finish once the first tool round is done.
func (u *UseCase) roundGuidance(round int) string {
	return fmt.Sprintf("%s\n\nThis is tool round %d of up to %d. Only call another tool if it would improve your answer.",
		systemPrompt, round, u.maxRounds)
}

func (u *UseCase) finalize(ctx context.Context, contents []*genai.Content, degraded bool) (string, error) {
	instruction := systemPrompt + "\n\nProvide your final answer based on the tool results above."
	if degraded {
		instruction = systemPrompt + "\n\nNote: the course search service is unavailable. Tell the user so, and answer only from what is already in this conversation."
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, ""),
	}

	resp, err := u.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		if classified := u.classify(ctx, err); errors.Is(classified, model.ErrRetrievalTimeout) {
			return "", classified
		}
		if degraded {
			// Both retrieval and generation are down; report it rather
			// than failing the query.
			return unavailableMessage, nil
		}
		return "", goerr.Wrap(err, "failed to finalize answer")
	}

	content := responseContent(resp)
	if content == nil {
		if degraded {
			return unavailableMessage, nil
		}
		return "", goerr.New("model returned no final answer")
	}

	return responseText(content), nil
}

// classify maps a per-query deadline hit to the timeout failure; other
// errors pass through wrapped.
func (u *UseCase) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return goerr.Wrap(model.ErrRetrievalTimeout, "query deadline exceeded", goerr.V("error", err))
	}
	return goerr.Wrap(err, "failed to generate content")
}

func historyContents(turns []model.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns)+1)
	for _, turn := range turns {
		var role genai.Role = genai.RoleUser
		if turn.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return contents
}

func responseContent(resp *genai.GenerateContentResponse) *genai.Content {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	return resp.Candidates[0].Content
}

func functionCalls(content *genai.Content) []*genai.FunctionCall {
	var calls []*genai.FunctionCall
	for _, part := range content.Parts {
		if part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
		}
	}
	return calls
}

func responseText(content *genai.Content) string {
	text := ""
	for _, part := range content.Parts {
		text += part.Text
	}
	return text
}

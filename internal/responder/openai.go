// ABOUTME: Responder backed by an OpenAI-compatible chat completion API
// ABOUTME: Maps provider failures to typed errors and lifts flowchart blocks into diagrams

package responder

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/2389/mediflow/internal/diagram"
	"github.com/2389/mediflow/internal/session"
)

// DefaultSystemPrompt frames the assistant for medical students.
const DefaultSystemPrompt = `You are MediFlow, a study assistant for medical students.
Answer clearly and concisely. When a stepwise clinical approach helps, append a
fenced block tagged "flowchart" holding JSON of the form
{"title": "...", "steps": [{"title": "...", "detail": "..."}]}.`

// OpenAIOptions configures an OpenAI responder.
type OpenAIOptions struct {
	Model        string
	BaseURL      string
	SystemPrompt string
	// Timeout bounds a single completion call; zero leaves only ctx in control.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// OpenAI generates replies with a chat completion call, using the session
// credential as the API key.
type OpenAI struct {
	opts   OpenAIOptions
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI responder.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &OpenAI{
		opts:   opts,
		logger: opts.Logger.With("component", "responder", "kind", "openai"),
	}
}

func (o *OpenAI) client(credential string) *openai.Client {
	cfg := openai.DefaultConfig(credential)
	if o.opts.BaseURL != "" {
		cfg.BaseURL = o.opts.BaseURL
	}
	if o.opts.HTTPClient != nil {
		cfg.HTTPClient = o.opts.HTTPClient
	}
	return openai.NewClientWithConfig(cfg)
}

// Respond sends the whole history and returns the first choice.
func (o *OpenAI) Respond(ctx context.Context, history []session.Message, credential string) (Reply, error) {
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:    o.opts.Model,
		Messages: buildMessages(o.opts.SystemPrompt, history),
	}

	start := time.Now()
	resp, err := o.client(credential).CreateChatCompletion(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return Reply{}, contextError(ctx)
		}
		return Reply{}, classifyError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Reply{}, &Error{Kind: KindEmptyReply, Err: errors.New("completion had no content")}
	}

	o.logger.Debug("completion received",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(start))

	return splitFlowchart(resp.Choices[0].Message.Content), nil
}

func buildMessages(system string, history []session.Message) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == session.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return msgs
}

// classifyError maps a go-openai failure onto a Kind.
func classifyError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	kind := KindUpstream
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindUnauthorized
	case http.StatusTooManyRequests:
		kind = KindRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		kind = KindTimeout
	}
	return &Error{Kind: kind, Status: status, Err: err}
}

const flowchartFence = "```flowchart"

// splitFlowchart moves a well-formed flowchart block out of the text and
// into an inline diagram payload. Malformed blocks stay in the text.
func splitFlowchart(content string) Reply {
	start := strings.Index(content, flowchartFence)
	if start < 0 {
		return Reply{Text: strings.TrimSpace(content)}
	}
	bodyStart := start + len(flowchartFence)
	end := strings.Index(content[bodyStart:], "```")
	if end < 0 {
		return Reply{Text: strings.TrimSpace(content)}
	}
	body := strings.TrimSpace(content[bodyStart : bodyStart+end])
	if _, err := diagram.Parse([]byte(body)); err != nil {
		return Reply{Text: strings.TrimSpace(content)}
	}
	text := content[:start] + content[bodyStart+end+len("```"):]
	return Reply{Text: strings.TrimSpace(text), DiagramPayload: body}
}

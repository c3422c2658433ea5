package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client is the interface for one configured completion endpoint.
type Client interface {
	// Name returns the model's display name, used as the message author.
	Name() string

	// Complete sends the conversation and returns a single completion,
	// trimmed of surrounding whitespace. Exactly one attempt is made;
	// retry policy belongs to the caller. Failures are *ModelError.
	Complete(ctx context.Context, conversation []Message) (string, error)
}

// OpenAICompatClient works with any OpenAI-compatible API.
type OpenAICompatClient struct {
	client *openai.Client
	desc   ModelDescriptor
}

// NewClient creates a client for the given model descriptor.
func NewClient(desc ModelDescriptor) *OpenAICompatClient {
	opts := []option.RequestOption{
		option.WithAPIKey(desc.APIKey),
		// One attempt per call; the stage runner decides what happens next.
		option.WithMaxRetries(0),
	}
	if desc.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(desc.BaseURL))
	}
	if desc.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(desc.RequestTimeout))
	}

	client := openai.NewClient(opts...)
	return &OpenAICompatClient{client: &client, desc: desc}
}

func (c *OpenAICompatClient) Name() string { return c.desc.Name }

func (c *OpenAICompatClient) Complete(ctx context.Context, conversation []Message) (string, error) {
	if len(conversation) == 0 {
		return "", &ModelError{Kind: ErrInvalidResponse, Model: c.desc.Name, Err: fmt.Errorf("empty conversation")}
	}

	params := openai.ChatCompletionNewParams{
		Model:    c.desc.Model,
		Messages: convertMessages(c.desc.Name, conversation),
	}
	if c.desc.MaxCompletionTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.desc.MaxCompletionTokens)
	}
	if len(c.desc.ExtraBody) > 0 {
		params.SetExtraFields(c.desc.ExtraBody)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(c.desc.Name, err)
	}

	if len(completion.Choices) == 0 {
		return "", &ModelError{Kind: ErrInvalidResponse, Model: c.desc.Name, Err: fmt.Errorf("no choices returned")}
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", &ModelError{Kind: ErrInvalidResponse, Model: c.desc.Name, Err: fmt.Errorf("empty completion")}
	}
	return content, nil
}

// convertMessages maps transcript messages onto API roles from the point of
// view of the model named self: its own past messages become assistant
// turns, everyone else's become user turns with the author prepended so the
// model can tell participants apart. Input order is preserved.
func convertMessages(self string, msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.Role == RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case m.Author == self:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			content := m.Content
			if !strings.HasPrefix(content, m.Author+":") {
				content = m.Author + ": " + content
			}
			out = append(out, openai.UserMessage(content))
		}
	}
	return out
}

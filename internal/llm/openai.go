package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAICompleter struct {
	client openai.Client
}

var _ Completer = (*OpenAICompleter)(nil)

// NewOpenAICompleter targets any OpenAI-compatible endpoint. Retries are left
// to the caller's retry policy.
func NewOpenAICompleter(apiKey, baseURL string, timeout time.Duration) *OpenAICompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAICompleter{client: openai.NewClient(opts...)}
}

func (o *OpenAICompleter) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			params = append(params, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			params = append(params, openai.AssistantMessage(msg.Content))
		default:
			params = append(params, openai.UserMessage(msg.Content))
		}
	}

	req := openai.ChatCompletionNewParams{
		Messages:    params,
		Model:       opts.Model,
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	res, err := o.client.Chat.Completions.New(ctx, req)
	if err != nil {
		slog.Error("openai error: chat completions failed", "model", opts.Model, "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return res.Choices[0].Message.Content, nil
}

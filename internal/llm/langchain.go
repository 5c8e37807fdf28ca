package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type LangchainCompleter struct {
	client *openai.LLM
}

var _ Completer = (*LangchainCompleter)(nil)

func NewLangchainCompleter(apiKey, baseURL, model string) (*LangchainCompleter, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create langchain OpenAI client: %w", err)
	}

	return &LangchainCompleter{client: client}, nil
}

func messageType(role Role) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func (l *LangchainCompleter) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(messageType(msg.Role), msg.Content))
	}

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(opts.Model))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	res, err := l.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		slog.Error("langchain error: generate content failed", "model", opts.Model, "error", err)
		return "", fmt.Errorf("chat completion failed: %w", withStatus(err))
	}

	if len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return res.Choices[0].Content, nil
}

package llm

import (
	"fmt"
	"log/slog"
	"time"
)

type Backend string

const (
	BackendOpenAI    Backend = "openai"
	BackendLangchain Backend = "langchain"
)

type Config struct {
	Backend Backend
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewCompleter(cfg Config) (Completer, error) {
	switch cfg.Backend {
	case BackendOpenAI, "":
		slog.Info("creating openai-go completer", "base_url", cfg.BaseURL)
		return NewOpenAICompleter(cfg.APIKey, cfg.BaseURL, cfg.Timeout), nil
	case BackendLangchain:
		slog.Info("creating langchain completer", "base_url", cfg.BaseURL)
		return NewLangchainCompleter(cfg.APIKey, cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported llm backend: %s", cfg.Backend)
	}
}

package augment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"dermai-backend/internal/llm"
	"dermai-backend/internal/metrics"
	"dermai-backend/internal/retry"
	"dermai-backend/pkg/api"

	lru "github.com/hashicorp/golang-lru/v2"
)

const FallbackMessage = "Unable to get enhanced analysis. Please try again later."

const (
	temperature = 0.7
	maxTokens   = 2000
)

type Cache = lru.Cache[string, api.DetailedAnalysis]

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("augment cache size must be positive, got %d", size)
	}
	return lru.New[string, api.DetailedAnalysis](size)
}

// Augmenter asks the LLM to elaborate on a classification report and parses
// the reply into sections. Parsed replies are cached by report content.
type Augmenter struct {
	completer llm.Completer
	cache     *Cache
	policy    retry.Policy
	model     string
}

func NewAugmenter(completer llm.Completer, cache *Cache, model string, policy retry.Policy) *Augmenter {
	return &Augmenter{
		completer: completer,
		cache:     cache,
		policy:    policy.WithRetryable(llm.IsTransient),
		model:     model,
	}
}

func FallbackAnalysis() api.DetailedAnalysis {
	fallback := func() []string { return []string{FallbackMessage} }
	return api.DetailedAnalysis{
		Overview:   fallback(),
		Symptoms:   fallback(),
		Treatment:  fallback(),
		Prevention: fallback(),
		Warning:    fallback(),
	}
}

func cacheKey(report string) string {
	sum := sha256.Sum256([]byte(report))
	return hex.EncodeToString(sum[:])
}

// Augment returns the parsed sections and true, or the fallback sections and
// false when the LLM could not produce a usable answer.
func (a *Augmenter) Augment(ctx context.Context, report string) (api.DetailedAnalysis, bool) {
	key := cacheKey(report)
	if cached, ok := a.cache.Get(key); ok {
		metrics.AugmentCacheTotal.WithLabelValues("hit").Inc()
		return cached, true
	}
	metrics.AugmentCacheTotal.WithLabelValues("miss").Inc()

	if a.completer == nil {
		slog.Warn("no llm configured, returning fallback analysis")
		return FallbackAnalysis(), false
	}

	prompt, err := buildPrompt(report)
	if err != nil {
		slog.Error("error rendering analysis prompt", "error", err)
		return FallbackAnalysis(), false
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}
	opts := llm.Options{Model: a.model, Temperature: temperature, MaxTokens: maxTokens}

	var reply string
	err = a.policy.Do(ctx, "augment_analysis", func() error {
		var err error
		reply, err = a.completer.Complete(ctx, messages, opts)
		return err
	})
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("augment", "error").Inc()
		slog.Error("llm analysis request failed", "error", err, "kind", llm.Classify(err))
		return FallbackAnalysis(), false
	}
	metrics.LLMRequestsTotal.WithLabelValues("augment", "success").Inc()

	sections := ParseSections(reply)
	if sections.Empty() {
		slog.Warn("llm reply contained no recognizable sections", "reply_length", len(reply))
		return FallbackAnalysis(), false
	}

	a.cache.Add(key, sections)
	return sections, true
}

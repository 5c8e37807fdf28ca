package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dermai-backend/internal/core/utils"
	"dermai-backend/internal/database"
	"dermai-backend/internal/llm"
	"dermai-backend/internal/metrics"
	"dermai-backend/internal/retry"
)

const (
	HistoryLimit = 5

	temperature = 0.7
	maxTokens   = 1000

	DefaultMaxActiveUsers = 1024
)

var ErrEmptyMessage = errors.New("Message must not be empty")

var kindMessages = map[llm.ErrorKind]string{
	llm.KindAuth:       "Authentication error with AI service. Please check API key.",
	llm.KindConnection: "Unable to connect to AI service. Please try again later.",
	llm.KindRateLimit:  "Rate limit exceeded. Please try again in a few moments.",
}

const busyMessage = "Too many active conversations. Please try again in a few moments."

// Result is always returned to the caller, failures included.
type Result struct {
	Success   bool
	Response  string
	Error     string
	Kind      llm.ErrorKind
	UserID    string
	Timestamp time.Time
}

func failure(userID string, kind llm.ErrorKind, msg string) Result {
	return Result{Success: false, Error: msg, Kind: kind, UserID: userID, Timestamp: time.Now().UTC()}
}

func errorMessage(kind llm.ErrorKind, err error) string {
	if msg, ok := kindMessages[kind]; ok {
		return msg
	}
	return fmt.Sprintf("An unexpected error occurred: %v", err)
}

// Orchestrator runs chat turns against the LLM. All conversation state lives
// in the database, keyed by user id.
type Orchestrator struct {
	store     *database.Store
	completer llm.Completer
	policy    retry.Policy
	locks     *utils.KeyedLock
	model     string
}

// NewOrchestrator bounds the number of users with a turn in flight or queued
// to maxActiveUsers; values <= 0 use DefaultMaxActiveUsers.
func NewOrchestrator(store *database.Store, completer llm.Completer, model string, policy retry.Policy, maxActiveUsers int) *Orchestrator {
	if maxActiveUsers <= 0 {
		maxActiveUsers = DefaultMaxActiveUsers
	}
	return &Orchestrator{
		store:     store,
		completer: completer,
		policy:    policy.WithRetryable(llm.IsTransient),
		locks:     utils.NewKeyedLock(maxActiveUsers),
		model:     model,
	}
}

func (o *Orchestrator) LLMConfigured() bool {
	return o.completer != nil
}

func buildMessages(history []database.ChatMessage, userInput string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	for _, h := range history {
		role := llm.RoleUser
		if h.Role == database.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: h.Content})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: wrapUserMessage(userInput)})
}

func (o *Orchestrator) Respond(ctx context.Context, userInput, userID string) Result {
	if strings.TrimSpace(userInput) == "" {
		return failure(userID, llm.KindOther, ErrEmptyMessage.Error())
	}

	slog.Info("processing chat request", "user_id", userID)

	if o.completer == nil {
		return failure(userID, llm.KindAuth, kindMessages[llm.KindAuth])
	}

	// Turns for one user are serialized so their history rows never interleave.
	unlock, err := o.locks.Lock(ctx, userID)
	if errors.Is(err, utils.ErrTooManyKeys) {
		slog.Warn("too many active chat users", "user_id", userID)
		return failure(userID, llm.KindRateLimit, busyMessage)
	}
	if err != nil {
		slog.Error("error acquiring chat lock", "user_id", userID, "error", err)
		return failure(userID, llm.KindOther, errorMessage(llm.KindOther, err))
	}
	defer unlock()

	history, err := o.store.RecentChatMessages(ctx, userID, HistoryLimit)
	if err != nil {
		slog.Error("error loading chat history", "user_id", userID, "error", err)
		return failure(userID, llm.KindOther, errorMessage(llm.KindOther, err))
	}

	messages := buildMessages(history, userInput)
	opts := llm.Options{Model: o.model, Temperature: temperature, MaxTokens: maxTokens}

	var reply string
	err = o.policy.Do(ctx, "chat_completion", func() error {
		r, err := o.completer.Complete(ctx, messages, opts)
		if err != nil {
			return err
		}
		reply = strings.TrimSpace(r)
		if reply == "" {
			return llm.ErrEmptyResponse
		}
		return nil
	})
	if err != nil {
		kind := llm.Classify(err)
		metrics.LLMRequestsTotal.WithLabelValues("chat", "error").Inc()
		slog.Error("chat completion failed", "user_id", userID, "kind", kind, "error", err)
		return failure(userID, kind, errorMessage(kind, err))
	}
	metrics.LLMRequestsTotal.WithLabelValues("chat", "success").Inc()

	if err := o.store.SaveChatTurn(ctx, userID, userInput, reply); err != nil {
		slog.Error("error saving chat turn", "user_id", userID, "error", err)
		return failure(userID, llm.KindOther, errorMessage(llm.KindOther, err))
	}

	return Result{Success: true, Response: reply, UserID: userID, Timestamp: time.Now().UTC()}
}

func (o *Orchestrator) Clear(ctx context.Context, userID string) Result {
	deleted, err := o.store.DeleteChatHistory(ctx, userID)
	if err != nil {
		return failure(userID, llm.KindOther, err.Error())
	}

	slog.Info("cleared chat history", "user_id", userID, "deleted", deleted)
	return Result{Success: true, Response: "Conversation history cleared", UserID: userID, Timestamp: time.Now().UTC()}
}

func (o *Orchestrator) History(ctx context.Context, userID string) ([]database.ChatMessage, error) {
	return o.store.ChatHistory(ctx, userID)
}

type Health struct {
	DatabaseErr   error
	LLMConfigured bool
}

func (h Health) Healthy() bool {
	return h.DatabaseErr == nil && h.LLMConfigured
}

func (o *Orchestrator) Health(ctx context.Context) Health {
	return Health{DatabaseErr: o.store.Ping(ctx), LLMConfigured: o.LLMConfigured()}
}

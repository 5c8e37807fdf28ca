package api

import (
	"net/http"
	"strings"
	"time"

	"dermai-backend/internal/chat"
	"dermai-backend/pkg/api"

	"github.com/go-chi/chi/v5"
)

type ChatService struct {
	orchestrator *chat.Orchestrator
}

func NewChatService(orchestrator *chat.Orchestrator) *ChatService {
	return &ChatService{orchestrator: orchestrator}
}

func (s *ChatService) AddRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Post("/", RestHandler(s.SendMessage))
		r.Post("/clear", RestHandler(s.ClearHistory))
		r.Get("/history", RestHandler(s.GetHistory))
		r.Get("/health", RestHandler(s.Health))
	})
}

func (s *ChatService) SendMessage(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ChatRequest](r)
	if err != nil {
		return nil, err
	}

	if req.Message == "" || req.UserID == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "Missing required fields: message and user_id")
	}
	if err := validateUserID(req.UserID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, CodedError(http.StatusBadRequest, chat.ErrEmptyMessage)
	}

	res := s.orchestrator.Respond(r.Context(), req.Message, req.UserID)

	return api.ChatResponse{
		Success:   res.Success,
		Response:  res.Response,
		Error:     res.Error,
		Timestamp: res.Timestamp,
		UserID:    res.UserID,
	}, nil
}

func (s *ChatService) ClearHistory(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ClearChatRequest](r)
	if err != nil {
		return nil, err
	}

	if req.UserID == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "Missing required field: user_id")
	}

	res := s.orchestrator.Clear(r.Context(), req.UserID)
	if !res.Success {
		return WithStatus(http.StatusInternalServerError, api.ClearChatResponse{
			Success:   false,
			Error:     res.Error,
			UserID:    res.UserID,
			Timestamp: res.Timestamp,
		}), nil
	}

	return api.ClearChatResponse{
		Success:   true,
		Message:   res.Response,
		UserID:    res.UserID,
		Timestamp: res.Timestamp,
	}, nil
}

func (s *ChatService) GetHistory(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.UserQuery](r)
	if err != nil {
		return nil, err
	}

	if params.UserID == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "Missing required parameter: user_id")
	}

	messages, err := s.orchestrator.History(r.Context(), params.UserID)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving chat history: %v", err)
	}

	history := make([]api.ChatHistoryItem, 0, len(messages))
	for _, msg := range messages {
		history = append(history, api.ChatHistoryItem{
			ID:        msg.ID,
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp.UTC(),
		})
	}

	return api.ChatHistoryResponse{
		Success:   true,
		History:   history,
		UserID:    params.UserID,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (s *ChatService) Health(r *http.Request) (any, error) {
	health := s.orchestrator.Health(r.Context())

	resp := api.ChatHealthResponse{
		Success:   health.Healthy(),
		Status:    "healthy",
		Database:  "connected",
		API:       "configured",
		Timestamp: time.Now().UTC(),
	}

	if health.DatabaseErr != nil {
		resp.Database = "disconnected"
		resp.Error = health.DatabaseErr.Error()
	}
	if !health.LLMConfigured {
		resp.API = "missing"
		if resp.Error == "" {
			resp.Error = "GROQ_API_KEY not found in environment"
		}
	}

	if !resp.Success {
		resp.Status = "unhealthy"
		return WithStatus(http.StatusInternalServerError, resp), nil
	}
	return resp, nil
}

package api

import "time"

type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type ChatResponse struct {
	Success   bool      `json:"success"`
	Response  string    `json:"response,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
}

type ClearChatRequest struct {
	UserID string `json:"user_id"`
}

type ClearChatResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatHistoryItem struct {
	ID        uint      `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatHistoryResponse struct {
	Success   bool              `json:"success"`
	History   []ChatHistoryItem `json:"history"`
	UserID    string            `json:"user_id"`
	Timestamp time.Time         `json:"timestamp"`
}

type ChatHealthResponse struct {
	Success   bool      `json:"success"`
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	API       string    `json:"api"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

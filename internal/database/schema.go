package database

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser      string = "user"
	RoleAssistant string = "assistant"
)

type ChatMessage struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    string    `gorm:"size:50;not null;index;index:idx_chat_messages_user_time,priority:1"`
	Role      string    `gorm:"size:20;not null"`
	Content   string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null;index:idx_chat_messages_user_time,priority:2"`
}

type SkinAnalysisResult struct {
	ID               uint           `gorm:"primaryKey"`
	UserID           string         `gorm:"size:50;not null;index;index:idx_skin_analysis_results_user_time,priority:1"`
	Timestamp        time.Time      `gorm:"not null;index:idx_skin_analysis_results_user_time,priority:2;index:idx_skin_analysis_results_time"`
	ImagePath        string         `gorm:"size:255;not null"`
	PrimaryCondition string         `gorm:"size:100;not null"`
	Confidence       float64        `gorm:"not null"`
	DetailedAnalysis datatypes.JSON `gorm:"not null"`
}

package migration_1

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type ChatMessage struct {
	UserID    string    `gorm:"size:50;not null;index:idx_chat_messages_user_time,priority:1"`
	Timestamp time.Time `gorm:"not null;index:idx_chat_messages_user_time,priority:2"`
}

type SkinAnalysisResult struct {
	UserID    string    `gorm:"size:50;not null;index:idx_skin_analysis_results_user_time,priority:1"`
	Timestamp time.Time `gorm:"not null;index:idx_skin_analysis_results_user_time,priority:2;index:idx_skin_analysis_results_time"`
}

var indexes = []struct {
	model any
	name  string
}{
	{&ChatMessage{}, "idx_chat_messages_user_time"},
	{&SkinAnalysisResult{}, "idx_skin_analysis_results_user_time"},
	{&SkinAnalysisResult{}, "idx_skin_analysis_results_time"},
}

func Migration(db *gorm.DB) error {
	for _, idx := range indexes {
		if db.Migrator().HasIndex(idx.model, idx.name) {
			continue
		}
		if err := db.Migrator().CreateIndex(idx.model, idx.name); err != nil {
			return fmt.Errorf("error creating index %s: %w", idx.name, err)
		}
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	for _, idx := range indexes {
		if err := db.Migrator().DropIndex(idx.model, idx.name); err != nil {
			return fmt.Errorf("error dropping index %s: %w", idx.name, err)
		}
	}
	return nil
}

package migration_0

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMessage struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    string    `gorm:"size:50;not null;index"`
	Role      string    `gorm:"size:20;not null"`
	Content   string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null"`
}

type SkinAnalysisResult struct {
	ID               uint           `gorm:"primaryKey"`
	UserID           string         `gorm:"size:50;not null;index"`
	Timestamp        time.Time      `gorm:"not null"`
	ImagePath        string         `gorm:"size:255;not null"`
	PrimaryCondition string         `gorm:"size:100;not null"`
	Confidence       float64        `gorm:"not null"`
	DetailedAnalysis datatypes.JSON `gorm:"not null"`
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&ChatMessage{}, &SkinAnalysisResult{}); err != nil {
		return fmt.Errorf("initial migration failed: %w", err)
	}
	return nil
}

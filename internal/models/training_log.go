package models

import "time"

// TrainingLogLine is one line of a training run's output as held by the log
// source. ID order is arrival order.
type TrainingLogLine struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	TrainingID string    `gorm:"size:128;not null;index:idx_training_line,priority:1"`
	ConfigID   int       `gorm:"default:1"`
	Content    string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index:idx_training_line,priority:2"`
}

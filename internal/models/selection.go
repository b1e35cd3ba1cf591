package models

import "time"

// Selection is one persisted key of the user's selected context, such as
// the active configuration or environment id.
type Selection struct {
	Key       string `gorm:"primaryKey;size:32"`
	Value     int    `gorm:"not null"`
	UpdatedAt time.Time
}

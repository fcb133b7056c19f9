package models

import "time"

// ConversationState persists an in-progress conversation so a restart does
// not drop guards mid-procedure. One row per phone.
type ConversationState struct {
	Phone          string    `gorm:"primaryKey;size:32"`
	StateID        string    `gorm:"size:36;not null;uniqueIndex"`
	ProcedureID    string    `gorm:"size:64;not null"`
	Step           int       `gorm:"not null"`
	Retries        int       `gorm:"default:0"`
	CompletedSteps string    `gorm:"type:json"` // JSON array of 1-based step numbers
	History        string    `gorm:"type:json"` // JSON array of turns
	Menu           string    `gorm:"type:json"` // JSON array of intent labels
	StartedAt      time.Time
	LastActivityAt time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

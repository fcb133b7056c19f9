package models

import "time"

// Incident is the record of one finished conversation: resolved by the
// guard, escalated to a supervisor, or abandoned after going idle.
type Incident struct {
	ID             string    `gorm:"primaryKey;size:36"`
	StateID        string    `gorm:"size:36;index"`
	Phone          string    `gorm:"size:32;not null;index"`
	ProcedureID    string    `gorm:"size:64;index"`
	Issue          string    `gorm:"size:256;not null"`
	Outcome        string    `gorm:"size:16;not null;index"` // resolved, escalated, abandoned
	Reason         string    `gorm:"type:text"`
	Step           int       `gorm:"default:0"`
	TotalSteps     int       `gorm:"default:0"`
	CompletedSteps string    `gorm:"type:json"` // JSON array of step instructions
	Transcript     string    `gorm:"type:mediumtext"`
	StartedAt      *time.Time
	EndedAt        time.Time `gorm:"index"`
	CreatedAt      time.Time
}

// ShiftHandoff records a guard signing off their shift.
type ShiftHandoff struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Phone     string    `gorm:"size:32;not null;index"`
	Notes     string    `gorm:"type:text"`
	SignedOff time.Time `gorm:"index"`
	CreatedAt time.Time
}

// GuardReport stores a free-form report texted in by a guard.
type GuardReport struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	Phone      string    `gorm:"size:32;not null;index"`
	Body       string    `gorm:"type:text;not null"`
	ReceivedAt time.Time `gorm:"index"`
	CreatedAt  time.Time
}

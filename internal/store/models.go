package store

import "time"

// Lead is one row of the leads table. Email is nullable so anonymous
// callers never collide on the unique index.
type Lead struct {
	ID        uint    `gorm:"primaryKey"`
	Name      string  `gorm:"type:varchar(255);not null"`
	Email     *string `gorm:"type:varchar(255);uniqueIndex"`
	Status    string  `gorm:"type:varchar(64);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Lead) TableName() string {
	return "leads"
}

// Call is one saved conversation.
type Call struct {
	ID          uint   `gorm:"primaryKey"`
	LeadID      uint   `gorm:"not null;index"`
	MissionName string `gorm:"type:varchar(255)"`
	Transcript  string `gorm:"type:text"`
	AISummary   string `gorm:"column:ai_summary;type:text"`
	CallDate    time.Time
}

func (Call) TableName() string {
	return "calls"
}

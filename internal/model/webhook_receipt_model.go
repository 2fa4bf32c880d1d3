package model

import (
	"time"

	"github.com/google/uuid"
)

type WebhookEventReceipt struct {
	Id          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EventID     string     `gorm:"type:varchar(255);not null;uniqueIndex:ux_webhook_receipts_event_id"`
	Type        string     `gorm:"type:varchar(100);not null;index"`
	PayloadHash string     `gorm:"type:varchar(64);not null"`
	Status      string     `gorm:"type:varchar(20);not null;index"`
	Handled     bool       `gorm:"not null;default:false"`
	Outcome     string     `gorm:"type:text"`
	ProcessedAt *time.Time `gorm:"type:timestamp"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

func (WebhookEventReceipt) TableName() string {
	return "webhook_event_receipts"
}

type DeadLetterEntry struct {
	Id            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EventID       string     `gorm:"type:varchar(255);not null;uniqueIndex:ux_dead_letters_event_id"`
	EventType     string     `gorm:"type:varchar(100);not null;index"`
	Payload       []byte     `gorm:"type:bytea;not null"`
	Reason        string     `gorm:"type:text;not null"`
	RetryCount    int        `gorm:"not null;default:0"`
	LastAttemptAt time.Time  `gorm:"not null"`
	ReplayedAt    *time.Time `gorm:"type:timestamp"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index"`
}

func (DeadLetterEntry) TableName() string {
	return "dead_letter_entries"
}

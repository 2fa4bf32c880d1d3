package model

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Actor      string    `gorm:"type:varchar(255);not null"`
	Action     string    `gorm:"type:varchar(100);not null;index"`
	EntityType string    `gorm:"type:varchar(100);not null;index"`
	EntityID   string    `gorm:"type:varchar(255);not null;index"`
	Details    *string   `gorm:"type:jsonb"`
	CreatedAt  time.Time `gorm:"default:now();not null;index"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

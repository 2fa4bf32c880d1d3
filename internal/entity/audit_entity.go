package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is an append-only record of a mutating operation.
type AuditLog struct {
	Id         uuid.UUID
	Actor      string
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]interface{}
	CreatedAt  time.Time
}

package contract

import (
	"context"

	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/repository/specification"
)

// AuditRepository is append-only.
type AuditRepository interface {
	Create(ctx context.Context, log *entity.AuditLog) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.AuditLog, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

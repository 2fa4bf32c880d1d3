package contract

import (
	"context"

	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/repository/specification"
)

// LedgerRepository is append-only: transactions are created once and never
// updated or deleted.
type LedgerRepository interface {
	Create(ctx context.Context, tx *entity.LedgerTransaction) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.LedgerTransaction, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.LedgerTransaction, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

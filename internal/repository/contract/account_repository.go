package contract

import (
	"context"

	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/repository/specification"
)

type AccountRepository interface {
	Create(ctx context.Context, account *entity.Account) error
	// UpdateBalance persists a recomputed balance for a locked account row.
	UpdateBalance(ctx context.Context, account *entity.Account) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Account, error)
}

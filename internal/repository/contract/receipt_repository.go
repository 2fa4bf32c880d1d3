package contract

import (
	"context"

	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/repository/specification"
)

type ReceiptRepository interface {
	Create(ctx context.Context, receipt *entity.WebhookEventReceipt) error
	// Update mutates a receipt; callers must never touch a handled receipt.
	Update(ctx context.Context, receipt *entity.WebhookEventReceipt) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.WebhookEventReceipt, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.WebhookEventReceipt, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

type DeadLetterRepository interface {
	Create(ctx context.Context, entry *entity.DeadLetterEntry) error
	Update(ctx context.Context, entry *entity.DeadLetterEntry) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DeadLetterEntry, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DeadLetterEntry, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

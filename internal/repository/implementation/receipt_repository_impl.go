package implementation

import (
	"context"
	"errors"

	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/mapper"
	"ad-studio-be/internal/model"
	"ad-studio-be/internal/repository/contract"
	"ad-studio-be/internal/repository/specification"

	"gorm.io/gorm"
)

type ReceiptRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.BillingMapper
}

func NewReceiptRepository(db *gorm.DB) contract.ReceiptRepository {
	return &ReceiptRepositoryImpl{
		db:     db,
		mapper: mapper.NewBillingMapper(),
	}
}

func (r *ReceiptRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ReceiptRepositoryImpl) Create(ctx context.Context, receipt *entity.WebhookEventReceipt) error {
	m := r.mapper.ReceiptToModel(receipt)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*receipt = *r.mapper.ReceiptToEntity(m)
	return nil
}

func (r *ReceiptRepositoryImpl) Update(ctx context.Context, receipt *entity.WebhookEventReceipt) error {
	m := r.mapper.ReceiptToModel(receipt)
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *ReceiptRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.WebhookEventReceipt, error) {
	var m model.WebhookEventReceipt
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ReceiptToEntity(&m), nil
}

func (r *ReceiptRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.WebhookEventReceipt, error) {
	var models []*model.WebhookEventReceipt
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.WebhookEventReceipt, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ReceiptToEntity(m)
	}
	return entities, nil
}

func (r *ReceiptRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.WebhookEventReceipt{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

type DeadLetterRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.BillingMapper
}

func NewDeadLetterRepository(db *gorm.DB) contract.DeadLetterRepository {
	return &DeadLetterRepositoryImpl{
		db:     db,
		mapper: mapper.NewBillingMapper(),
	}
}

func (r *DeadLetterRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DeadLetterRepositoryImpl) Create(ctx context.Context, entry *entity.DeadLetterEntry) error {
	m := r.mapper.DeadLetterToModel(entry)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*entry = *r.mapper.DeadLetterToEntity(m)
	return nil
}

func (r *DeadLetterRepositoryImpl) Update(ctx context.Context, entry *entity.DeadLetterEntry) error {
	m := r.mapper.DeadLetterToModel(entry)
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *DeadLetterRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DeadLetterEntry, error) {
	var m model.DeadLetterEntry
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.DeadLetterToEntity(&m), nil
}

func (r *DeadLetterRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DeadLetterEntry, error) {
	var models []*model.DeadLetterEntry
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.DeadLetterEntry, len(models))
	for i, m := range models {
		entities[i] = r.mapper.DeadLetterToEntity(m)
	}
	return entities, nil
}

func (r *DeadLetterRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.DeadLetterEntry{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

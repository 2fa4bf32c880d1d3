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

type LedgerRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.BillingMapper
}

func NewLedgerRepository(db *gorm.DB) contract.LedgerRepository {
	return &LedgerRepositoryImpl{
		db:     db,
		mapper: mapper.NewBillingMapper(),
	}
}

func (r *LedgerRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *LedgerRepositoryImpl) Create(ctx context.Context, tx *entity.LedgerTransaction) error {
	m := r.mapper.TransactionToModel(tx)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*tx = *r.mapper.TransactionToEntity(m)
	return nil
}

func (r *LedgerRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.LedgerTransaction, error) {
	var m model.LedgerTransaction
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.TransactionToEntity(&m), nil
}

func (r *LedgerRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.LedgerTransaction, error) {
	var models []*model.LedgerTransaction
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.LedgerTransaction, len(models))
	for i, m := range models {
		entities[i] = r.mapper.TransactionToEntity(m)
	}
	return entities, nil
}

func (r *LedgerRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.LedgerTransaction{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

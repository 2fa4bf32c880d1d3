package service

import (
	"context"
	"time"

	"ad-studio-be/internal/dto"
	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/pkg/logger"
	"ad-studio-be/internal/repository/specification"
	"ad-studio-be/internal/repository/unitofwork"
	"ad-studio-be/pkg/events"
	pktNats "ad-studio-be/pkg/nats"

	"github.com/google/uuid"
)

// IAuditService appends one row per mutating operation. Writes ride the
// caller's unit of work so the audit row commits (or rolls back) with the
// mutation it describes; the NATS mirror is best-effort.
type IAuditService interface {
	Record(ctx context.Context, uow unitofwork.UnitOfWork, actor, action, entityType, entityID string, details map[string]interface{})
	List(ctx context.Context, limit, offset int) ([]*dto.AuditLogResponse, error)
}

type auditService struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  *pktNats.Publisher
	logger     logger.ILogger
}

func NewAuditService(uowFactory unitofwork.RepositoryFactory, publisher *pktNats.Publisher, logger logger.ILogger) IAuditService {
	return &auditService{
		uowFactory: uowFactory,
		publisher:  publisher,
		logger:     logger,
	}
}

func (s *auditService) Record(ctx context.Context, uow unitofwork.UnitOfWork, actor, action, entityType, entityID string, details map[string]interface{}) {
	entry := &entity.AuditLog{
		Id:         uuid.New(),
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  time.Now(),
	}

	if err := uow.AuditRepository().Create(ctx, entry); err != nil {
		// The audit row shares the caller's transaction; a failed append must
		// not be silently dropped from observability.
		s.logger.Error("AUDIT", "Failed to append audit log", map[string]interface{}{
			"action": action,
			"entity": entityType,
			"error":  err.Error(),
		})
		return
	}

	if s.publisher != nil {
		evt := events.BaseEvent{
			Type: "AUDIT_" + action,
			Data: map[string]interface{}{
				"actor":       actor,
				"action":      action,
				"entity_type": entityType,
				"entity_id":   entityID,
				"details":     details,
				"occurred_at": entry.CreatedAt,
			},
			OccurredAt: entry.CreatedAt,
		}
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("AUDIT", "Failed to mirror audit event to NATS", map[string]interface{}{
				"action": action,
				"error":  err.Error(),
			})
		}
	}
}

func (s *auditService) List(ctx context.Context, limit, offset int) ([]*dto.AuditLogResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	logs, err := uow.AuditRepository().FindAll(ctx,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.AuditLogResponse, len(logs))
	for i, l := range logs {
		res[i] = &dto.AuditLogResponse{
			Id:         l.Id,
			Actor:      l.Actor,
			Action:     l.Action,
			EntityType: l.EntityType,
			EntityID:   l.EntityID,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt,
		}
	}
	return res, nil
}

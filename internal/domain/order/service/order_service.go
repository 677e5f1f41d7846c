package service

import (
	"context"
	"fmt"

	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/repository"
	"storefront/internal/domain/order/statemachine"

	"go.uber.org/zap"
)

// OrderService 后台订单查询与人工改状态
type OrderService interface {
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	// NextStates 返回订单当前状态下允许流转到的状态
	NextStates(ctx context.Context, id string) (model.Status, []model.Status, error)
	// UpdateStatus 人工修改状态，状态机拒绝时返回 ErrTransitionRejected
	UpdateStatus(ctx context.Context, id, status string) (*model.Order, error)
}

type orderService struct {
	repo   repository.OrderRepository
	writer *orderWriter
	log    *zap.Logger
}

func NewOrderService(repo repository.OrderRepository, publisher EventPublisher, log *zap.Logger) OrderService {
	return &orderService{
		repo:   repo,
		writer: newOrderWriter(repo, publisher, log),
		log:    log,
	}
}

func (s *orderService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *orderService) NextStates(ctx context.Context, id string) (model.Status, []model.Status, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", nil, err
	}
	return order.Status, statemachine.NextStates(order.Status), nil
}

func (s *orderService) UpdateStatus(ctx context.Context, id, status string) (*model.Order, error) {
	to, ok := model.ParseStatus(status)
	if !ok {
		return nil, invalid(ErrInvalidStatus, "%q", status)
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !statemachine.CanTransition(order.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTransitionRejected, order.Status, to)
	}

	updated, changed, err := s.writer.apply(ctx, order, SourceManual, transitionTo(to))
	if err != nil {
		return nil, err
	}
	if !changed {
		// 重新读取后状态已被其他写入方改变
		return nil, fmt.Errorf("%w: %s -> %s", ErrTransitionRejected, updated.Status, to)
	}
	return updated, nil
}

package service

import (
	"context"
	"time"

	"storefront/internal/domain/order/model"
)

// 订单变更来源
const (
	SourceWebhook   = "webhook"
	SourceReconcile = "reconcile"
	SourceManual    = "manual"
)

// OrderEvent 订单状态或退款标记发生持久化变更后发出的事件
type OrderEvent struct {
	OrderID      string             `json:"orderId"`
	CustomerID   string             `json:"customerId"`
	FromStatus   model.Status       `json:"fromStatus"`
	ToStatus     model.Status       `json:"toStatus"`
	RefundStatus model.RefundStatus `json:"refundStatus"`
	Refunded     bool               `json:"refunded"` // 本次变更包含退款标记
	Source       string             `json:"source"`
	Version      int64              `json:"version"`
	OccurredAt   time.Time          `json:"occurredAt"`
}

// StatusChanged 本次变更是否包含状态流转
func (e OrderEvent) StatusChanged() bool {
	return e.FromStatus != e.ToStatus
}

// EventPublisher 订单事件下游，发布失败只记录日志，不影响已保存的变更
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderEvent(context.Context, OrderEvent) error { return nil }

// EventDedup 回调事件去重记录
type EventDedup interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

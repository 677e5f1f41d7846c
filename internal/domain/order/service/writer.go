package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/repository"
	"storefront/internal/domain/order/statemachine"
	"storefront/internal/pkg/metrics"

	"go.uber.org/zap"
)

// maxSaveAttempts 乐观锁冲突时最多尝试保存的次数
const maxSaveAttempts = 3

// mutation 对订单做一次受守卫保护的修改，返回是否有变化
// 冲突重试时会在最新读取的订单上再次调用，因此必须只依赖入参订单的当前状态
type mutation func(o *model.Order) bool

// transitionTo 状态机允许时流转到 to
func transitionTo(to model.Status) mutation {
	return func(o *model.Order) bool {
		if !statemachine.CanTransition(o.Status, to) {
			return false
		}
		o.Status = to
		return true
	}
}

// capturePayment 流转到 PAID，并在尚未记录时写入网关支付 ID
func capturePayment(paymentID string) mutation {
	return func(o *model.Order) bool {
		if !statemachine.CanTransition(o.Status, model.StatusPaid) {
			return false
		}
		o.Status = model.StatusPaid
		o.SetGatewayPaymentID(paymentID)
		return true
	}
}

// markRefunded 退款标记与状态机无关，只会 NONE -> REFUNDED
func markRefunded() mutation {
	return func(o *model.Order) bool {
		return o.MarkRefunded()
	}
}

// combine 依次应用所有修改
func combine(mutations ...mutation) mutation {
	return func(o *model.Order) bool {
		changed := false
		for _, m := range mutations {
			if m(o) {
				changed = true
			}
		}
		return changed
	}
}

// orderWriter 所有订单写入的唯一入口：应用修改、乐观锁保存、发布事件
type orderWriter struct {
	repo      repository.OrderRepository
	publisher EventPublisher
	log       *zap.Logger
}

func newOrderWriter(repo repository.OrderRepository, publisher EventPublisher, log *zap.Logger) *orderWriter {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &orderWriter{repo: repo, publisher: publisher, log: log}
}

// apply 把 mutate 应用到 order 并保存，版本冲突时重新读取后再应用
// 返回最终的订单以及是否写入了变更
func (w *orderWriter) apply(ctx context.Context, order *model.Order, source string, mutate mutation) (*model.Order, bool, error) {
	for attempt := 1; ; attempt++ {
		fromStatus := order.Status
		wasRefunded := order.IsRefunded()

		if !mutate(order) {
			return order, false, nil
		}

		err := w.repo.Save(ctx, order)
		if err == nil {
			w.afterSave(ctx, order, fromStatus, wasRefunded, source)
			return order, true, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= maxSaveAttempts {
			return nil, false, err
		}

		metrics.OrderVersionConflictsTotal.Inc()
		w.log.Warn("order changed concurrently, reloading",
			zap.String("order_id", order.ID),
			zap.String("source", source),
			zap.Int("attempt", attempt),
		)
		if order, err = w.repo.GetByID(ctx, order.ID); err != nil {
			return nil, false, err
		}
	}
}

func (w *orderWriter) afterSave(ctx context.Context, order *model.Order, fromStatus model.Status, wasRefunded bool, source string) {
	event := OrderEvent{
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		FromStatus:   fromStatus,
		ToStatus:     order.Status,
		RefundStatus: order.Payment.RefundStatus,
		Refunded:     !wasRefunded && order.IsRefunded(),
		Source:       source,
		Version:      order.Version,
		OccurredAt:   time.Now(),
	}

	if event.StatusChanged() {
		metrics.OrderTransitionsTotal.WithLabelValues(string(fromStatus), string(order.Status), source).Inc()
	}
	w.log.Info("order updated",
		zap.String("order_id", order.ID),
		zap.String("from", string(fromStatus)),
		zap.String("to", string(order.Status)),
		zap.String("refund_status", string(order.Payment.RefundStatus)),
		zap.String("source", source),
		zap.Int64("version", order.Version),
	)

	if err := w.publisher.PublishOrderEvent(ctx, event); err != nil {
		w.log.Error("publish order event failed", zap.String("order_id", order.ID), zap.Error(err))
	}
}

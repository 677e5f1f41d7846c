package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/order/model"

	"gorm.io/gorm"
)

const orderResource = "order"

// OrderRepository 订单存储
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*model.Order, error)
	// GetByIDs 批量读取，不存在的 ID 直接忽略，返回顺序不保证
	GetByIDs(ctx context.Context, ids []string) ([]model.Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Order, error)
	GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*model.Order, error)
	// ListReconcilable 返回可能与网关状态不一致的订单 ID
	ListReconcilable(ctx context.Context, updatedSince time.Time, limit int) ([]string, error)
	// Save 按版本号写回可变字段，版本不一致时返回 ErrVersionConflict
	Save(ctx context.Context, order *model.Order) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) first(ctx context.Context, key, value string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Where(key+" = ?", value).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: orderResource, Key: key, Value: value}
		}
		return nil, fmt.Errorf("query order by %s %s: %w", key, value, err)
	}
	return &order, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	return r.first(ctx, "id", id)
}

func (r *orderRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*model.Order, error) {
	return r.first(ctx, "gateway_order_id", gatewayOrderID)
}

func (r *orderRepository) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*model.Order, error) {
	return r.first(ctx, "gateway_payment_id", gatewayPaymentID)
}

func (r *orderRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Order, error) {
	var orders []model.Order
	if len(ids) == 0 {
		return orders, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("query orders by ids: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) ListReconcilable(ctx context.Context, updatedSince time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("gateway_order_id <> ''").
		Where("updated_at >= ?", updatedSince).
		Where("(status = ?) OR (status = ? AND refund_status = ?)",
			model.StatusCreated, model.StatusPaid, model.RefundNone).
		Order("updated_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list reconcilable orders: %w", err)
	}
	return ids, nil
}

// Save 乐观锁更新，只写回会被状态机/回调修改的字段
func (r *orderRepository) Save(ctx context.Context, order *model.Order) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]interface{}{
			"status":             order.Status,
			"gateway_payment_id": order.Payment.GatewayPaymentID,
			"refund_status":      order.Payment.RefundStatus,
			"version":            order.Version + 1,
			"updated_at":         now,
		})
	if result.Error != nil {
		return fmt.Errorf("save order %s: %w", order.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("save order %s at version %d: %w", order.ID, order.Version, ErrVersionConflict)
	}

	order.Version++
	order.UpdatedAt = now
	return nil
}

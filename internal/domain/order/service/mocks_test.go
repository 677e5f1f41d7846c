package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/domain/order/gateway"
	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/repository"
	baseModel "storefront/pkg/model"

	"github.com/stretchr/testify/mock"
)

// MockGatewayClient is a mock of gateway.Client
type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) FetchOrder(ctx context.Context, gatewayOrderID string) (*gateway.Order, error) {
	args := m.Called(ctx, gatewayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Order), args.Error(1)
}

func (m *MockGatewayClient) FetchPayments(ctx context.Context, gatewayOrderID string) ([]gateway.Payment, error) {
	args := m.Called(ctx, gatewayOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gateway.Payment), args.Error(1)
}

func (m *MockGatewayClient) FetchPayment(ctx context.Context, gatewayPaymentID string) (*gateway.PaymentDetail, error) {
	args := m.Called(ctx, gatewayPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.PaymentDetail), args.Error(1)
}

// MockEventPublisher is a mock of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// memRepository 内存版订单存储，Save 与 gorm 实现一样按版本号比较后写入
type memRepository struct {
	mu     sync.Mutex
	orders map[string]model.Order
	saves  map[string]int
	// interfere 在下一次 Save 某订单之前模拟一次并发写入，用完即清除
	interfere map[string]func(o *model.Order)
	failSave  error
}

func newMemRepository(orders ...model.Order) *memRepository {
	r := &memRepository{
		orders:    make(map[string]model.Order),
		saves:     make(map[string]int),
		interfere: make(map[string]func(o *model.Order)),
	}
	for _, o := range orders {
		if o.Version == 0 {
			o.Version = 1
		}
		if o.Payment.RefundStatus == "" {
			o.Payment.RefundStatus = model.RefundNone
		}
		r.orders[o.ID] = o
	}
	return r
}

func newOrder(id string, status model.Status, gatewayOrderID, gatewayPaymentID string) model.Order {
	return model.Order{
		BaseModel:  baseModel.BaseModel{ID: id},
		CustomerID: "customer_" + id,
		Status:     status,
		Amount:     499,
		Items:      []model.LineItem{{Title: "Notebook", UnitPrice: 499, Quantity: 1}},
		Payment: model.Payment{
			GatewayOrderID:   gatewayOrderID,
			GatewayPaymentID: gatewayPaymentID,
			RefundStatus:     model.RefundNone,
		},
		Version: 1,
	}
}

func (r *memRepository) notFound(key, value string) error {
	return &repository.NotFoundError{Resource: "order", Key: key, Value: value}
}

func (r *memRepository) GetByID(_ context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, r.notFound("id", id)
	}
	return &o, nil
}

func (r *memRepository) GetByIDs(_ context.Context, ids []string) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, id := range ids {
		if o, ok := r.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memRepository) GetByGatewayOrderID(_ context.Context, gatewayOrderID string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Payment.GatewayOrderID == gatewayOrderID {
			return &o, nil
		}
	}
	return nil, r.notFound("gateway_order_id", gatewayOrderID)
}

func (r *memRepository) GetByGatewayPaymentID(_ context.Context, gatewayPaymentID string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Payment.GatewayPaymentID != "" && o.Payment.GatewayPaymentID == gatewayPaymentID {
			return &o, nil
		}
	}
	return nil, r.notFound("gateway_payment_id", gatewayPaymentID)
}

func (r *memRepository) ListReconcilable(_ context.Context, _ time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, o := range r.orders {
		if o.Payment.GatewayOrderID == "" {
			continue
		}
		if o.Status == model.StatusCreated || (o.Status == model.StatusPaid && !o.IsRefunded()) {
			ids = append(ids, id)
		}
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids, nil
}

func (r *memRepository) Save(_ context.Context, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave != nil {
		return r.failSave
	}
	stored, ok := r.orders[order.ID]
	if !ok {
		return r.notFound("id", order.ID)
	}
	if fn, ok := r.interfere[order.ID]; ok {
		delete(r.interfere, order.ID)
		fn(&stored)
		stored.Version++
		r.orders[order.ID] = stored
	}
	if stored.Version != order.Version {
		return fmt.Errorf("save order %s: %w", order.ID, repository.ErrVersionConflict)
	}

	order.Version++
	order.UpdatedAt = time.Now()
	r.orders[order.ID] = *order
	r.saves[order.ID]++
	return nil
}

func (r *memRepository) get(id string) model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id]
}

func (r *memRepository) saveCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves[id]
}

func (r *memRepository) totalSaves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.saves {
		total += n
	}
	return total
}

// fakeDedup 内存版事件去重
type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{seen: make(map[string]bool)}
}

func (d *fakeDedup) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[eventID], nil
}

func (d *fakeDedup) Mark(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = true
	return nil
}

package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"storefront/internal/domain/order/gateway"
	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/repository"
	"storefront/internal/domain/order/statemachine"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/metrics"
	"storefront/internal/pkg/worker"

	"go.uber.org/zap"
)

// SyncError 单个订单的同步失败
type SyncError struct {
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

// SyncResult 一批订单的同步结果
type SyncResult struct {
	RateLimited bool        `json:"rateLimited"`
	Errors      []SyncError `json:"errors"`
	// Updated 本批写入了变更的订单
	Updated []string `json:"updated"`
	// Skipped 因限流或取消而未派发的订单
	Skipped   []string `json:"skipped"`
	Processed int      `json:"processed"`
}

// ReconcileOptions 对账并发与重试参数
type ReconcileOptions struct {
	MaxWorkers     int
	WorkerDelay    time.Duration
	RetryBaseDelay time.Duration
	MaxRetries     int
}

func ReconcileOptionsFromConfig(cfg config.ReconcileConfig) ReconcileOptions {
	return ReconcileOptions{
		MaxWorkers:     cfg.MaxWorkers,
		WorkerDelay:    cfg.WorkerDelay,
		RetryBaseDelay: cfg.RetryBaseDelay,
		MaxRetries:     cfg.MaxRetries,
	}
}

// ReconcileService 主动向网关拉取状态，修正漏掉的回调
type ReconcileService interface {
	// Sync 同步一批订单，单个订单失败记录在结果中，不影响其他订单
	// 只有读取订单本身失败时返回 error
	Sync(ctx context.Context, orderIDs []string) (*SyncResult, error)
}

type reconcileService struct {
	repo    repository.OrderRepository
	gateway gateway.Client
	writer  *orderWriter
	opts    ReconcileOptions
	log     *zap.Logger
}

func NewReconcileService(
	repo repository.OrderRepository,
	gw gateway.Client,
	publisher EventPublisher,
	opts ReconcileOptions,
	log *zap.Logger,
) ReconcileService {
	return &reconcileService{
		repo:    repo,
		gateway: gw,
		writer:  newOrderWriter(repo, publisher, log),
		opts:    opts,
		log:     log,
	}
}

// syncCollector 多个 worker 共享的结果收集
type syncCollector struct {
	mu     sync.Mutex
	result SyncResult
}

func (c *syncCollector) fail(orderID, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.Errors = append(c.result.Errors, SyncError{OrderID: orderID, Message: message})
}

func (c *syncCollector) done(orderID string, changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result.Processed++
	if changed {
		c.result.Updated = append(c.result.Updated, orderID)
	}
}

// rateLimited 置位限流标记，第一次置位时返回 true
func (c *syncCollector) rateLimited() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	first := !c.result.RateLimited
	c.result.RateLimited = true
	return first
}

func (c *syncCollector) snapshot() *SyncResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.result
	if res.Errors == nil {
		res.Errors = []SyncError{}
	}
	return &res
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *reconcileService) Sync(ctx context.Context, orderIDs []string) (*SyncResult, error) {
	ids := uniqueIDs(orderIDs)
	collector := &syncCollector{}
	if len(ids) == 0 {
		return collector.snapshot(), nil
	}

	orders, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	byID := make(map[string]*model.Order, len(orders))
	for i := range orders {
		byID[orders[i].ID] = &orders[i]
	}

	queue := make([]*model.Order, 0, len(ids))
	for _, id := range ids {
		order, ok := byID[id]
		if !ok {
			collector.fail(id, (&repository.NotFoundError{Resource: "order", Key: "id", Value: id}).Error())
			metrics.ReconcileOrdersTotal.WithLabelValues("not_found").Inc()
			continue
		}
		queue = append(queue, order)
	}

	start := time.Now()
	pool := worker.NewPool[*model.Order](s.opts.MaxWorkers, s.opts.WorkerDelay)
	remaining := pool.Run(ctx, queue, func(ctx context.Context, workerID int, order *model.Order) {
		changed, err := s.syncOrder(ctx, order)
		if err == nil {
			collector.done(order.ID, changed)
			metrics.ReconcileOrdersTotal.WithLabelValues(outcomeLabel(changed)).Inc()
			return
		}

		collector.fail(order.ID, err.Error())
		if changed {
			collector.done(order.ID, changed)
		}
		if gateway.IsRateLimited(err) {
			metrics.ReconcileOrdersTotal.WithLabelValues("rate_limited").Inc()
			if collector.rateLimited() {
				s.log.Warn("gateway rate limited, stop dispatching", zap.String("order_id", order.ID), zap.Int("worker", workerID))
			}
			pool.Stop()
			return
		}
		metrics.ReconcileOrdersTotal.WithLabelValues(outcomeError).Inc()
		s.log.Error("reconcile order failed", zap.String("order_id", order.ID), zap.Int("worker", workerID), zap.Error(err))
	})

	result := collector.snapshot()
	for _, order := range remaining {
		result.Skipped = append(result.Skipped, order.ID)
	}
	metrics.ReconcileBatchesTotal.WithLabelValues(strconv.FormatBool(result.RateLimited)).Inc()
	s.log.Info("reconcile batch finished",
		zap.Int("requested", len(ids)),
		zap.Int("processed", result.Processed),
		zap.Int("updated", len(result.Updated)),
		zap.Int("errors", len(result.Errors)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Bool("rate_limited", result.RateLimited),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func outcomeLabel(changed bool) string {
	if changed {
		return outcomeApplied
	}
	return outcomeNoop
}

// syncOrder 对单个订单执行一次对账，所有发现的变更合并为一次保存
// 支付已确认但退款查询失败时，仍保存 PAID 并返回退款查询的错误
func (s *reconcileService) syncOrder(ctx context.Context, order *model.Order) (bool, error) {
	gatewayOrderID := order.Payment.GatewayOrderID
	if gatewayOrderID == "" {
		return false, nil
	}

	var (
		mutations []mutation
		stepErr   error
		paymentID = order.Payment.GatewayPaymentID
		status    = order.Status
	)

	if statemachine.CanTransition(order.Status, model.StatusPaid) {
		gwOrder, err := callWithRetry(ctx, s.opts, func(ctx context.Context) (*gateway.Order, error) {
			return s.gateway.FetchOrder(ctx, gatewayOrderID)
		})
		if err != nil {
			return false, fmt.Errorf("fetch order %s: %w", gatewayOrderID, err)
		}

		if gwOrder.Status == gateway.OrderStatusPaid {
			if paymentID == "" {
				payments, err := callWithRetry(ctx, s.opts, func(ctx context.Context) ([]gateway.Payment, error) {
					return s.gateway.FetchPayments(ctx, gatewayOrderID)
				})
				if err != nil {
					return false, fmt.Errorf("fetch payments %s: %w", gatewayOrderID, err)
				}
				if captured, ok := gateway.CapturedPayment(payments); ok {
					paymentID = captured.ID
				}
			}
			mutations = append(mutations, capturePayment(paymentID))
			status = model.StatusPaid
		}
	}

	if paymentID != "" && !order.IsRefunded() && status == model.StatusPaid {
		detail, err := callWithRetry(ctx, s.opts, func(ctx context.Context) (*gateway.PaymentDetail, error) {
			return s.gateway.FetchPayment(ctx, paymentID)
		})
		switch {
		case err != nil:
			stepErr = fmt.Errorf("fetch payment %s: %w", paymentID, err)
		case detail.Refunded():
			mutations = append(mutations, markRefunded())
		}
	}

	if len(mutations) == 0 {
		return false, stepErr
	}
	_, changed, err := s.writer.apply(ctx, order, SourceReconcile, combine(mutations...))
	if err != nil {
		return false, fmt.Errorf("save order: %w", err)
	}
	return changed, stepErr
}

// callWithRetry 只重试网关限流，最多额外重试 MaxRetries 次，间隔 base*2^n
// 重试耗尽后返回最后一次的限流错误
func callWithRetry[T any](ctx context.Context, opts ReconcileOptions, call func(context.Context) (T, error)) (T, error) {
	delay := opts.RetryBaseDelay
	for attempt := 0; ; attempt++ {
		res, err := call(ctx)
		if err == nil || !gateway.IsRateLimited(err) || attempt >= opts.MaxRetries {
			return res, err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res, err
		case <-timer.C:
		}
		delay *= 2
	}
}

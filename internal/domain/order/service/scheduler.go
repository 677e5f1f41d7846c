package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/domain/order/repository"
	"storefront/internal/pkg/config"

	"go.uber.org/zap"
)

// Locker 跨实例互斥，保证同一时间只有一个实例在跑定时对账
type Locker interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error)
}

// ReconcileScheduler 定时拉取近期可能漏掉回调的订单并对账
type ReconcileScheduler struct {
	repo      repository.OrderRepository
	syncer    ReconcileService
	lock      Locker
	interval  time.Duration
	lookback  time.Duration
	batchSize int
	log       *zap.Logger
}

// NewReconcileScheduler lock 为 nil 时不做跨实例互斥
func NewReconcileScheduler(
	repo repository.OrderRepository,
	syncer ReconcileService,
	lock Locker,
	cfg config.ReconcileConfig,
	log *zap.Logger,
) *ReconcileScheduler {
	return &ReconcileScheduler{
		repo:      repo,
		syncer:    syncer,
		lock:      lock,
		interval:  cfg.ScheduleInterval,
		lookback:  cfg.Lookback,
		batchSize: cfg.ScheduledBatchSize,
		log:       log,
	}
}

// Start 在后台运行，ctx 取消后退出；interval 不大于 0 时不启动
func (s *ReconcileScheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("scheduled reconcile disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		s.log.Info("scheduled reconcile started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ctx.Done():
				s.log.Info("scheduled reconcile stopped")
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					s.log.Error("scheduled reconcile failed", zap.Error(err))
				}
			}
		}
	}()
}

// RunOnce 执行一轮对账；未拿到锁时返回 nil, nil
func (s *ReconcileScheduler) RunOnce(ctx context.Context) (*SyncResult, error) {
	if s.lock != nil {
		unlock, ok, err := s.lock.TryLock(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire reconcile lock: %w", err)
		}
		if !ok {
			s.log.Debug("reconcile lock held by another instance, skip")
			return nil, nil
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn("release reconcile lock failed", zap.Error(err))
			}
		}()
	}

	since := time.Now().Add(-s.lookback)
	ids, err := s.repo.ListReconcilable(ctx, since, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("list reconcilable orders: %w", err)
	}
	if len(ids) == 0 {
		return &SyncResult{Errors: []SyncError{}}, nil
	}
	return s.syncer.Sync(ctx, ids)
}

package order

import (
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/order/gateway"
	"storefront/internal/domain/order/notify"
	"storefront/internal/domain/order/repository"
	"storefront/internal/domain/order/service"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/publisher"
	"storefront/internal/pkg/push"
	"storefront/internal/pkg/redisx"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	dedupKeyPrefix   = "webhook:event"
	reconcileLockKey = "lock:order:reconcile"
	// minLockTTL 定时间隔很短或只跑单次时的锁过期时间
	minLockTTL = 10 * time.Minute
)

// Components 订单模块的全部服务，HTTP 模块和命令行工具共用同一套装配
type Components struct {
	Repo      repository.OrderRepository
	Orders    service.OrderService
	Webhooks  service.WebhookService
	Syncer    service.ReconcileService
	Scheduler *service.ReconcileScheduler

	closers []func() error
}

// Build 装配订单模块；rdb 为 nil 时关闭回调去重和跨实例锁
func Build(cfg *config.Config, log *zap.Logger, db *gorm.DB, rdb *redis.Client) (*Components, error) {
	c := &Components{}

	publishers := notify.Multi{}
	if cfg.RabbitMQ.URL != "" {
		rabbit, err := publisher.NewRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return nil, fmt.Errorf("init rabbitmq publisher: %w", err)
		}
		c.closers = append(c.closers, rabbit.Close)
		publishers = append(publishers, notify.NewRabbitNotifier(rabbit))
	} else {
		log.Info("rabbitmq not configured, order events are not published")
	}

	pushService, err := push.NewAliyunPushService(cfg.Push)
	switch {
	case errors.Is(err, push.ErrNotConfigured):
		log.Info("aliyun push not configured, customer notifications disabled")
	case err != nil:
		c.Close()
		return nil, err
	default:
		pusher := notify.NewPushNotifier(pushService, 0, log)
		c.closers = append(c.closers, pusher.Close)
		publishers = append(publishers, pusher)
	}

	var (
		dedup service.EventDedup
		lock  service.Locker
	)
	if rdb != nil {
		dedup = redisx.NewEventDedup(rdb, dedupKeyPrefix, cfg.Gateway.DedupTTL)
		lock = redisx.NewLock(rdb, reconcileLockKey, max(cfg.Reconcile.ScheduleInterval, minLockTTL))
	}

	c.Repo = repository.NewOrderRepository(db)
	gw := gateway.NewHTTPClient(cfg.Gateway)

	c.Orders = service.NewOrderService(c.Repo, publishers, log)
	c.Webhooks = service.NewWebhookService(c.Repo, cfg.Gateway.WebhookSecret, publishers, dedup, log)
	c.Syncer = service.NewReconcileService(c.Repo, gw, publishers, service.ReconcileOptionsFromConfig(cfg.Reconcile), log)
	c.Scheduler = service.NewReconcileScheduler(c.Repo, c.Syncer, lock, cfg.Reconcile, log)
	return c, nil
}

// Close 等待进行中的推送并释放消息队列连接
func (c *Components) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

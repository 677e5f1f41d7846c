// Package notify 把订单变更事件转发到消息队列和客户推送
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"storefront/internal/domain/order/model"
	"storefront/internal/domain/order/service"
	"storefront/internal/pkg/push"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// MessageTypeOrderChanged 写入 AMQP type 属性
const MessageTypeOrderChanged = "OrderChanged"

// MessagePublisher 由 publisher.RabbitPublisher 实现
type MessagePublisher interface {
	Publish(ctx context.Context, routingKey, messageType string, payload any) error
}

// RabbitNotifier 发布到 topic exchange，routing key 形如 order.paid / order.refunded
type RabbitNotifier struct {
	pub MessagePublisher
}

func NewRabbitNotifier(pub MessagePublisher) *RabbitNotifier {
	return &RabbitNotifier{pub: pub}
}

// RoutingKeys 状态变化发布 order.<status>，退款再额外发布 order.refunded
// 对账把支付和退款合并在一次保存里时，两个 key 都会发布
func RoutingKeys(event service.OrderEvent) []string {
	var keys []string
	if event.StatusChanged() {
		keys = append(keys, "order."+strings.ToLower(string(event.ToStatus)))
	}
	if event.Refunded {
		keys = append(keys, "order.refunded")
	}
	return keys
}

func (n *RabbitNotifier) PublishOrderEvent(ctx context.Context, event service.OrderEvent) error {
	var errs []error
	for _, key := range RoutingKeys(event) {
		if err := n.pub.Publish(ctx, key, MessageTypeOrderChanged, event); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// defaultPushConcurrency 同时进行中的推送请求上限
const defaultPushConcurrency = 8

// PushNotifier 支付成功和退款到账时推送给下单用户
// 推送调用是同步 HTTP 请求，放到后台执行，失败只记日志
type PushNotifier struct {
	push push.PushService
	log  *zap.Logger
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
}

// NewPushNotifier concurrency 小于 1 时使用默认值
func NewPushNotifier(ps push.PushService, concurrency int, log *zap.Logger) *PushNotifier {
	if concurrency < 1 {
		concurrency = defaultPushConcurrency
	}
	return &PushNotifier{push: ps, log: log, sem: semaphore.NewWeighted(int64(concurrency))}
}

type pushContent struct {
	title, body string
}

// pushMessages 返回需要推送的内容，支付和退款在同一事件里时两条都推
func pushMessages(event service.OrderEvent) []pushContent {
	var msgs []pushContent
	if event.StatusChanged() && event.ToStatus == model.StatusPaid {
		msgs = append(msgs, pushContent{"支付成功", "您的订单已支付成功，我们会尽快为您发货"})
	}
	if event.Refunded {
		msgs = append(msgs, pushContent{"退款已到账", "您的订单退款已处理完成"})
	}
	return msgs
}

// PublishOrderEvent 推送槽位占满时阻塞等待，ctx 结束则放弃剩余推送
func (n *PushNotifier) PublishOrderEvent(ctx context.Context, event service.OrderEvent) error {
	if event.CustomerID == "" {
		return nil
	}
	for _, msg := range pushMessages(event) {
		if err := n.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("push order %s: %w", event.OrderID, err)
		}
		n.wg.Add(1)
		go func(msg pushContent) {
			defer n.wg.Done()
			defer n.sem.Release(1)

			ext := map[string]string{"orderId": event.OrderID, "status": string(event.ToStatus)}
			if err := n.push.PushToAccount(event.CustomerID, msg.title, msg.body, ext); err != nil {
				n.log.Warn("push order notification failed",
					zap.String("order_id", event.OrderID),
					zap.String("customer_id", event.CustomerID),
					zap.Error(err),
				)
			}
		}(msg)
	}
	return nil
}

// Close 等待进行中的推送完成
func (n *PushNotifier) Close() error {
	n.wg.Wait()
	return nil
}

// Multi 依次投递给所有下游，某个下游失败不影响其他下游
type Multi []service.EventPublisher

func (m Multi) PublishOrderEvent(ctx context.Context, event service.OrderEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishOrderEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 订单支付相关指标，注册到默认 Registry，通过 /metrics 暴露
var (
	// GatewayRequestsTotal 支付网关调用次数
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_requests_total",
			Help: "Total number of payment gateway calls",
		},
		[]string{"op", "status"},
	)

	// GatewayRequestDuration 支付网关调用耗时
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Payment gateway call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// WebhookEventsTotal 回调事件处理结果
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Total number of payment webhook events by type and outcome",
		},
		[]string{"event", "outcome"},
	)

	// ReconcileOrdersTotal 对账处理的订单数
	ReconcileOrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_reconcile_orders_total",
			Help: "Total number of orders processed by reconciliation by outcome",
		},
		[]string{"outcome"},
	)

	// ReconcileBatchesTotal 对账批次，rate_limited 标记是否因限流中止
	ReconcileBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_reconcile_batches_total",
			Help: "Total number of reconciliation batches",
		},
		[]string{"rate_limited"},
	)

	// OrderTransitionsTotal 订单状态变更
	OrderTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Total number of persisted order status transitions",
		},
		[]string{"from", "to", "source"},
	)

	// OrderVersionConflictsTotal 乐观锁冲突
	OrderVersionConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "order_version_conflicts_total",
			Help: "Total number of optimistic lock conflicts when saving orders",
		},
	)

	// HTTPRequestsTotal 按路由模板统计的请求数
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration 请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// HTTPPanicsTotal 被恢复的 panic
	HTTPPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "http_panics_total",
			Help: "Total number of recovered panics in HTTP handlers",
		},
	)
)

// Package gateway 封装支付网关的只读查询接口
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// 网关返回的状态值
const (
	OrderStatusPaid       = "paid"
	PaymentStatusCaptured = "captured"
	RefundStatusFull      = "full"
)

// Order 网关侧订单
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Payment 网关侧订单下的一笔支付
type Payment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PaymentDetail 网关侧支付详情，金额单位为最小货币单位
type PaymentDetail struct {
	ID             string `json:"id"`
	AmountRefunded int64  `json:"amount_refunded"`
	RefundStatus   string `json:"refund_status"`
}

// Refunded 网关是否认为该笔支付已发生退款
func (p *PaymentDetail) Refunded() bool {
	return p.AmountRefunded > 0 || p.RefundStatus == RefundStatusFull
}

// Client 支付网关客户端，每个调用失败时返回 *GatewayError
type Client interface {
	FetchOrder(ctx context.Context, gatewayOrderID string) (*Order, error)
	FetchPayments(ctx context.Context, gatewayOrderID string) ([]Payment, error)
	FetchPayment(ctx context.Context, gatewayPaymentID string) (*PaymentDetail, error)
}

// GatewayError 网关调用失败，StatusCode 为 0 表示网络层错误
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gateway: %s", e.Message)
	}
	return fmt.Sprintf("gateway: status %d: %s", e.StatusCode, e.Message)
}

// RateLimited 是否为网关限流 (HTTP 429)
func (e *GatewayError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsRateLimited err 链中是否包含网关限流错误
func IsRateLimited(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.RateLimited()
}

// CapturedPayment 返回第一笔 captured 状态的支付
func CapturedPayment(payments []Payment) (Payment, bool) {
	for _, p := range payments {
		if p.Status == PaymentStatusCaptured {
			return p, true
		}
	}
	return Payment{}, false
}

package service

import (
	"bytes"
	"encoding/json"
)

// 支持的回调事件类型
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundProcessed = "refund.processed"
)

// WebhookEvent 已解析的回调事件，只有 CapturedEvent / FailedEvent / RefundProcessedEvent 三种
type WebhookEvent interface {
	EventType() string
	isWebhookEvent()
}

// CapturedEvent 支付已扣款
type CapturedEvent struct {
	GatewayOrderID   string
	GatewayPaymentID string
}

// FailedEvent 支付失败
type FailedEvent struct {
	GatewayOrderID   string
	GatewayPaymentID string
}

// RefundProcessedEvent 退款已完成
type RefundProcessedEvent struct {
	GatewayPaymentID string
	RefundID         string
}

func (CapturedEvent) EventType() string        { return EventPaymentCaptured }
func (FailedEvent) EventType() string          { return EventPaymentFailed }
func (RefundProcessedEvent) EventType() string { return EventRefundProcessed }

func (CapturedEvent) isWebhookEvent()        {}
func (FailedEvent) isWebhookEvent()          {}
func (RefundProcessedEvent) isWebhookEvent() {}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity refundEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// orderId / paymentId 为部分调用方使用的驼峰写法，读取时统一归一
type paymentEntity struct {
	ID           string `json:"id"`
	OrderID      string `json:"order_id"`
	OrderIDAlias string `json:"orderId"`
}

func (e paymentEntity) orderID() string {
	if e.OrderID != "" {
		return e.OrderID
	}
	return e.OrderIDAlias
}

type refundEntity struct {
	ID             string `json:"id"`
	PaymentID      string `json:"payment_id"`
	PaymentIDAlias string `json:"paymentId"`
}

func (e refundEntity) paymentID() string {
	if e.PaymentID != "" {
		return e.PaymentID
	}
	return e.PaymentIDAlias
}

// ParseWebhookEvent 把回调原始报文解析为具体事件
// 未知事件类型、报文格式错误或缺少定位订单所需的 ID 时返回 ValidationError
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&env); err != nil {
		return nil, invalid(ErrMalformedEvent, "decode body: %v", err)
	}

	switch env.Event {
	case EventPaymentCaptured, EventPaymentFailed:
		if env.Payload.Payment == nil {
			return nil, invalid(ErrMalformedEvent, "%s without payment entity", env.Event)
		}
		entity := env.Payload.Payment.Entity
		if entity.orderID() == "" {
			return nil, invalid(ErrMalformedEvent, "%s without order id", env.Event)
		}
		if env.Event == EventPaymentFailed {
			return FailedEvent{GatewayOrderID: entity.orderID(), GatewayPaymentID: entity.ID}, nil
		}
		if entity.ID == "" {
			return nil, invalid(ErrMalformedEvent, "%s without payment id", env.Event)
		}
		return CapturedEvent{GatewayOrderID: entity.orderID(), GatewayPaymentID: entity.ID}, nil

	case EventRefundProcessed:
		var event RefundProcessedEvent
		if env.Payload.Refund != nil {
			event.RefundID = env.Payload.Refund.Entity.ID
			event.GatewayPaymentID = env.Payload.Refund.Entity.paymentID()
		}
		if event.GatewayPaymentID == "" && env.Payload.Payment != nil {
			event.GatewayPaymentID = env.Payload.Payment.Entity.ID
		}
		if event.GatewayPaymentID == "" {
			return nil, invalid(ErrMalformedEvent, "%s without payment id", env.Event)
		}
		return event, nil

	case "":
		return nil, invalid(ErrMalformedEvent, "missing event type")
	default:
		return nil, invalid(ErrUnsupportedEvent, "%q", env.Event)
	}
}

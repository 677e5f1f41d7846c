package model

import (
	"encoding/json"

	baseModel "storefront/pkg/model"

	"gorm.io/datatypes"
)

// Status 订单状态
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPaid      Status = "PAID"
	StatusPacked    Status = "PACKED"
	StatusReady     Status = "READY"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// AllStatuses 全部订单状态
var AllStatuses = []Status{
	StatusCreated, StatusPaid, StatusPacked, StatusReady,
	StatusDelivered, StatusCancelled, StatusFailed,
}

// ParseStatus 校验并转换状态字符串，区分大小写
func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// RefundStatus 退款标记，只能 NONE -> REFUNDED
type RefundStatus string

const (
	RefundNone     RefundStatus = "NONE"
	RefundRefunded RefundStatus = "REFUNDED"
)

// LineItem 下单时的商品快照
type LineItem struct {
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

// Payment 订单的支付子记录
type Payment struct {
	GatewayOrderID   string       `gorm:"column:gateway_order_id;uniqueIndex;<-:create" json:"gatewayOrderId"`
	GatewayPaymentID string       `gorm:"column:gateway_payment_id;index" json:"gatewayPaymentId,omitempty"`
	RefundStatus     RefundStatus `gorm:"column:refund_status;not null;default:NONE" json:"refundStatus"`
}

// UnmarshalJSON 兼容旧数据中的 razorpayOrderId / razorpayPaymentId 写法
// 只在读取时作为别名，序列化始终使用规范字段
func (p *Payment) UnmarshalJSON(data []byte) error {
	type canonical Payment
	var raw struct {
		canonical
		LegacyOrderID   string `json:"razorpayOrderId"`
		LegacyPaymentID string `json:"razorpayPaymentId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Payment(raw.canonical)
	if p.GatewayOrderID == "" {
		p.GatewayOrderID = raw.LegacyOrderID
	}
	if p.GatewayPaymentID == "" {
		p.GatewayPaymentID = raw.LegacyPaymentID
	}
	return nil
}

// Order 订单
// Status 只能经由 statemachine 校验后修改；Version 为乐观锁版本号，每次保存 +1
type Order struct {
	baseModel.BaseModel
	CustomerID string                        `gorm:"type:uuid;index" json:"customerId"`
	Status     Status                        `gorm:"type:varchar(16);not null;index" json:"status"`
	Amount     float64                       `gorm:"type:numeric(12,2);not null;<-:create" json:"amount"`
	Items      datatypes.JSONSlice[LineItem] `gorm:"type:jsonb;not null;<-:create" json:"items"`
	Payment    Payment                       `gorm:"embedded" json:"payment"`
	Version    int64                         `gorm:"not null;default:1" json:"version"`
}

func (Order) TableName() string {
	return "orders"
}

// SetGatewayPaymentID 写入网关支付 ID，已有值时不覆盖，返回是否发生修改
func (o *Order) SetGatewayPaymentID(paymentID string) bool {
	if paymentID == "" || o.Payment.GatewayPaymentID != "" {
		return false
	}
	o.Payment.GatewayPaymentID = paymentID
	return true
}

// MarkRefunded 标记已退款，返回是否发生修改
func (o *Order) MarkRefunded() bool {
	if o.Payment.RefundStatus == RefundRefunded {
		return false
	}
	o.Payment.RefundStatus = RefundRefunded
	return true
}

// IsRefunded 是否已退款
func (o Order) IsRefunded() bool {
	return o.Payment.RefundStatus == RefundRefunded
}

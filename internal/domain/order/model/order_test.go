package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses {
		got, ok := ParseStatus(string(s))
		assert.True(t, ok)
		assert.Equal(t, s, got)
	}

	for _, s := range []string{"", "paid", "SHIPPED", " PAID"} {
		_, ok := ParseStatus(s)
		assert.False(t, ok, s)
	}
}

func TestPaymentUnmarshalJSON_LegacyAliases(t *testing.T) {
	var p Payment
	require.NoError(t, json.Unmarshal([]byte(`{"razorpayOrderId":"go_1","razorpayPaymentId":"pay_1","refundStatus":"NONE"}`), &p))

	assert.Equal(t, "go_1", p.GatewayOrderID)
	assert.Equal(t, "pay_1", p.GatewayPaymentID)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"gatewayOrderId":"go_1","gatewayPaymentId":"pay_1","refundStatus":"NONE"}`, string(out))
}

func TestPaymentUnmarshalJSON_CanonicalWins(t *testing.T) {
	var p Payment
	require.NoError(t, json.Unmarshal([]byte(`{"gatewayOrderId":"go_new","razorpayOrderId":"go_old"}`), &p))

	assert.Equal(t, "go_new", p.GatewayOrderID)
}

func TestSetGatewayPaymentID_WriteOnce(t *testing.T) {
	var o Order

	assert.False(t, o.SetGatewayPaymentID(""))
	assert.True(t, o.SetGatewayPaymentID("pay_1"))
	assert.False(t, o.SetGatewayPaymentID("pay_2"))
	assert.Equal(t, "pay_1", o.Payment.GatewayPaymentID)
}

func TestMarkRefunded_Monotonic(t *testing.T) {
	o := Order{Payment: Payment{RefundStatus: RefundNone}}

	assert.False(t, o.IsRefunded())
	assert.True(t, o.MarkRefunded())
	assert.True(t, o.IsRefunded())
	assert.False(t, o.MarkRefunded())
	assert.Equal(t, RefundRefunded, o.Payment.RefundStatus)
}

func TestIsRefunded_OnValue(t *testing.T) {
	load := func(status RefundStatus) Order {
		return Order{Payment: Payment{RefundStatus: status}}
	}

	assert.True(t, load(RefundRefunded).IsRefunded())
	assert.False(t, load(RefundNone).IsRefunded())
}

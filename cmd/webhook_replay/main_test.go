package main

import (
	"testing"

	"storefront/internal/domain/order/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayload_ParsesBack(t *testing.T) {
	body, err := buildPayload(service.EventPaymentCaptured, "go_1", "pay_1")
	require.NoError(t, err)
	event, err := service.ParseWebhookEvent(body)
	require.NoError(t, err)
	assert.Equal(t, service.CapturedEvent{GatewayOrderID: "go_1", GatewayPaymentID: "pay_1"}, event)

	body, err = buildPayload(service.EventRefundProcessed, "", "pay_1")
	require.NoError(t, err)
	event, err = service.ParseWebhookEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "pay_1", event.(service.RefundProcessedEvent).GatewayPaymentID)
}

func TestBuildPayload_MissingIDs(t *testing.T) {
	_, err := buildPayload(service.EventPaymentFailed, "", "")
	assert.Error(t, err)
	_, err = buildPayload(service.EventRefundProcessed, "go_1", "")
	assert.Error(t, err)
	_, err = buildPayload("payment.authorized", "go_1", "pay_1")
	assert.Error(t, err)
}

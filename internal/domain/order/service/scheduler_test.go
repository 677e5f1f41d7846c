package service

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain/order/gateway"
	"storefront/internal/domain/order/model"
	"storefront/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLocker struct {
	ok       bool
	err      error
	unlocked int
}

func (l *fakeLocker) TryLock(context.Context) (func(context.Context) error, bool, error) {
	if l.err != nil || !l.ok {
		return nil, false, l.err
	}
	return func(context.Context) error {
		l.unlocked++
		return nil
	}, true, nil
}

func schedulerConfig() config.ReconcileConfig {
	return config.ReconcileConfig{Lookback: 0, ScheduledBatchSize: 10}
}

func TestScheduler_RunOnce(t *testing.T) {
	repo := newMemRepository(
		newOrder("order_1", model.StatusCreated, "go_1", ""),
		newOrder("order_2", model.StatusDelivered, "go_2", "pay_2"),
	)
	gw := new(MockGatewayClient)
	gw.On("FetchOrder", mock.Anything, "go_1").Return(&gateway.Order{ID: "go_1", Status: gateway.OrderStatusPaid}, nil).Once()
	gw.On("FetchPayments", mock.Anything, "go_1").Return([]gateway.Payment{}, nil).Once()
	syncer := NewReconcileService(repo, gw, nil, testOptions(2), zap.NewNop())
	lock := &fakeLocker{ok: true}

	s := NewReconcileScheduler(repo, syncer, lock, schedulerConfig(), zap.NewNop())
	res, err := s.RunOnce(context.Background())

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"order_1"}, res.Updated)
	assert.Equal(t, 1, lock.unlocked)
	assert.Equal(t, model.StatusPaid, repo.get("order_1").Status)
	assert.Empty(t, repo.get("order_1").Payment.GatewayPaymentID)
	gw.AssertExpectations(t)
}

func TestScheduler_SkipsWhenLockHeld(t *testing.T) {
	repo := newMemRepository(newOrder("order_1", model.StatusCreated, "go_1", ""))
	gw := new(MockGatewayClient)
	syncer := NewReconcileService(repo, gw, nil, testOptions(1), zap.NewNop())

	s := NewReconcileScheduler(repo, syncer, &fakeLocker{ok: false}, schedulerConfig(), zap.NewNop())
	res, err := s.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Nil(t, res)
	gw.AssertNotCalled(t, "FetchOrder", mock.Anything, mock.Anything)
}

func TestScheduler_LockError(t *testing.T) {
	repo := newMemRepository()
	syncer := NewReconcileService(repo, new(MockGatewayClient), nil, testOptions(1), zap.NewNop())

	s := NewReconcileScheduler(repo, syncer, &fakeLocker{err: errors.New("redis down")}, schedulerConfig(), zap.NewNop())
	_, err := s.RunOnce(context.Background())

	assert.ErrorContains(t, err, "redis down")
}

func TestScheduler_StartDisabled(t *testing.T) {
	repo := newMemRepository()
	syncer := NewReconcileService(repo, new(MockGatewayClient), nil, testOptions(1), zap.NewNop())

	s := NewReconcileScheduler(repo, syncer, nil, schedulerConfig(), zap.NewNop())
	// interval 为 0 时直接返回，不启动后台 goroutine
	s.Start(context.Background())
}

package statemachine

import (
	"testing"

	"storefront/internal/domain/order/model"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[model.Status]map[model.Status]bool{
		model.StatusCreated: {model.StatusPaid: true, model.StatusCancelled: true, model.StatusFailed: true},
		model.StatusPaid:    {model.StatusPacked: true, model.StatusCancelled: true, model.StatusFailed: true},
		model.StatusPacked:  {model.StatusReady: true, model.StatusCancelled: true},
		model.StatusReady:   {model.StatusDelivered: true, model.StatusCancelled: true},
	}

	pairs := 0
	for _, from := range model.AllStatuses {
		for _, to := range model.AllStatuses {
			pairs++
			assert.Equal(t, allowed[from][to], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.Equal(t, 49, pairs)
}

func TestTerminalStates(t *testing.T) {
	for _, terminal := range []model.Status{model.StatusDelivered, model.StatusCancelled, model.StatusFailed} {
		assert.True(t, IsTerminal(terminal), terminal)
		assert.Empty(t, NextStates(terminal), terminal)
		for _, to := range model.AllStatuses {
			assert.False(t, CanTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}
	assert.False(t, IsTerminal(model.StatusCreated))
}

func TestUnknownStatus(t *testing.T) {
	unknown := model.Status("SHIPPED")

	assert.False(t, CanTransition(unknown, model.StatusPaid))
	assert.False(t, CanTransition(model.StatusCreated, unknown))
	assert.Empty(t, NextStates(unknown))
	assert.False(t, IsTerminal(unknown))
}

func TestNextStatesReturnsCopy(t *testing.T) {
	next := NextStates(model.StatusCreated)
	assert.Equal(t, []model.Status{model.StatusPaid, model.StatusCancelled, model.StatusFailed}, next)

	next[0] = model.StatusDelivered
	assert.True(t, CanTransition(model.StatusCreated, model.StatusPaid))
}

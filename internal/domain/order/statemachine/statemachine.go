// Package statemachine 定义订单状态的合法流转
package statemachine

import "storefront/internal/domain/order/model"

// transitions 合法流转表，DELIVERED / CANCELLED / FAILED 为终态
// PAID -> FAILED 保留原有业务规则，待产品确认
var transitions = map[model.Status][]model.Status{
	model.StatusCreated:   {model.StatusPaid, model.StatusCancelled, model.StatusFailed},
	model.StatusPaid:      {model.StatusPacked, model.StatusCancelled, model.StatusFailed},
	model.StatusPacked:    {model.StatusReady, model.StatusCancelled},
	model.StatusReady:     {model.StatusDelivered, model.StatusCancelled},
	model.StatusDelivered: {},
	model.StatusCancelled: {},
	model.StatusFailed:    {},
}

// CanTransition from 能否流转到 to，未知状态一律返回 false
func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStates 返回 from 可流转到的状态，返回值可以安全修改
func NextStates(from model.Status) []model.Status {
	next := make([]model.Status, len(transitions[from]))
	copy(next, transitions[from])
	return next
}

// IsTerminal 是否为终态
func IsTerminal(s model.Status) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidStatus    = errors.New("invalid order status")
	ErrUnsupportedEvent = errors.New("unsupported webhook event")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	// ErrTransitionRejected 状态机不允许该流转
	// 回调与对账路径把它当作无操作处理，只有人工修改状态时才返回给调用方
	ErrTransitionRejected = errors.New("order status transition rejected")
)

// ValidationError 请求本身不合法，不会产生任何状态变更
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error, format string, args ...any) error {
	return &ValidationError{Err: err, Detail: fmt.Sprintf(format, args...)}
}

// IsValidationError err 链中是否包含 ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

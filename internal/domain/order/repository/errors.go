package repository

import (
	"errors"
	"fmt"
)

// ErrVersionConflict 保存时版本号不匹配，订单已被其他写入方修改
var ErrVersionConflict = errors.New("order version conflict")

// NotFoundError 记录不存在
type NotFoundError struct {
	Resource string
	Key      string
	Value    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with %s %s not found", e.Resource, e.Key, e.Value)
}

// IsNotFound err 链中是否包含 NotFoundError
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

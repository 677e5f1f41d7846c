package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDedup 记录已处理过的回调事件 ID
// 只用于跳过重复投递，业务处理本身仍需幂等
type EventDedup struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewEventDedup(rdb *redis.Client, prefix string, ttl time.Duration) *EventDedup {
	return &EventDedup{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (d *EventDedup) key(eventID string) string {
	return fmt.Sprintf("%s:%s", d.prefix, eventID)
}

// Seen 事件是否已处理过
func (d *EventDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	err := d.rdb.Get(ctx, d.key(eventID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Mark 标记事件已处理，应在处理成功之后调用
func (d *EventDedup) Mark(ctx context.Context, eventID string) error {
	return d.rdb.SetNX(ctx, d.key(eventID), time.Now().Unix(), d.ttl).Err()
}

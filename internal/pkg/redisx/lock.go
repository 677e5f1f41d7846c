package redisx

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 仅当值与持有者 token 一致时才删除，避免释放别人的锁
var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// Lock 基于 SET NX PX 的简单分布式锁
type Lock struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

func NewLock(rdb *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{rdb: rdb, key: key, ttl: ttl}
}

// TryLock 获取成功时返回释放函数，锁被占用时 ok 为 false
func (l *Lock) TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error) {
	token := uuid.New().String()
	ok, err = l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func(ctx context.Context) error {
		return unlockScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
	}, true, nil
}

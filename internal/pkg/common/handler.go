package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// checkTimeout 单个依赖检查的超时
const checkTimeout = 2 * time.Second

// HealthHandler 依赖连通性检查
type HealthHandler struct {
	checks map[string]func(ctx context.Context) error
}

// NewHealthHandler db 或 rdb 为 nil 时跳过对应检查
func NewHealthHandler(db *gorm.DB, rdb *redis.Client) *HealthHandler {
	checks := make(map[string]func(ctx context.Context) error)
	if db != nil {
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return &HealthHandler{checks: checks}
}

// Healthz 所有依赖可用时返回 200，否则 503
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	var (
		g       errgroup.Group
		mu      sync.Mutex
		healthy = true
		status  = make(map[string]string, len(h.checks))
	)
	for name, check := range h.checks {
		name, check := name, check
		g.Go(func() error {
			err := check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				healthy = false
				status[name] = err.Error()
				return nil
			}
			status[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"healthy": healthy, "checks": status})
}

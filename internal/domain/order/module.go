package order

import (
	"storefront/internal/domain/order/handler"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/registry"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OrderModule 订单支付状态模块
type OrderModule struct{}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	return 10
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	comps, err := Build(ctx.Config, ctx.Logger, ctx.DB, ctx.Redis)
	if err != nil {
		return err
	}
	h := handler.NewOrderHandler(comps.Orders, comps.Webhooks, comps.Syncer, handler.Options{
		SignatureHeader: ctx.Config.Gateway.SignatureHeader,
		EventIDHeader:   ctx.Config.Gateway.EventIDHeader,
		MaxBatchSize:    ctx.Config.Reconcile.MaxBatchSize,
	}, ctx.Logger)

	// 2. 路由注册
	limiter := middleware.NewIPRateLimiter(rate.Limit(ctx.Config.Server.WebhookRPS), ctx.Config.Server.WebhookBurst)
	setupRoutes(ctx.Router, h, limiter, ctx.Config.JWT.Secret)

	// 3. 后台任务
	comps.Scheduler.Start(ctx.Ctx)
	go func() {
		<-ctx.Ctx.Done()
		if err := comps.Close(); err != nil {
			ctx.Logger.Warn("close order components", zap.Error(err))
		}
	}()
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.OrderHandler, limiter *middleware.IPRateLimiter, jwtSecret string) {
	// 网关回调不走登录鉴权，靠签名校验
	r.POST("/webhooks/payment", middleware.RateLimitMiddleware(limiter), h.HandleWebhook)

	admin := r.Group("/admin/orders")
	admin.Use(middleware.SecurityHeadersMiddleware(), middleware.AuthMiddleware(jwtSecret), middleware.AdminMiddleware())
	{
		admin.POST("/sync", h.SyncOrders)
		admin.GET("/:id", h.GetOrder)
		admin.GET("/:id/transitions", h.GetTransitions)
		admin.PATCH("/:id/status", h.UpdateStatus)
	}
}

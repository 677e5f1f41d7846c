package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "storefront/internal/domain/common"
	_ "storefront/internal/domain/order"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/middleware"
	"storefront/internal/pkg/registry"
	"storefront/internal/pkg/tracing"
	"storefront/pkg/database"
	"storefront/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// shutdownTimeout 优雅退出等待在途请求的时间
const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	zapLog, err := logger.New(cfg.App.Env, cfg.App.Debug)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer zapLog.Sync()

	shutdownTracer, err := tracing.InitTracerProvider(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			zapLog.Warn("shutdown tracer", zap.Error(err))
		}
	}()

	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug, zapLog)
	if err != nil {
		return err
	}
	rdb, err := database.InitRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.RecoveryMiddleware(zapLog))
	r.Use(middleware.LoggerMiddleware(zapLog))
	r.Use(middleware.MetricsMiddleware())
	r.Use(cors.Default())

	if err := registry.InitModules(&registry.ModuleContext{
		Ctx:    ctx,
		Config: cfg,
		Logger: zapLog,
		DB:     db,
		Redis:  rdb,
		Router: r,
	}); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLog.Info("server started", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	zapLog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

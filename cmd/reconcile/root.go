package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/domain/order"
	"storefront/internal/domain/order/service"
	"storefront/internal/pkg/config"
	"storefront/pkg/database"
	"storefront/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// 退出码
const (
	exitOK          = 0
	exitError       = 1
	exitRateLimited = 2
)

// errRateLimited 批次因网关限流提前结束
var errRateLimited = errors.New("gateway rate limited, batch stopped early")

var (
	jsonOutput bool
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile local orders against the payment gateway",
		Long: `reconcile pulls order and payment state from the payment gateway and applies
any missed transitions (PAID, payment id, refund flag) to local orders.

Exits with status 2 when the gateway rate limited the batch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print the batch result as JSON")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(tokenCmd)
}

func execute() int {
	err := rootCmd.Execute()
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errRateLimited):
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitRateLimited
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitError
	}
}

// deps 命令执行期间共享的依赖
type deps struct {
	cfg   *config.Config
	log   *zap.Logger
	comps *order.Components
	close func()
}

func newDeps() (*deps, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.App.Env, cfg.App.Debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.InitDatabase(cfg.Database, false, log)
	if err != nil {
		return nil, err
	}
	rdb, err := database.InitRedis(cfg.Redis)
	if err != nil {
		return nil, err
	}
	comps, err := order.Build(cfg, log, db, rdb)
	if err != nil {
		rdb.Close()
		return nil, err
	}

	return &deps{
		cfg:   cfg,
		log:   log,
		comps: comps,
		close: func() {
			if err := comps.Close(); err != nil {
				log.Warn("close order components", zap.Error(err))
			}
			rdb.Close()
			_ = log.Sync()
		},
	}, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// report 输出批次结果，限流时返回 errRateLimited
func report(cmd *cobra.Command, res *service.SyncResult) error {
	if res == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "another instance holds the reconcile lock, nothing done")
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "processed: %d  updated: %d  errors: %d  skipped: %d\n",
			res.Processed, len(res.Updated), len(res.Errors), len(res.Skipped))
		for _, e := range res.Errors {
			fmt.Fprintf(out, "  %s: %s\n", e.OrderID, e.Message)
		}
	}

	if res.RateLimited {
		return errRateLimited
	}
	return nil
}

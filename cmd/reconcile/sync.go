package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync ORDER_ID...",
	Short: "Reconcile the given orders",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSync,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Reconcile recently updated orders that may have missed a webhook",
	Long: `pending selects CREATED orders and unrefunded PAID orders updated within
reconcile.lookback, up to reconcile.scheduled_batch_size, and reconciles them.
It takes the same lock as the in-process scheduler.`,
	Args: cobra.NoArgs,
	RunE: runPending,
}

func runSync(cmd *cobra.Command, args []string) error {
	rt, err := newDeps()
	if err != nil {
		return err
	}
	defer rt.close()

	if limit := rt.cfg.Reconcile.MaxBatchSize; limit > 0 && len(args) > limit {
		return fmt.Errorf("too many order ids: %d > %d", len(args), limit)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	res, err := rt.comps.Syncer.Sync(ctx, args)
	if err != nil {
		return err
	}
	return report(cmd, res)
}

func runPending(cmd *cobra.Command, _ []string) error {
	rt, err := newDeps()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	res, err := rt.comps.Scheduler.RunOnce(ctx)
	if err != nil {
		return err
	}
	return report(cmd, res)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	paymentgatewaytypes "github.com/frahmantamala/smm-storefront/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/smm-storefront/internal/paymentgateway"
	"github.com/frahmantamala/smm-storefront/pkg/logger"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Poll gateways for stale pending payments",
	Long: `Loads pending payments older than --older-than and asks their gateway for the
current status, settling them the same way a callback would. Safe to run while
callbacks are still arriving.`,
	RunE: runReconcile,
}

var (
	reconcileOlderThan time.Duration
	reconcileLimit     int
	reconcileWorkers   int
)

func init() {
	reconcileCmd.Flags().DurationVar(&reconcileOlderThan, "older-than", 0, "only poll payments pending longer than this (overrides config)")
	reconcileCmd.Flags().IntVar(&reconcileLimit, "limit", 0, "maximum payments to poll (overrides config)")
	reconcileCmd.Flags().IntVar(&reconcileWorkers, "max-workers", 0, "concurrent status checks (overrides config)")
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := logger.LoggerWrapper()

	deps, err := newApp(config, log, nil)
	if err != nil {
		return err
	}
	defer deps.Close()

	rc := config.Payment.Reconcile
	olderThan := getDurationFlag(reconcileOlderThan, rc.PendingAfter)
	limit := getIntFlag(reconcileLimit, rc.BatchSize)
	workers := getIntFlag(reconcileWorkers, rc.MaxWorkers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pending, err := deps.Ledger.ListPending(ctx, time.Now().Add(-olderThan), limit)
	if err != nil {
		return fmt.Errorf("failed to list pending payments: %w", err)
	}
	log.Info("reconciling pending payments", "count", len(pending), "older_than", olderThan, "max_workers", workers)
	if len(pending) == 0 {
		return nil
	}

	var settled, failed atomic.Int64
	pool := paymentgateway.NewPool(paymentgateway.PoolConfig{
		MaxWorkers:   workers,
		JobQueueSize: rc.JobQueueSize,
	}, func(ctx context.Context, job paymentgateway.PollJob) {
		rec, err := deps.Payments.PollStatus(ctx, job.OrderID)
		if err != nil {
			failed.Add(1)
			log.Warn("status poll failed", "order_id", job.OrderID, "provider", job.Provider, "error", err)
			return
		}
		if rec.IsTerminal() {
			settled.Add(1)
		}
	}, log)

	for _, rec := range pending {
		job := paymentgateway.PollJob{OrderID: rec.OrderID, Provider: paymentgatewaytypes.ProviderID(rec.Provider)}
		if rec.TransactionID != nil {
			job.TransactionID = *rec.TransactionID
		}
		if err := pool.Submit(ctx, job); err != nil {
			log.Warn("stopped submitting status polls", "error", err)
			break
		}
	}

	pool.Wait()
	pool.Shutdown()

	log.Info("reconcile finished",
		"polled", len(pending),
		"settled", settled.Load(),
		"errors", failed.Load())
	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "reconcile interrupted")
	}
	return nil
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func getDurationFlag(flagValue, configValue time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

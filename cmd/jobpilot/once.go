package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single discovery cycle and exit",
	Run: func(_ *cobra.Command, _ []string) {
		once()
	},
}

func init() {
	rootCmd.AddCommand(onceCmd)
}

func once() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := buildEngine(ctx)
	defer eng.close()

	report, err := eng.orch.RunCycle(ctx)
	if err != nil {
		eng.logger.Fatal("cycle failed", zap.Error(err))
	}
	eng.logger.Info("cycle report",
		zap.Int("discovered", report.Discovered),
		zap.Int("rejected", report.Rejected),
		zap.Int("auto_apply", report.AutoApply),
		zap.Int("outreach", report.Outreach),
		zap.Int("review", report.Review),
		zap.Int("submitted", report.Submitted),
		zap.Int("failed", report.Failed),
	)
}

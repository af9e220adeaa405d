package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"finsync/internal/shared/config"
	"finsync/internal/shared/logger"
)

var (
	cfg     *config.Config
	rootCmd = &cobra.Command{
		Use:   "admin",
		Short: "Management commands for the finsync API",
		Long: `admin runs maintenance tasks against the finsync database and the
aggregator: schema migrations, one-off item syncs, full sweeps and queue
inspection. It reads the same environment as the API server.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(syncItemCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(enqueueCmd())
	rootCmd.AddCommand(issueTokenCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	cfg = c

	level := cfg.Log.Level
	if flag, _ := cmd.Flags().GetString("log-level"); flag != "" {
		level = flag
	}
	log := logger.Setup(level, cfg.Log.Format)
	cmd.SetContext(logger.WithContext(cmd.Context(), log))
	return nil
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/lumo-backend/internal/app"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
)

var rootCmd = &cobra.Command{
	Use:           "lumoctl",
	Short:         "Lumo backend administration",
	Long:          `Database maintenance, chat retention and one-off document analysis for the Lumo backend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		rootCmd.PrintErrln("Error:", err)
		stop()
		os.Exit(1)
	}
}

// setup loads configuration and a logger writing to stderr, keeping stdout for results.
func setup(cmd *cobra.Command) (*common.Config, *slog.Logger, error) {
	cfg, err := common.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := app.NewLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func requireDB(cfg *common.Config) error {
	if cfg.Database.DSN == "" {
		return common.NewAppError("CONFIG_ERROR", "DB_URL is required", common.ErrInvalidInput)
	}
	return nil
}

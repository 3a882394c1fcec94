package cmd

import (
	"github.com/spf13/cobra"

	"github.com/basylab/balug/internal/app"
	"github.com/basylab/balug/internal/config"
	"github.com/basylab/balug/internal/logger"
)

// RootCmd builds the admin command tree.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "admin",
		Short:        "Balug administration tools",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(UserCmd())
	rootCmd.AddCommand(ResetCmd())
	return rootCmd
}

func loadConfig() *config.Config {
	cfg := config.Load()
	logger.Init(logger.Options{
		Dev:         cfg.IsDevelopment(),
		SentryDSN:   cfg.SentryDSN,
		Environment: cfg.AppEnv,
	})
	return cfg
}

func openApp() (*app.App, error) {
	return app.New(loadConfig(), app.Options{})
}

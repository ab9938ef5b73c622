package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/playvault/storefront/internal/app"
	"github.com/playvault/storefront/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var appCfg config.AppConfig
	root := &cobra.Command{
		Use:          "storefront",
		Short:        "Game storefront checkout service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&appCfg.ConfigPath, "config", "", "path to config.yaml (defaults to $"+config.ConfigPathEnv+" or ./"+config.DefaultConfigPath+")")

	root.AddCommand(
		newServeCmd(&appCfg),
		newMigrateCmd(&appCfg),
		newTokenCmd(&appCfg),
		newSettingCmd(&appCfg),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newServeCmd(appCfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunServer(cmd.Context(), *appCfg)
		},
	}
}

func newMigrateCmd(appCfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Migrate(cmd.Context(), *appCfg)
		},
	}
}

func newTokenCmd(appCfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "token <username>",
		Short: "Print a bearer token for a local user, creating it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := app.IssueToken(cmd.Context(), *appCfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newSettingCmd(appCfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:     "setting <key> <value>",
		Short:   "Set a runtime setting such as LOYALTY_POINTS_PER_UNIT",
		Args:    cobra.ExactArgs(2),
		Example: "  storefront setting NOTIFICATION_RETENTION_DAYS 30",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.PutSetting(cmd.Context(), *appCfg, args[0], args[1])
		},
	}
}

package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/l3montree-dev/kevmon/database"
	"github.com/l3montree-dev/kevmon/database/repositories"
	"github.com/l3montree-dev/kevmon/kev"
	"github.com/l3montree-dev/kevmon/shared"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

func NewCheckCommand() *cobra.Command {
	checkCmd := cobra.Command{
		Use:   "check",
		Short: "Check whether the upstream catalog has a newer version than the local mirror",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			shared.LoadConfig() // nolint
			if feedURL := viper.GetString("feed_url"); feedURL != "" {
				os.Setenv("KEV_FEED_URL", feedURL) // nolint: errcheck
			}

			app := fx.New(
				fx.NopLogger,
				fx.Supply(database.GetPoolConfigFromEnv()),
				database.Module,
				repositories.Module,
				kev.Module,
				fx.Invoke(func(syncService *kev.SyncService) error {
					ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
					defer cancel()

					check, err := syncService.CheckForUpdates(ctx)
					if err != nil {
						return err
					}

					slog.Info("catalog update check",
						"upToDate", check.UpToDate,
						"upstreamVersion", check.CatalogVersion,
						"upstreamDateReleased", check.CatalogDateReleased,
						"lastSyncedVersion", check.LastSyncedVersion)
					return nil
				}),
			)

			startCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return err
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return app.Stop(stopCtx)
		},
	}

	return &checkCmd
}

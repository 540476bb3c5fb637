// Copyright (C) 2026 l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/l3montree-dev/kevmon/database"
	"github.com/l3montree-dev/kevmon/database/models"
	"github.com/l3montree-dev/kevmon/database/repositories"
	"github.com/l3montree-dev/kevmon/kev"
	"github.com/l3montree-dev/kevmon/shared"
	"github.com/l3montree-dev/kevmon/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

func NewSyncCommand() *cobra.Command {
	syncCmd := cobra.Command{
		Use:   "sync",
		Short: "Synchronize the local mirror with the upstream KEV catalog",
		Long: `Fetches the CISA Known Exploited Vulnerabilities catalog, reconciles it
against the local mirror and records every change. The command blocks
until the run finished and exits non-zero if the run failed.`,
		Args: cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			shared.LoadConfig() // nolint
			if feedURL := viper.GetString("feed_url"); feedURL != "" {
				os.Setenv("KEV_FEED_URL", feedURL) // nolint: errcheck
			}
			migrateDB()

			var runErr error
			app := fx.New(
				fx.NopLogger,
				fx.Supply(database.GetPoolConfigFromEnv()),
				database.Module,
				repositories.Module,
				kev.Module,
				fx.Invoke(func(syncService *kev.SyncService) error {
					trigger := models.SyncTriggerManual
					if force {
						trigger = models.SyncTriggerForced
					}

					now := time.Now()
					slog.Info("starting catalog sync")
					result, err := syncService.Trigger(trigger)
					if err != nil {
						return err
					}
					syncService.Wait()

					status, err := syncService.CurrentStatus()
					if err != nil {
						return err
					}

					slog.Info("finished catalog sync",
						"runID", result.RunID,
						"status", status.Status,
						"fetched", status.FetchedCount,
						"inserted", status.InsertedCount,
						"updated", status.UpdatedCount,
						"unchanged", status.UnchangedCount,
						"skipped", status.SkippedCount,
						"duration", time.Since(now))

					if status.Status == models.SyncRunStatusFailed {
						runErr = fmt.Errorf("sync run failed: %s", utils.SafeDereference(status.ErrorMessage))
					}
					return nil
				}),
			)

			startCtx, cancel := context.WithTimeout(context.Background(), 120*time.Minute)
			defer cancel()
			if err := app.Start(startCtx); err != nil {
				return err
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := app.Stop(stopCtx); err != nil {
				return err
			}
			return runErr
		},
	}
	syncCmd.Flags().Bool("force", false, "start the sync even if another run is active (queues at most one follow-up run)")

	return &syncCmd
}

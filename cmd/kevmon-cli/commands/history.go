package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/l3montree-dev/kevmon/database"
	"github.com/l3montree-dev/kevmon/database/repositories"
	"github.com/l3montree-dev/kevmon/shared"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func NewHistoryCommand() *cobra.Command {
	historyCmd := cobra.Command{
		Use:   "history",
		Short: "List recent sync runs, newest first",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			shared.LoadConfig() // nolint

			app := fx.New(
				fx.NopLogger,
				fx.Supply(database.GetPoolConfigFromEnv()),
				database.Module,
				repositories.Module,
				fx.Invoke(func(syncRunRepository shared.SyncRunRepository) error {
					runs, err := syncRunRepository.History(limit)
					if err != nil {
						return err
					}

					for _, run := range runs {
						slog.Info("sync run",
							"runID", run.ID,
							"status", run.Status,
							"trigger", run.Trigger,
							"startedAt", run.StartedAt,
							"catalogVersion", run.CatalogVersion,
							"inserted", run.InsertedCount,
							"updated", run.UpdatedCount,
							"unchanged", run.UnchangedCount,
							"skipped", run.SkippedCount)
					}
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
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list")

	return &historyCmd
}

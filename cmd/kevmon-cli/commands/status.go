package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/l3montree-dev/kevmon/database"
	"github.com/l3montree-dev/kevmon/database/repositories"
	"github.com/l3montree-dev/kevmon/shared"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewStatusCommand() *cobra.Command {
	statusCmd := cobra.Command{
		Use:   "status",
		Short: "Show the most recent sync run",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			shared.LoadConfig() // nolint

			app := fx.New(
				fx.NopLogger,
				fx.Supply(database.GetPoolConfigFromEnv()),
				database.Module,
				repositories.Module,
				fx.Invoke(func(syncRunRepository shared.SyncRunRepository) error {
					run, err := syncRunRepository.Current()
					if err != nil {
						if errors.Is(err, gorm.ErrRecordNotFound) {
							slog.Info("no sync run recorded yet")
							return nil
						}
						return err
					}

					slog.Info("most recent sync run",
						"runID", run.ID,
						"status", run.Status,
						"trigger", run.Trigger,
						"progress", run.Progress(),
						"startedAt", run.StartedAt,
						"catalogVersion", run.CatalogVersion,
						"fetched", run.FetchedCount,
						"inserted", run.InsertedCount,
						"updated", run.UpdatedCount,
						"unchanged", run.UnchangedCount,
						"skipped", run.SkippedCount)
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

	return &statusCmd
}
